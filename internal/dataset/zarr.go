package dataset

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/hydroclim/daymet-pipeline/internal/storage"
)

const zarrGzipLevel = 5

// zarrArrayMeta is the .zarray document of one array. Every array is stored
// as a single gzip-compressed chunk; subset grids are small enough that
// finer chunking buys nothing.
type zarrArrayMeta struct {
	Chunks     []int           `json:"chunks"`
	Compressor *zarrCompressor `json:"compressor"`
	DType      string          `json:"dtype"`
	FillValue  interface{}     `json:"fill_value"`
	Filters    interface{}     `json:"filters"`
	Order      string          `json:"order"`
	Shape      []int           `json:"shape"`
	ZarrFormat int             `json:"zarr_format"`
}

type zarrCompressor struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
}

// WriteZarr writes the dataset as a Zarr v2 directory store rooted at key
// root. Array attributes carry the xarray dimension convention so the store
// round-trips through common readers.
func WriteZarr(ctx context.Context, store storage.Store, root string, ds *Dataset) error {
	if err := writeJSON(ctx, store, root+"/.zgroup", map[string]int{"zarr_format": 2}); err != nil {
		return err
	}
	if err := writeJSON(ctx, store, root+"/.zattrs", stringAttrs(ds.Attrs)); err != nil {
		return err
	}

	timeVals := make([]float64, len(ds.Time))
	for i, ts := range ds.Time {
		timeVals[i] = ts.Sub(timeEpoch).Hours() / 24
	}
	timeAttrs := map[string]string{"units": timeUnits, "calendar": "standard"}

	if err := writeZarrFloat64(ctx, store, root, "time", []string{"time"}, timeAttrs, timeVals); err != nil {
		return err
	}
	if len(ds.Y) > 0 {
		if err := writeZarrFloat64(ctx, store, root, "y", []string{"y"}, ds.YAttrs, ds.Y); err != nil {
			return err
		}
	}
	if len(ds.X) > 0 {
		if err := writeZarrFloat64(ctx, store, root, "x", []string{"x"}, ds.XAttrs, ds.X); err != nil {
			return err
		}
	}

	for _, name := range ds.Variables() {
		v := ds.Var(name)
		shape := dimsShape(ds, v.Dims)
		raw := make([]byte, 4*len(v.Data))
		for i, f := range v.Data {
			binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(f))
		}
		if err := writeZarrArray(ctx, store, root, name, "<f4", v.Dims, shape, v.Attrs, raw); err != nil {
			return err
		}
	}
	return nil
}

func dimsShape(ds *Dataset, dims []string) []int {
	shape := make([]int, len(dims))
	for i, d := range dims {
		switch d {
		case "time":
			shape[i] = len(ds.Time)
		case "y":
			shape[i] = len(ds.Y)
		case "x":
			shape[i] = len(ds.X)
		}
	}
	return shape
}

func writeZarrFloat64(ctx context.Context, store storage.Store, root, name string, dims []string, attrs map[string]string, vals []float64) error {
	raw := make([]byte, 8*len(vals))
	for i, f := range vals {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(f))
	}
	return writeZarrArray(ctx, store, root, name, "<f8", dims, []int{len(vals)}, attrs, raw)
}

func writeZarrArray(ctx context.Context, store storage.Store, root, name, dtype string, dims []string, shape []int, attrs map[string]string, raw []byte) error {
	meta := zarrArrayMeta{
		Chunks:     shape,
		Compressor: &zarrCompressor{ID: "gzip", Level: zarrGzipLevel},
		DType:      dtype,
		FillValue:  "NaN",
		Filters:    nil,
		Order:      "C",
		Shape:      shape,
		ZarrFormat: 2,
	}
	if err := writeJSON(ctx, store, root+"/"+name+"/.zarray", meta); err != nil {
		return err
	}

	zattrs := make(map[string]interface{}, len(attrs)+1)
	zattrs["_ARRAY_DIMENSIONS"] = dims
	for k, v := range attrs {
		zattrs[k] = v
	}
	if err := writeJSON(ctx, store, root+"/"+name+"/.zattrs", zattrs); err != nil {
		return err
	}

	var compressed bytes.Buffer
	zw, err := gzip.NewWriterLevel(&compressed, zarrGzipLevel)
	if err != nil {
		return fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return fmt.Errorf("compress chunk %s: %w", name, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress chunk %s: %w", name, err)
	}

	chunkKey := strings.TrimSuffix(strings.Repeat("0.", len(shape)), ".")
	if chunkKey == "" {
		chunkKey = "0"
	}
	return store.Write(ctx, root+"/"+name+"/"+chunkKey, compressed.Bytes())
}

func stringAttrs(attrs map[string]string) map[string]string {
	if attrs == nil {
		return map[string]string{}
	}
	return attrs
}

func writeJSON(ctx context.Context, store storage.Store, key string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return store.Write(ctx, key, data)
}
