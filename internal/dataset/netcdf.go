package dataset

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/hdf5"
)

// readSeekerCloser adapts an in-memory payload to the reader interface the
// NetCDF parsers expect.
type readSeekerCloser struct {
	*bytes.Reader
}

func (readSeekerCloser) Close() error { return nil }

// Decode parses NetCDF bytes as returned by the subset service. Both the
// classic container and the NetCDF-4 (HDF5) container are handled, sniffed
// by magic bytes.
func Decode(data []byte) (*Dataset, error) {
	rsc := readSeekerCloser{bytes.NewReader(data)}

	var (
		group api.Group
		err   error
	)
	switch {
	case bytes.HasPrefix(data, []byte("CDF")):
		group, err = cdf.New(rsc)
	case bytes.HasPrefix(data, []byte("\x89HDF")):
		group, err = hdf5.New(rsc)
	default:
		return nil, fmt.Errorf("unrecognized dataset container")
	}
	if err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	defer group.Close()

	return fromGroup(group)
}

// Open reads a NetCDF file from the local filesystem.
func Open(path string) (*Dataset, error) {
	group, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer group.Close()

	return fromGroup(group)
}

func fromGroup(group api.Group) (*Dataset, error) {
	ds := New()
	ds.Attrs = attrsToMap(group.Attributes())

	for _, name := range group.ListVariables() {
		vr, err := group.GetVariable(name)
		if err != nil {
			return nil, fmt.Errorf("read variable %s: %w", name, err)
		}

		switch name {
		case "time":
			units, _ := attrString(vr.Attributes, "units")
			ts, err := decodeTimeAxis(vr.Values, units)
			if err != nil {
				return nil, fmt.Errorf("decode time axis: %w", err)
			}
			ds.Time = ts
		case "y":
			ds.Y = toFloat64s(vr.Values)
			ds.YAttrs = attrsToMap(vr.Attributes)
		case "x":
			ds.X = toFloat64s(vr.Values)
			ds.XAttrs = attrsToMap(vr.Attributes)
		default:
			if !gridDims(vr.Dimensions) {
				continue
			}
			ds.AddVariable(name, &Variable{
				Dims:  vr.Dimensions,
				Attrs: attrsToMap(vr.Attributes),
				Data:  toFloat32s(vr.Values),
			})
		}
	}

	if len(ds.Time) == 0 {
		return nil, fmt.Errorf("dataset has no time coordinate")
	}
	return ds, nil
}

// gridDims reports whether all dimensions are drawn from the Daymet grid
// axes. Projection dummies and station-style variables are skipped.
func gridDims(dims []string) bool {
	if len(dims) == 0 {
		return false
	}
	for _, d := range dims {
		switch d {
		case "time", "y", "x":
		default:
			return false
		}
	}
	return true
}

func attrsToMap(am api.AttributeMap) map[string]string {
	if am == nil {
		return nil
	}
	keys := am.Keys()
	if len(keys) == 0 {
		return nil
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if s, ok := attrString(am, k); ok {
			out[k] = s
		}
	}
	return out
}

func attrString(am api.AttributeMap, key string) (string, bool) {
	if am == nil {
		return "", false
	}
	v, ok := am.Get(key)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case []string:
		if len(t) == 1 {
			return t[0], true
		}
		return strings.Join(t, " "), true
	default:
		return fmt.Sprint(t), true
	}
}

// decodeTimeAxis converts raw time values plus a CF units attribute like
// "days since 1980-01-01 00:00:00" into timestamps.
func decodeTimeAxis(values interface{}, units string) ([]time.Time, error) {
	epoch, unit, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}

	raw := toFloat64s(values)
	out := make([]time.Time, len(raw))
	for i, v := range raw {
		out[i] = epoch.Add(time.Duration(v * float64(unit)))
	}
	return out, nil
}

func parseTimeUnits(units string) (time.Time, time.Duration, error) {
	var unit time.Duration
	var rest string
	switch {
	case strings.HasPrefix(units, "days since "):
		unit = 24 * time.Hour
		rest = strings.TrimPrefix(units, "days since ")
	case strings.HasPrefix(units, "hours since "):
		unit = time.Hour
		rest = strings.TrimPrefix(units, "hours since ")
	case strings.HasPrefix(units, "seconds since "):
		unit = time.Second
		rest = strings.TrimPrefix(units, "seconds since ")
	default:
		return time.Time{}, 0, fmt.Errorf("unsupported time units %q", units)
	}

	rest = strings.ReplaceAll(strings.TrimSpace(rest), "T", " ")
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if epoch, err := time.ParseInLocation(layout, rest, time.UTC); err == nil {
			return epoch, unit, nil
		}
	}
	return time.Time{}, 0, fmt.Errorf("unsupported time epoch %q", rest)
}

// toFloat64s flattens a possibly nested numeric slice into a flat float64
// slice in row-major order.
func toFloat64s(values interface{}) []float64 {
	var out []float64
	flatten(reflect.ValueOf(values), func(f float64) {
		out = append(out, f)
	})
	return out
}

// toFloat32s flattens a possibly nested numeric slice into a flat float32
// slice in row-major order.
func toFloat32s(values interface{}) []float32 {
	var out []float32
	flatten(reflect.ValueOf(values), func(f float64) {
		out = append(out, float32(f))
	})
	return out
}

func flatten(v reflect.Value, emit func(float64)) {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			flatten(v.Index(i), emit)
		}
	case reflect.Float32, reflect.Float64:
		emit(v.Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		emit(float64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		emit(float64(v.Uint()))
	case reflect.Interface:
		flatten(v.Elem(), emit)
	}
}
