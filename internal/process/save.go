package process

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/hydroclim/daymet-pipeline/internal/dataset"
	"github.com/hydroclim/daymet-pipeline/internal/storage"
)

// Output formats.
const (
	FormatNetCDF  = "netcdf"
	FormatZarr    = "zarr"
	FormatParquet = "parquet"
)

// normalizeFormat maps an unknown output format onto netcdf with a warning.
// Parquet is only meaningful for spatially aggregated output.
func normalizeFormat(format string, allowParquet bool) string {
	switch {
	case format == FormatNetCDF || format == FormatZarr:
		return format
	case format == FormatParquet && allowParquet:
		return format
	default:
		slog.Warn("unsupported output format, falling back to netcdf", "format", format)
		return FormatNetCDF
	}
}

// save writes the dataset under key in the given (already normalized)
// format.
func save(ctx context.Context, store storage.Store, key string, ds *dataset.Dataset, format string) error {
	switch format {
	case FormatZarr:
		return dataset.WriteZarr(ctx, store, key, ds)
	case FormatParquet:
		data, err := dataset.EncodeParquet(ds)
		if err != nil {
			return err
		}
		return store.Write(ctx, key, data)
	default:
		data, err := dataset.EncodeNetCDF(ds)
		if err != nil {
			return err
		}
		return store.Write(ctx, key, data)
	}
}

// withPostfix inserts postfix between a file name's stem and extension.
func withPostfix(name, postfix string) string {
	if postfix == "" {
		return name
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + postfix + ext
}

// withExt swaps a file name's extension.
func withExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}
