// Package daymet holds the request model and naming conventions for the
// ORNL DAAC NetCDF Subset Service that serves Daymet data.
package daymet

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// Supported dataset versions.
const (
	V3 = "v3"
	V4 = "v4"
)

const (
	baseURLV3 = "https://thredds.daac.ornl.gov/thredds/ncss/ornldaac/1328/"
	baseURLV4 = "https://thredds.daac.ornl.gov/thredds/ncss/ornldaac/1840/"
)

// timeFormat is the timestamp layout the subset service expects, with an
// explicit UTC designator.
const timeFormat = "2006-01-02T15:04:05Z"

// Request describes one spatial/temporal subset request against the remote
// service. A request always covers a single calendar year; multi-year windows
// are split by Partition. Requests are immutable once created and consumed
// exactly once.
type Request struct {
	Year     int
	Variable string
	// Key identifies the feature (or the configured name in bbox mode) the
	// request belongs to. It prefixes stored file names.
	Key string

	West  float64
	South float64
	East  float64
	North float64

	Start time.Time
	End   time.Time
}

// FileName returns the remote file name for the given dataset version. The
// patterns must stay bit-exact for interop with existing datasets. An
// unsupported version falls back to the v4 name with a warning.
func (r Request) FileName(version string) string {
	switch version {
	case V3:
		return fmt.Sprintf("daymet_v3_%s_%d_na.nc4", r.Variable, r.Year)
	case V4:
		return fmt.Sprintf("daymet_v4_daily_na_%s_%d.nc", r.Variable, r.Year)
	default:
		slog.Warn("unsupported dataset version, using v4 file name", "version", version)
		return fmt.Sprintf("daymet_v4_daily_na_%s_%d.nc", r.Variable, r.Year)
	}
}

// URL returns the request URL for the given dataset version. v3 nests files
// under a per-year directory, v4 serves them flat.
func (r Request) URL(version string) string {
	switch version {
	case V3:
		return fmt.Sprintf("%s%d/%s", baseURLV3, r.Year, r.FileName(version))
	case V4:
		return baseURLV4 + r.FileName(version)
	default:
		slog.Warn("unsupported dataset version, using v4 URL", "version", version)
		return baseURLV4 + r.FileName(V4)
	}
}

// Query returns the subset query parameters. Strides are fixed at 1; the
// accept token requests the NetCDF-4 container.
func (r Request) Query() url.Values {
	return url.Values{
		"var":         {r.Variable},
		"north":       {formatCoord(r.North)},
		"west":        {formatCoord(r.West)},
		"east":        {formatCoord(r.East)},
		"south":       {formatCoord(r.South)},
		"horizStride": {"1"},
		"time_start":  {r.Start.UTC().Format(timeFormat)},
		"time_end":    {r.End.UTC().Format(timeFormat)},
		"timeStride":  {"1"},
		"accept":      {"netcdf4"},
	}
}

func formatCoord(v float64) string {
	return fmt.Sprintf("%g", v)
}

// MergedFileName returns the name of the artifact that holds all per-year
// fetches for one feature and variable merged along the time axis.
func MergedFileName(key, variable, version string) string {
	switch version {
	case V3:
		return fmt.Sprintf("%s_daymet_v3_%s_na.nc4", key, variable)
	case V4:
		return fmt.Sprintf("%s_daymet_v4_daily_na_%s.nc", key, variable)
	default:
		slog.Warn("unsupported dataset version, using v4 merged file name", "version", version)
		return fmt.Sprintf("%s_daymet_v4_daily_na_%s.nc", key, variable)
	}
}

// CombinedFileName returns the name of a combined multi-variable artifact
// produced by the processing pipeline.
func CombinedFileName(key, version, format string) string {
	switch {
	case format == "zarr":
		return fmt.Sprintf("%s_daymet_%s_na.zarr", key, version)
	case version == V3:
		return fmt.Sprintf("%s_daymet_v3_na.nc4", key)
	case version == V4:
		return fmt.Sprintf("%s_daymet_v4_daily_na.nc", key)
	default:
		slog.Warn("unsupported dataset version, using v4 combined file name", "version", version)
		return fmt.Sprintf("%s_daymet_v4_daily_na.nc", key)
	}
}
