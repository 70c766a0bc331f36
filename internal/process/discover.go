// Package process implements the offline operations over already downloaded
// Daymet files: combining per-year pieces, clipping to basin geometries and
// spatial aggregation.
package process

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hydroclim/daymet-pipeline/internal/daymet"
)

// variableGlob returns the glob matching the per-year files of one feature
// and variable under the layout {dataDir}/{variable}/{id}/.
func variableGlob(dataDir, id, variable, version string) string {
	dir := filepath.Join(dataDir, variable, id)
	switch version {
	case daymet.V3:
		return filepath.Join(dir, fmt.Sprintf("%s_daymet_v3_%s_*_na.nc4", id, variable))
	default:
		return filepath.Join(dir, fmt.Sprintf("%s_daymet_v4_daily_na_%s_*.nc", id, variable))
	}
}

// DiscoverVariable lists the per-year files of one feature and variable, in
// lexical order.
func DiscoverVariable(dataDir, id, variable, version string) ([]string, error) {
	matches, err := filepath.Glob(variableGlob(dataDir, id, variable, version))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", variableGlob(dataDir, id, variable, version), err)
	}
	sort.Strings(matches)
	return matches, nil
}

// DiscoverIDs lists the feature ids that have downloaded files for the given
// variable, in lexical order.
func DiscoverIDs(dataDir, variable string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(dataDir, variable))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", filepath.Join(dataDir, variable), err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// DiscoverCombined returns the path of the combined artifact of one feature.
// A missing file surfaces as a wrapped os.ErrNotExist.
func DiscoverCombined(dataDir, id, version string) (string, error) {
	path := filepath.Join(dataDir, daymet.CombinedFileName(id, version, "netcdf"))
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no combined file for id %s in %s: %w", id, dataDir, os.ErrNotExist)
		}
		return "", err
	}
	return path, nil
}

// DiscoverAllCombined lists every combined artifact in dataDir, in lexical
// order.
func DiscoverAllCombined(dataDir, version string) ([]string, error) {
	pattern := filepath.Join(dataDir, daymet.CombinedFileName("*", version, "netcdf"))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}
