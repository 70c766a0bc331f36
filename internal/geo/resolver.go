// Package geo loads catchment geometries and projects them onto the Daymet
// grid.
package geo

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature is one catchment selected for download or clipping.
type Feature struct {
	// Key is the feature identifier, coerced to a string.
	Key      string
	Geometry orb.Geometry
	Bound    orb.Bound
}

// Resolve reads the GeoJSON file at path and returns the features selected
// by ids, keyed by the idColumn property. A nil ids slice selects every
// feature in file order. Requested ids with no matching feature are logged
// and skipped; they never fail the batch.
func Resolve(path, idColumn string, ids []string) ([]Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geometry file %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse geometry file %s: %w", path, err)
	}

	var all []Feature
	byKey := make(map[string]Feature)
	for _, f := range fc.Features {
		raw, ok := f.Properties[idColumn]
		if !ok {
			slog.Warn("feature has no id property, skipping", "idCol", idColumn, "file", path)
			continue
		}
		feat := Feature{
			Key:      formatID(raw),
			Geometry: f.Geometry,
			Bound:    f.Geometry.Bound(),
		}
		all = append(all, feat)
		byKey[feat.Key] = feat
	}

	if ids == nil {
		return all, nil
	}

	selected := make([]Feature, 0, len(ids))
	for _, id := range ids {
		feat, ok := byKey[id]
		if !ok {
			slog.Warn("no feature with requested id in geometry file, skipping", "id", id, "file", path)
			continue
		}
		selected = append(selected, feat)
	}
	return selected, nil
}

// formatID renders a feature id property as a string. GeoJSON numbers decode
// as float64; integral values must not grow a decimal point.
func formatID(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}
