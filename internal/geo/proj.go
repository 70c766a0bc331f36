package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
	"github.com/wroge/wgs84"
)

// daymetTransform converts lon/lat degrees to the Lambert conformal conic
// grid Daymet rasters are published on (standard parallels 25 and 60,
// origin 42.5N 100W, meters).
var daymetTransform = wgs84.LonLat().To(wgs84.WGS84().LambertConformalConic2SP(-100, 42.5, 25, 60, 0, 0))

// ProjectToGrid reprojects a lon/lat geometry onto the Daymet grid.
func ProjectToGrid(g orb.Geometry) orb.Geometry {
	return project.Geometry(g, func(p orb.Point) orb.Point {
		x, y, _ := daymetTransform(p[0], p[1], 0)
		return orb.Point{x, y}
	})
}

// Contains reports whether the point lies inside a polygonal geometry.
// Non-areal geometries contain nothing.
func Contains(g orb.Geometry, p orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, p)
	default:
		return false
	}
}
