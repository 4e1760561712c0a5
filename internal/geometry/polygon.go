package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// Explode flattens polygonal geometry into single polygons. Non-polygonal
// parts and polygons without an exterior ring are dropped.
func Explode(g orb.Geometry) []orb.Polygon {
	var out []orb.Polygon
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) > 0 && len(v[0]) > 0 {
			out = append(out, v)
		}
	case orb.MultiPolygon:
		for _, p := range v {
			out = append(out, Explode(p)...)
		}
	case orb.Collection:
		for _, c := range v {
			out = append(out, Explode(c)...)
		}
	}
	return out
}

// CloseHoles drops every interior ring.
func CloseHoles(p orb.Polygon) orb.Polygon {
	if len(p) == 0 {
		return p
	}
	return orb.Polygon{p[0]}
}

// Area is the unsigned planar area in the geometry's own units.
func Area(g orb.Geometry) float64 {
	return math.Abs(planar.Area(g))
}

// GeodesicArea is the area in square metres of a lon/lat geometry on the
// spherical earth.
func GeodesicArea(g orb.Geometry) float64 {
	switch v := g.(type) {
	case orb.Polygon:
		return math.Abs(geo.Area(v))
	case orb.MultiPolygon:
		var sum float64
		for _, p := range v {
			sum += math.Abs(geo.Area(p))
		}
		return sum
	}
	return 0
}

// TotalArea sums Area over a list of polygons.
func TotalArea(polys []orb.Polygon) float64 {
	var sum float64
	for _, p := range polys {
		sum += Area(p)
	}
	return sum
}
