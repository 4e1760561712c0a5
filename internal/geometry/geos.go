package geometry

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/twpayne/go-geos"
)

// ErrEmpty is returned when an operation has nothing to work on.
var ErrEmpty = errors.New("empty geometry")

// toGEOS encodes an orb geometry as WKB and parses it into GEOS.
func toGEOS(g orb.Geometry) (*geos.Geom, error) {
	data, err := wkb.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to encode WKB: %w", err)
	}
	gg, err := geos.NewGeomFromWKB(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse WKB in GEOS: %w", err)
	}
	return gg, nil
}

// fromGEOS decodes a GEOS geometry back into orb and releases it.
func fromGEOS(gg *geos.Geom) (orb.Geometry, error) {
	defer gg.Destroy()
	if gg.IsEmpty() {
		return orb.MultiPolygon{}, nil
	}
	g, err := wkb.Unmarshal(gg.ToWKB())
	if err != nil {
		return nil, fmt.Errorf("failed to decode GEOS WKB: %w", err)
	}
	return g, nil
}

// Repair returns the valid polygon parts of p.
//
// Valid input comes back unchanged. A self-intersecting ring (the bow tie
// left behind by simplification that does not preserve topology) is split
// by GEOS MakeValid into its separate lobes, and every polygonal lobe is
// returned.
func Repair(p orb.Polygon) ([]orb.Polygon, error) {
	if len(p) == 0 || len(p[0]) < 4 {
		return nil, nil
	}
	gg, err := toGEOS(p)
	if err != nil {
		return nil, err
	}
	defer gg.Destroy()

	if gg.IsValid() {
		return []orb.Polygon{p}, nil
	}
	g, err := fromGEOS(gg.MakeValid())
	if err != nil {
		return nil, err
	}
	return Explode(g), nil
}

// MakeValid repairs an arbitrary polygonal geometry with GEOS MakeValid and
// keeps only its polygonal parts.
func MakeValid(g orb.Geometry) (orb.MultiPolygon, error) {
	gg, err := toGEOS(g)
	if err != nil {
		return nil, err
	}
	defer gg.Destroy()

	out, err := fromGEOS(gg.MakeValid())
	if err != nil {
		return nil, err
	}
	return orb.MultiPolygon(Explode(out)), nil
}

// UnaryUnion dissolves all polygons into their disjoint connected parts.
//
// The result does not depend on the input order. Running it on its own
// output returns the same parts.
func UnaryUnion(polys []orb.Polygon) ([]orb.Polygon, error) {
	if len(polys) == 0 {
		return nil, nil
	}
	gg, err := toGEOS(orb.MultiPolygon(polys))
	if err != nil {
		return nil, err
	}
	defer gg.Destroy()

	g, err := fromGEOS(gg.UnaryUnion())
	if err != nil {
		return nil, err
	}
	return Explode(g), nil
}

// Buffer grows (or shrinks, for negative distances) g by distance in the
// geometry's own units.
func Buffer(g orb.Geometry, distance float64) (orb.Geometry, error) {
	gg, err := toGEOS(g)
	if err != nil {
		return nil, err
	}
	defer gg.Destroy()
	return fromGEOS(gg.Buffer(distance, 8))
}

// Index holds a fixed set of geometries prepared for repeated intersection
// tests against the same layer.
type Index struct {
	geoms  []*geos.Geom
	bounds []orb.Bound
}

// NewIndex parses every geometry into GEOS once. Close releases them.
func NewIndex(gs []orb.Geometry) (*Index, error) {
	idx := &Index{
		geoms:  make([]*geos.Geom, 0, len(gs)),
		bounds: make([]orb.Bound, 0, len(gs)),
	}
	for i, g := range gs {
		gg, err := toGEOS(g)
		if err != nil {
			idx.Close()
			return nil, fmt.Errorf("geometry %d: %w", i, err)
		}
		idx.geoms = append(idx.geoms, gg)
		idx.bounds = append(idx.bounds, g.Bound())
	}
	return idx, nil
}

// First returns the position of the first indexed geometry intersecting g,
// or -1.
func (idx *Index) First(g orb.Geometry) (int, error) {
	gb := g.Bound()
	var q *geos.Geom
	for i, b := range idx.bounds {
		if !b.Intersects(gb) {
			continue
		}
		if q == nil {
			var err error
			if q, err = toGEOS(g); err != nil {
				return -1, err
			}
			defer q.Destroy()
		}
		if q.Intersects(idx.geoms[i]) {
			return i, nil
		}
	}
	return -1, nil
}

// Close releases the GEOS geometries.
func (idx *Index) Close() {
	for _, g := range idx.geoms {
		g.Destroy()
	}
	idx.geoms = nil
}
