// Package cluster merges overlapping predictions into canonical polygons.
//
// Neighbouring candidates are queried with overlapping windows, so the same
// mine is usually reconstructed several times at slightly different
// extents. Resolve dissolves all predictions and splits the result into
// its connected components.
package cluster

import (
	"fmt"
	"sort"

	"github.com/ironsheep/minepoly/internal/geometry"
	"github.com/paulmach/orb"
)

// Cluster is one connected component of the dissolved predictions. It
// keeps no reference to the predictions it was built from.
type Cluster struct {
	ID       int         `json:"id"`
	Geometry orb.Polygon `json:"-"`
}

// Resolve explodes every prediction into single polygons, unions them and
// returns the disjoint components with interior holes closed.
//
// A component lying inside another component's hole is absorbed when the
// hole is closed. The result is independent of input order and resolving
// it again returns the same clusters. Clusters are numbered from 0 in
// west-to-east, south-to-north order of their bounds.
func Resolve(predictions []orb.MultiPolygon) ([]Cluster, error) {
	var parts []orb.Polygon
	for _, mp := range predictions {
		parts = append(parts, geometry.Explode(mp)...)
	}
	if len(parts) == 0 {
		return nil, nil
	}

	// Closing holes can swallow components sitting inside them, which the
	// second pass merges.
	for pass := 0; pass < 2; pass++ {
		merged, err := geometry.UnaryUnion(parts)
		if err != nil {
			return nil, fmt.Errorf("failed to union predictions: %w", err)
		}
		parts = parts[:0]
		for _, p := range merged {
			parts = append(parts, geometry.CloseHoles(p))
		}
	}

	sort.SliceStable(parts, func(i, j int) bool {
		bi, bj := parts[i].Bound(), parts[j].Bound()
		if bi.Min.X() != bj.Min.X() {
			return bi.Min.X() < bj.Min.X()
		}
		if bi.Min.Y() != bj.Min.Y() {
			return bi.Min.Y() < bj.Min.Y()
		}
		return geometry.Area(parts[i]) < geometry.Area(parts[j])
	})

	out := make([]Cluster, len(parts))
	for i, p := range parts {
		out[i] = Cluster{ID: i, Geometry: p}
	}
	return out, nil
}
