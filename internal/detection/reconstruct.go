package detection

import (
	"fmt"
	"image"

	"github.com/ironsheep/minepoly/internal/geo"
	"github.com/ironsheep/minepoly/internal/geometry"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/paulmach/orb/simplify"
)

// Options controls mask cleanup and polygon filtering.
type Options struct {
	// MinObjectArea removes foreground blobs with fewer pixels.
	MinObjectArea int `json:"min_object_area" mapstructure:"min_object_area"`

	// MaxHoleArea fills enclosed background holes with fewer pixels.
	MaxHoleArea int `json:"max_hole_area" mapstructure:"max_hole_area"`

	// Tolerance is the Douglas-Peucker distance in raster pixels.
	Tolerance float64 `json:"tolerance" mapstructure:"tolerance"`

	// MinArea is the noise floor in square raster pixels. Polygons with
	// area <= MinArea are dropped.
	MinArea float64 `json:"min_area" mapstructure:"min_area"`
}

// DefaultOptions returns the settings the detector was calibrated with.
func DefaultOptions() Options {
	return Options{
		MinObjectArea: 9,
		MaxHoleArea:   9,
		Tolerance:     1,
		MinArea:       50,
	}
}

// Stats counts what happened to the traced components of one mask.
type Stats struct {
	// Components is the number of outer borders traced.
	Components int `json:"components"`

	// Degenerate counts rings with fewer than 3 vertices, before or after
	// simplification.
	Degenerate int `json:"degenerate"`

	// Split counts the extra polygons produced when repairing a
	// self-intersecting ring.
	Split int `json:"split"`

	// BelowAreaFloor counts polygons dropped by the area floor.
	BelowAreaFloor int `json:"below_area_floor"`

	// Kept is the number of polygons returned.
	Kept int `json:"kept"`
}

// Add returns the field-wise sum of two Stats.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Components:     s.Components + o.Components,
		Degenerate:     s.Degenerate + o.Degenerate,
		Split:          s.Split + o.Split,
		BelowAreaFloor: s.BelowAreaFloor + o.BelowAreaFloor,
		Kept:           s.Kept + o.Kept,
	}
}

// Polygons converts a mask into simplified polygons in raster coordinates.
//
// The mask is postprocessed first, then every outer border is traced,
// simplified, repaired and filtered by area. An empty result is not an
// error.
func Polygons(m *Mask, opts Options) ([]orb.Polygon, Stats, error) {
	var stats Stats
	clean := Postprocess(m, opts.MinObjectArea, opts.MaxHoleArea)
	dp := simplify.DouglasPeucker(opts.Tolerance)

	var out []orb.Polygon
	for _, border := range TraceOuterBorders(clean) {
		stats.Components++
		if len(border) < 3 {
			stats.Degenerate++
			continue
		}

		simple := dp.Polygon(orb.Polygon{ringFromPixels(border)})
		if len(simple) == 0 || len(simple[0]) < 4 {
			stats.Degenerate++
			continue
		}

		parts, err := geometry.Repair(simple)
		if err != nil {
			return nil, stats, fmt.Errorf("failed to repair polygon: %w", err)
		}
		if len(parts) == 0 {
			stats.Degenerate++
			continue
		}
		stats.Split += len(parts) - 1

		for _, p := range parts {
			if geometry.Area(p) <= opts.MinArea {
				stats.BelowAreaFloor++
				continue
			}
			out = append(out, p)
		}
	}
	stats.Kept = len(out)
	return out, stats, nil
}

// Reconstruct converts a mask into polygons in mosaic pixel coordinates.
//
// The mask must have the window's raster size on both axes; every vertex is
// mapped through w.RasterToMosaic.
func Reconstruct(m *Mask, w geo.Window, opts Options) ([]orb.Polygon, Stats, error) {
	if m.Width != w.RasterSize || m.Height != w.RasterSize {
		return nil, Stats{}, fmt.Errorf("mask is %dx%d, window expects %dx%d",
			m.Width, m.Height, w.RasterSize, w.RasterSize)
	}
	polys, stats, err := Polygons(m, opts)
	if err != nil {
		return nil, stats, err
	}
	for i := range polys {
		polys[i] = project.Polygon(polys[i], w.RasterToMosaic)
	}
	return polys, stats, nil
}

// ringFromPixels converts a traced border into a closed orb ring.
func ringFromPixels(border []image.Point) orb.Ring {
	r := make(orb.Ring, 0, len(border)+1)
	for _, p := range border {
		r = append(r, orb.Point{float64(p.X), float64(p.Y)})
	}
	return append(r, r[0])
}
