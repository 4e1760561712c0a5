package chips

import (
	"image"
	"math"

	"github.com/paulmach/orb"
	"golang.org/x/image/vector"

	"github.com/ironsheep/minepoly/internal/geo"
)

// MinVerticesInWindow is how many distinct exterior vertices of a neighbouring
// polygon must fall inside a window before the polygon is drawn into that
// window's training target. Polygons that only clip a corner are left out.
// This is a heuristic.
const MinVerticesInWindow = 3

// Site is a labelled polygon with the tiles it was looked up on.
type Site struct {
	ID       int64
	Geometry orb.Geometry
	TileIDs  []string
}

// Target rasterises the training target of self: a class map with 1 for
// mining and 0 elsewhere. Every site sharing a tile with self (self
// included) contributes each polygon part with at least
// MinVerticesInWindow distinct exterior vertices inside the window. Repeated
// vertices count once. Vertices outside are clamped onto the window border.
// It also returns the number of parts drawn.
func Target(f Frame, self Site, sites []Site) (*image.Gray, int) {
	size := f.Window.RasterSize
	cover := image.NewAlpha(image.Rect(0, 0, size, size))

	own := make(map[string]bool, len(self.TileIDs))
	for _, id := range self.TileIDs {
		own[id] = true
	}

	drawn := 0
	for _, s := range sites {
		if !sharesTile(own, s.TileIDs) {
			continue
		}
		for _, p := range parts(s.Geometry) {
			if len(p) == 0 {
				continue
			}
			ext := p[0]
			if len(ext) > 1 && ext.Closed() {
				ext = ext[:len(ext)-1]
			}
			ring := make([]orb.Point, len(ext))
			inside := make(map[orb.Point]struct{}, len(ext))
			for i, v := range ext {
				r := geo.GeoToRaster(f.Window, f.Projector, v)
				if r.X() >= 0 && r.X() <= float64(size) && r.Y() >= 0 && r.Y() <= float64(size) {
					inside[v] = struct{}{}
				}
				ring[i] = orb.Point{clamp(r.X(), float64(size)), clamp(r.Y(), float64(size))}
			}
			if len(inside) < MinVerticesInWindow {
				continue
			}
			fillRing(cover, ring)
			drawn++
		}
	}

	out := image.NewGray(cover.Bounds())
	for i, a := range cover.Pix {
		if a >= 0x80 {
			out.Pix[i] = 1
		}
	}
	return out, drawn
}

// fillRing composites the ring's interior onto dst.
func fillRing(dst *image.Alpha, ring []orb.Point) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.MoveTo(float32(ring[0].X()), float32(ring[0].Y()))
	for _, v := range ring[1:] {
		z.LineTo(float32(v.X()), float32(v.Y()))
	}
	z.ClosePath()
	z.Draw(dst, b, image.Opaque, image.Point{})
}

func sharesTile(own map[string]bool, ids []string) bool {
	for _, id := range ids {
		if own[id] {
			return true
		}
	}
	return false
}

func parts(g orb.Geometry) []orb.Polygon {
	switch g := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{g}
	case orb.MultiPolygon:
		return g
	}
	return nil
}

func clamp(v, max float64) float64 {
	return math.Min(math.Max(v, 0), max)
}
