package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Projector maps between geographic coordinates and mosaic pixels.
//
// Mosaic column 0 is the western edge of the combined tile bbox and row 0 is
// its northern edge, so latitude decreases as the row index grows.
type Projector struct {
	mosaic MosaicGeometry
	width  float64
	height float64
}

// NewProjector creates a projector for a mosaic whose tiles are tilePixels
// wide and high.
//
// Returns ErrDegenerate when the combined bbox is invalid or tilePixels is
// not positive.
func NewProjector(m MosaicGeometry, tilePixels int) (Projector, error) {
	if !m.Combined.Valid() || tilePixels <= 0 || m.TilesX < 1 || m.TilesY < 1 {
		return Projector{}, ErrDegenerate
	}
	w, h := m.PixelSize(tilePixels)
	return Projector{mosaic: m, width: float64(w), height: float64(h)}, nil
}

// Mosaic returns the mosaic geometry the projector was built from.
func (p Projector) Mosaic() MosaicGeometry { return p.mosaic }

// GeoToMosaic maps a lon/lat point to fractional mosaic pixel coordinates.
func (p Projector) GeoToMosaic(pt orb.Point) orb.Point {
	b := p.mosaic.Combined
	return orb.Point{
		(pt.X() - b.MinX) / b.Width() * p.width,
		(b.MaxY - pt.Y()) / b.Height() * p.height,
	}
}

// MosaicToGeo maps fractional mosaic pixel coordinates to lon/lat.
func (p Projector) MosaicToGeo(pt orb.Point) orb.Point {
	b := p.mosaic.Combined
	return orb.Point{
		b.MinX + pt.X()*b.Width()/p.width,
		b.MaxY - pt.Y()*b.Height()/p.height,
	}
}

// BoxToMosaic maps a geographic box into mosaic pixels. The returned MinY is
// the top (northern) row.
func (p Projector) BoxToMosaic(b BoundingBox) BoundingBox {
	nw := p.GeoToMosaic(orb.Point{b.MinX, b.MaxY})
	se := p.GeoToMosaic(orb.Point{b.MaxX, b.MinY})
	return BoundingBox{MinX: nw.X(), MinY: nw.Y(), MaxX: se.X(), MaxY: se.Y()}
}

// GeometryToMosaic returns a copy of g with every vertex in mosaic pixels.
func (p Projector) GeometryToMosaic(g orb.Geometry) orb.Geometry {
	return project.Geometry(orb.Clone(g), p.GeoToMosaic)
}

// GeometryToGeo returns a copy of g with every vertex in lon/lat.
func (p Projector) GeometryToGeo(g orb.Geometry) orb.Geometry {
	return project.Geometry(orb.Clone(g), p.MosaicToGeo)
}

// Window is the square crop of the mosaic that was resized into the
// fixed-size inference raster.
type Window struct {
	// Bounds is the crop in mosaic pixels. MinX/MinY is the top-left corner.
	Bounds BoundingBox `json:"bounds"`

	// RasterSize is the edge length of the inference raster (512).
	RasterSize int `json:"raster_size"`
}

// DefaultRasterSize is the model's inference resolution.
const DefaultRasterSize = 512

// NewWindow validates a mosaic-pixel crop.
func NewWindow(bounds BoundingBox, rasterSize int) (Window, error) {
	if !bounds.Valid() || rasterSize <= 0 {
		return Window{}, fmt.Errorf("%w: window %+v", ErrDegenerate, bounds)
	}
	return Window{Bounds: bounds, RasterSize: rasterSize}, nil
}

// SnapWindow aligns a mosaic-pixel box to whole pixels and squares it.
//
// The top-left corner is floored and the edge length is the floored width,
// matching the integer crop used when the inference chip was cut out of the
// mosaic.
func SnapWindow(bounds BoundingBox, rasterSize int) (Window, error) {
	if !bounds.Valid() {
		return Window{}, fmt.Errorf("%w: window %+v", ErrDegenerate, bounds)
	}
	minX := math.Floor(bounds.MinX)
	minY := math.Floor(bounds.MinY)
	size := math.Floor(bounds.Width())
	if size < 1 {
		return Window{}, fmt.Errorf("%w: window narrower than one pixel", ErrDegenerate)
	}
	return NewWindow(BoundingBox{MinX: minX, MinY: minY, MaxX: minX + size, MaxY: minY + size}, rasterSize)
}

// Scale returns the number of mosaic pixels per raster pixel on each axis.
func (w Window) Scale() (sx, sy float64) {
	r := float64(w.RasterSize)
	return w.Bounds.Width() / r, w.Bounds.Height() / r
}

// RasterToMosaic maps raster pixel coordinates into the mosaic.
func (w Window) RasterToMosaic(pt orb.Point) orb.Point {
	sx, sy := w.Scale()
	return orb.Point{w.Bounds.MinX + pt.X()*sx, w.Bounds.MinY + pt.Y()*sy}
}

// MosaicToRaster is the inverse of RasterToMosaic.
func (w Window) MosaicToRaster(pt orb.Point) orb.Point {
	sx, sy := w.Scale()
	return orb.Point{(pt.X() - w.Bounds.MinX) / sx, (pt.Y() - w.Bounds.MinY) / sy}
}

// RasterToGeo composes RasterToMosaic and MosaicToGeo.
func RasterToGeo(w Window, p Projector, pt orb.Point) orb.Point {
	return p.MosaicToGeo(w.RasterToMosaic(pt))
}

// GeoToRaster composes GeoToMosaic and MosaicToRaster.
func GeoToRaster(w Window, p Projector, pt orb.Point) orb.Point {
	return w.MosaicToRaster(p.GeoToMosaic(pt))
}
