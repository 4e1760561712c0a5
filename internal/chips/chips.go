// Package chips cuts candidate windows out of the tile mosaic into
// fixed-size inference chips and rasterises training targets.
package chips

import (
	"fmt"
	"image"
	"math"

	"github.com/paulmach/orb"

	"github.com/ironsheep/minepoly/internal/geo"
	"github.com/ironsheep/minepoly/internal/imaging"
)

// Frame pins a candidate to pixel space: the mosaic assembled from its
// tiles and the square window of that mosaic that becomes the chip.
type Frame struct {
	Projector geo.Projector
	Window    geo.Window
}

// Locate resolves the mosaic of tiles and snaps the geographic search
// window into it.
//
// Returns geo.ErrNoTiles when tiles is empty and geo.ErrDegenerate when the
// mosaic or the window has no usable extent.
func Locate(tiles []geo.TileDescriptor, search geo.BoundingBox, tilePixels, rasterSize int) (Frame, error) {
	m, err := geo.ResolveMosaic(tiles)
	if err != nil {
		return Frame{}, err
	}
	p, err := geo.NewProjector(m, tilePixels)
	if err != nil {
		return Frame{}, err
	}
	if !search.Valid() {
		return Frame{}, fmt.Errorf("%w: search window %+v", geo.ErrDegenerate, search)
	}
	w, err := geo.SnapWindow(p.BoxToMosaic(search), rasterSize)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Projector: p, Window: w}, nil
}

// Rect returns the window as an integer mosaic pixel rectangle.
func (f Frame) Rect() image.Rectangle {
	b := f.Window.Bounds
	return image.Rect(int(math.Round(b.MinX)), int(math.Round(b.MinY)), int(math.Round(b.MaxX)), int(math.Round(b.MaxY)))
}

// Builder produces chips from downloaded tiles.
type Builder struct {
	Cache      *imaging.ImageCache
	TilePath   func(tileID string) string
	TilePixels int
	RasterSize int
}

// Chip loads the tiles under the frame's window and returns the normalised,
// resized chip. Tiles that do not overlap the window are not read.
func (b *Builder) Chip(f Frame, tiles []geo.TileDescriptor) (*image.NRGBA, error) {
	rect := f.Rect()
	m := f.Projector.Mosaic()

	var placed []imaging.TileImage
	for _, t := range tiles {
		col, row := m.TileCell(t)
		cell := image.Rect(col*b.TilePixels, row*b.TilePixels, (col+1)*b.TilePixels, (row+1)*b.TilePixels)
		if !cell.Overlaps(rect) {
			continue
		}
		img, err := b.Cache.Load(b.TilePath(t.ID))
		if err != nil {
			return nil, fmt.Errorf("failed to load tile %s: %w", t.ID, err)
		}
		placed = append(placed, imaging.TileImage{Col: col, Row: row, Image: img})
	}
	return imaging.Chip(rect, placed, b.TilePixels, b.RasterSize)
}

// GridLines returns the raster positions of the tile borders that cross the
// frame's window, for quicklooks.
func (f Frame) GridLines(tilePixels int) (xs, ys []float64) {
	m := f.Projector.Mosaic()
	b := f.Window.Bounds
	for c := 1; c < m.TilesX; c++ {
		x := float64(c * tilePixels)
		if x > b.MinX && x < b.MaxX {
			xs = append(xs, f.Window.MosaicToRaster(orb.Point{x, b.MinY}).X())
		}
	}
	for r := 1; r < m.TilesY; r++ {
		y := float64(r * tilePixels)
		if y > b.MinY && y < b.MaxY {
			ys = append(ys, f.Window.MosaicToRaster(orb.Point{b.MinX, y}).Y())
		}
	}
	return xs, ys
}
