package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ErrNoOverlap is returned when a window does not touch any supplied tile.
var ErrNoOverlap = errors.New("window does not overlap any tile")

// TileImage places a decoded imagery tile in the mosaic grid. Col counts
// from the west edge, Row from the north edge.
type TileImage struct {
	Col, Row int
	Image    image.Image
}

// Bands holds the visible bands of a mosaic window at native 16-bit depth,
// row-major, one value per pixel.
type Bands struct {
	Width, Height int
	R, G, B       []uint16

	// Covered counts the window pixels that fell on a tile. Pixels outside
	// every tile stay zero.
	Covered int
}

func newBands(width, height int) *Bands {
	n := width * height
	return &Bands{
		Width:  width,
		Height: height,
		R:      make([]uint16, n),
		G:      make([]uint16, n),
		B:      make([]uint16, n),
	}
}

// CutWindow copies the mosaic pixels inside rect out of the given tiles.
//
// Parameters:
//   - rect: the window in mosaic pixel coordinates, half-open.
//   - tiles: decoded tiles with their grid cells. Every tile image must be
//     tilePixels x tilePixels.
//   - tilePixels: side length of one tile in pixels.
//
// Only the overlapping part of each tile is read, so the full mosaic is
// never materialised.
func CutWindow(rect image.Rectangle, tiles []TileImage, tilePixels int) (*Bands, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("invalid window: %v", rect)
	}
	if tilePixels <= 0 {
		return nil, fmt.Errorf("invalid tile size: %d", tilePixels)
	}

	out := newBands(rect.Dx(), rect.Dy())
	for _, t := range tiles {
		src := t.Image.Bounds()
		if src.Dx() != tilePixels || src.Dy() != tilePixels {
			return nil, fmt.Errorf("tile (%d,%d) is %dx%d, want %dx%d",
				t.Col, t.Row, src.Dx(), src.Dy(), tilePixels, tilePixels)
		}

		cell := image.Rect(t.Col*tilePixels, t.Row*tilePixels, (t.Col+1)*tilePixels, (t.Row+1)*tilePixels)
		overlap := rect.Intersect(cell)
		if overlap.Empty() {
			continue
		}

		for y := overlap.Min.Y; y < overlap.Max.Y; y++ {
			row := (y - rect.Min.Y) * out.Width
			for x := overlap.Min.X; x < overlap.Max.X; x++ {
				r, g, b := rgb16(t.Image, src.Min.X+x-cell.Min.X, src.Min.Y+y-cell.Min.Y)
				i := row + x - rect.Min.X
				out.R[i], out.G[i], out.B[i] = r, g, b
			}
		}
		out.Covered += overlap.Dx() * overlap.Dy()
	}

	if out.Covered == 0 {
		return nil, ErrNoOverlap
	}
	return out, nil
}

// rgb16 reads the visible bands of a pixel without alpha premultiplication.
func rgb16(img image.Image, x, y int) (r, g, b uint16) {
	switch im := img.(type) {
	case *image.NRGBA64:
		i := im.PixOffset(x, y)
		p := im.Pix[i : i+6 : i+6]
		return uint16(p[0])<<8 | uint16(p[1]), uint16(p[2])<<8 | uint16(p[3]), uint16(p[4])<<8 | uint16(p[5])
	case *image.RGBA64:
		i := im.PixOffset(x, y)
		p := im.Pix[i : i+6 : i+6]
		return uint16(p[0])<<8 | uint16(p[1]), uint16(p[2])<<8 | uint16(p[3]), uint16(p[4])<<8 | uint16(p[5])
	case *image.NRGBA:
		i := im.PixOffset(x, y)
		return widen(im.Pix[i]), widen(im.Pix[i+1]), widen(im.Pix[i+2])
	case *image.RGBA:
		i := im.PixOffset(x, y)
		return widen(im.Pix[i]), widen(im.Pix[i+1]), widen(im.Pix[i+2])
	}
	c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
	return c.R, c.G, c.B
}

func widen(v uint8) uint16 { return uint16(v)<<8 | uint16(v) }

// Resize scales img to a size x size square with bicubic (Catmull-Rom)
// interpolation.
func Resize(img image.Image, size int) *image.NRGBA {
	return imaging.Resize(img, size, size, imaging.CatmullRom)
}

// Chip cuts rect out of the tiles, stretches each band to 8 bits and resizes
// the result to a size x size inference chip.
func Chip(rect image.Rectangle, tiles []TileImage, tilePixels, size int) (*image.NRGBA, error) {
	bands, err := CutWindow(rect, tiles, tilePixels)
	if err != nil {
		return nil, err
	}
	img, err := bands.Normalize()
	if err != nil {
		return nil, err
	}
	return Resize(img, size), nil
}
