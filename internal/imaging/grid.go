package imaging

import (
	"image"
	"image/color"
	"math"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb"
)

// DefaultGridColor is used when a quicklook grid colour cannot be parsed.
const DefaultGridColor = "#ff0000"

// QuicklookOptions controls quicklook rendering.
type QuicklookOptions struct {
	// GridX and GridY are raster positions of tile borders to draw.
	GridX, GridY []float64
	// GridColor is a hex colour such as "#00ff00".
	GridColor string
	// Labels draws each polygon's index next to its first vertex.
	Labels bool
}

// Quicklook draws polygon outlines over base, one colour per polygon, plus
// the tile grid. Polygons are in base's pixel coordinates.
func Quicklook(base image.Image, polygons []orb.Polygon, opts QuicklookOptions) *image.NRGBA {
	out := imaging.Clone(base)
	b := out.Bounds()

	gridColor, err := colorful.Hex(opts.GridColor)
	if err != nil {
		gridColor, _ = colorful.Hex(DefaultGridColor)
	}
	grid := toNRGBA(gridColor)
	for _, gx := range opts.GridX {
		x := int(math.Round(gx))
		drawLine(out, x, b.Min.Y, x, b.Max.Y-1, grid)
	}
	for _, gy := range opts.GridY {
		y := int(math.Round(gy))
		drawLine(out, b.Min.X, y, b.Max.X-1, y, grid)
	}

	if len(polygons) == 0 {
		return out
	}
	palette := colorful.FastHappyPalette(len(polygons))
	for i, p := range polygons {
		c := toNRGBA(palette[i])
		for _, ring := range p {
			for j := 1; j < len(ring); j++ {
				a, z := ring[j-1], ring[j]
				drawLine(out, int(math.Round(a[0])), int(math.Round(a[1])),
					int(math.Round(z[0])), int(math.Round(z[1])), c)
			}
		}
		if opts.Labels && len(p) > 0 && len(p[0]) > 0 {
			v := p[0][0]
			drawLabel(out, int(v[0])+2, int(v[1])+2, strconv.Itoa(i), c, color.NRGBA{0, 0, 0, 180})
		}
	}
	return out
}

func toNRGBA(c colorful.Color) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}
}

// drawLine rasterises a segment with Bresenham's algorithm, clipping to img.
func drawLine(img *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	b := img.Bounds()
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if image.Pt(x0, y0).In(b) {
			img.SetNRGBA(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawLabel draws a label with a 3x5 pixel digit font.
func drawLabel(img *image.NRGBA, x, y int, text string, fg, bg color.NRGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
	}

	b := img.Bounds()
	const charWidth, labelHeight = 4, 7
	labelWidth := len(text) * charWidth

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			if p := image.Pt(x+dx, y+dy); p.In(b) {
				img.SetNRGBA(p.X, p.Y, bg)
			}
		}
	}

	cx := x
	for _, ch := range text {
		for row, line := range glyphs[ch] {
			for col, pixel := range line {
				if p := image.Pt(cx+col, y+row); pixel == '1' && p.In(b) {
					img.SetNRGBA(p.X, p.Y, fg)
				}
			}
		}
		cx += charWidth
	}
}
