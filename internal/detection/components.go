package detection

import "image"

// Component is one connected region of equal-valued mask pixels.
type Component struct {
	// Label is the 1-based component label.
	Label int

	// Start is the first pixel of the component in raster-scan order
	// (top-most row, then left-most column).
	Start image.Point

	// Area is the number of pixels in the component.
	Area int

	// TouchesBorder reports whether any pixel lies on the raster edge.
	TouchesBorder bool
}

// Labeling assigns every pixel of one value class to a component.
type Labeling struct {
	Width      int
	Height     int
	Labels     []int // 0 = pixel not in the labelled class
	Components []Component
}

// Label returns the component label at (x, y), or 0 outside the raster.
func (l *Labeling) Label(x, y int) int {
	if x < 0 || y < 0 || x >= l.Width || y >= l.Height {
		return 0
	}
	return l.Labels[y*l.Width+x]
}

var (
	neighbours4 = []image.Point{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}
	neighbours8 = []image.Point{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
)

// LabelComponents groups pixels whose value equals foreground into
// connected components.
//
// Parameters:
//   - m: Mask to label.
//   - foreground: Which pixel class to label (true = foreground blobs,
//     false = background regions, used for hole detection).
//   - eight: Use 8-connectivity (diagonals connect) instead of 4.
//
// Components are numbered in raster-scan order of their first pixel.
func LabelComponents(m *Mask, foreground, eight bool) *Labeling {
	l := &Labeling{Width: m.Width, Height: m.Height, Labels: make([]int, len(m.Pix))}
	nbrs := neighbours4
	if eight {
		nbrs = neighbours8
	}

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.At(x, y) != foreground || l.Labels[y*m.Width+x] != 0 {
				continue
			}
			c := Component{Label: len(l.Components) + 1, Start: image.Point{X: x, Y: y}}
			floodFill(m, l, &c, foreground, nbrs)
			l.Components = append(l.Components, c)
		}
	}
	return l
}

// floodFill performs iterative flood-fill from the component's start pixel.
//
// Uses a stack-based approach (not recursive) to avoid stack overflow on
// large blobs. Labels visited pixels and accumulates area and border
// contact on c.
func floodFill(m *Mask, l *Labeling, c *Component, foreground bool, nbrs []image.Point) {
	stack := []image.Point{c.Start}
	l.Labels[c.Start.Y*m.Width+c.Start.X] = c.Label

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		c.Area++
		if p.X == 0 || p.Y == 0 || p.X == m.Width-1 || p.Y == m.Height-1 {
			c.TouchesBorder = true
		}

		for _, d := range nbrs {
			q := p.Add(d)
			if q.X < 0 || q.X >= m.Width || q.Y < 0 || q.Y >= m.Height {
				continue
			}
			i := q.Y*m.Width + q.X
			if l.Labels[i] != 0 || m.At(q.X, q.Y) != foreground {
				continue
			}
			l.Labels[i] = c.Label
			stack = append(stack, q)
		}
	}
}

// Postprocess removes small speckles and fills small holes.
//
// Foreground components (8-connected) with fewer than minObjectArea pixels
// are cleared. Background regions (4-connected) that do not touch the
// raster edge and have fewer than maxHoleArea pixels are filled. With
// minObjectArea >= 2 the result contains no single-pixel islands.
//
// The input mask is not modified.
func Postprocess(m *Mask, minObjectArea, maxHoleArea int) *Mask {
	out := m.Clone()

	if minObjectArea > 1 {
		fg := LabelComponents(out, true, true)
		small := make(map[int]bool)
		for _, c := range fg.Components {
			if c.Area < minObjectArea {
				small[c.Label] = true
			}
		}
		if len(small) > 0 {
			for i, lbl := range fg.Labels {
				if small[lbl] {
					out.Pix[i] = 0
				}
			}
		}
	}

	if maxHoleArea > 0 {
		bg := LabelComponents(out, false, false)
		holes := make(map[int]bool)
		for _, c := range bg.Components {
			if !c.TouchesBorder && c.Area < maxHoleArea {
				holes[c.Label] = true
			}
		}
		if len(holes) > 0 {
			for i, lbl := range bg.Labels {
				if holes[lbl] {
					out.Pix[i] = 1
				}
			}
		}
	}

	return out
}
