package detection

import "image"

// mooreDirs lists the 8 neighbour offsets clockwise (Y down), starting east.
var mooreDirs = [8]image.Point{
	{1, 0},   // E
	{1, 1},   // SE
	{0, 1},   // S
	{-1, 1},  // SW
	{-1, 0},  // W
	{-1, -1}, // NW
	{0, -1},  // N
	{1, -1},  // NE
}

const dirWest = 4

func dirIndex(d image.Point) int {
	for i, v := range mooreDirs {
		if v == d {
			return i
		}
	}
	return -1
}

// TraceOuterBorders returns the outer border of every 8-connected
// foreground component as an open ring of pixel positions.
//
// Interior holes are not traced. Collinear runs along the border are
// compressed to their end points, so a filled rectangle yields its four
// corners. Rings are returned in raster-scan order of their components.
// A ring may have fewer than 3 vertices (single pixels, one-pixel-wide
// lines); callers decide what to do with those.
func TraceOuterBorders(m *Mask) [][]image.Point {
	l := LabelComponents(m, true, true)
	rings := make([][]image.Point, 0, len(l.Components))
	for _, c := range l.Components {
		border := traceBorder(l, c)
		rings = append(rings, compressRing(border))
	}
	return rings
}

// traceBorder follows the outer border of c clockwise with Moore-neighbour
// tracing.
//
// The start pixel is the component's first pixel in raster-scan order, so
// its west neighbour is background and serves as the initial backtrack.
// Tracing stops when the start pixel is about to be left in the same
// direction as the very first move.
func traceBorder(l *Labeling, c Component) []image.Point {
	inside := func(p image.Point) bool { return l.Label(p.X, p.Y) == c.Label }

	start := c.Start
	ring := []image.Point{start}
	cur := start
	back := dirWest
	firstDir := -1

	// Each border pixel can be visited at most four times.
	limit := 4*c.Area + 8
	for step := 0; step < limit; step++ {
		found := -1
		for i := 1; i <= 8; i++ {
			d := (back + i) % 8
			if inside(cur.Add(mooreDirs[d])) {
				found = d
				break
			}
		}
		if found < 0 {
			// isolated pixel
			return ring
		}
		if cur == start && found == firstDir {
			break
		}
		if firstDir < 0 {
			firstDir = found
		}

		// The neighbour checked just before found is background and becomes
		// the backtrack of the next pixel.
		bp := cur.Add(mooreDirs[(found+7)%8])
		next := cur.Add(mooreDirs[found])
		back = dirIndex(bp.Sub(next))
		cur = next
		ring = append(ring, cur)
	}

	// The last appended pixel is the start again.
	if len(ring) > 1 && ring[len(ring)-1] == start {
		ring = ring[:len(ring)-1]
	}
	return ring
}

// compressRing drops every vertex whose incoming and outgoing steps have
// the same direction.
func compressRing(ring []image.Point) []image.Point {
	n := len(ring)
	if n < 3 {
		return ring
	}
	out := make([]image.Point, 0, n)
	for i, p := range ring {
		prev := ring[(i+n-1)%n]
		next := ring[(i+1)%n]
		if p.Sub(prev) != next.Sub(p) {
			out = append(out, p)
		}
	}
	return out
}
