package geo

import (
	"math"
	"math/rand"

	"github.com/paulmach/orb"
)

// SearchWindow returns the square geographic query window for a candidate.
//
// The side length is the larger extent of the candidate bound grown by
// margin (a fraction, e.g. 0.5 adds half the extent) and never smaller than
// minSize degrees. The candidate is placed at a pseudo-random position
// inside the window so the detector does not learn that mines always sit
// in the centre. The placement is seeded by the candidate id and is
// therefore reproducible across runs and years.
//
// The candidate bound is always fully contained in the returned window.
func SearchWindow(b orb.Bound, id int64, margin, minSize float64) BoundingBox {
	w := b.Max.X() - b.Min.X()
	h := b.Max.Y() - b.Min.Y()
	side := math.Max(w, h) * (1 + margin)
	if side < minSize {
		side = minSize
	}

	rng := rand.New(rand.NewSource(id))
	slackX := side - w
	slackY := side - h
	minX := b.Min.X() - rng.Float64()*slackX
	minY := b.Min.Y() - rng.Float64()*slackY

	return BoundingBox{MinX: minX, MinY: minY, MaxX: minX + side, MaxY: minY + side}
}
