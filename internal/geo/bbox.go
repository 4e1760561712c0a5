package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

var (
	// ErrNoTiles is returned when a mosaic is requested for an empty tile list.
	ErrNoTiles = errors.New("no tiles cover the region")

	// ErrDegenerate is returned for bounding boxes or windows with NaN,
	// infinite or inverted coordinates.
	ErrDegenerate = errors.New("degenerate bounding box")
)

// BoundingBox is an axis-aligned box in either geographic or pixel space.
//
// In pixel space MinY is the top row. In geographic space MinY is the
// southern edge.
type BoundingBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// BoundingBoxFromSlice builds a box from the provider's [minx, miny, maxx, maxy]
// array encoding.
func BoundingBoxFromSlice(v []float64) (BoundingBox, error) {
	if len(v) != 4 {
		return BoundingBox{}, fmt.Errorf("bbox must have 4 values, got %d", len(v))
	}
	return BoundingBox{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}, nil
}

// FromBound converts an orb bound.
func FromBound(b orb.Bound) BoundingBox {
	return BoundingBox{MinX: b.Min.X(), MinY: b.Min.Y(), MaxX: b.Max.X(), MaxY: b.Max.Y()}
}

// Bound converts the box to an orb bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinX, b.MinY}, Max: orb.Point{b.MaxX, b.MaxY}}
}

// Width is MaxX - MinX.
func (b BoundingBox) Width() float64 { return b.MaxX - b.MinX }

// Height is MaxY - MinY.
func (b BoundingBox) Height() float64 { return b.MaxY - b.MinY }

// Valid reports whether all coordinates are finite and the box has a
// positive extent on both axes.
func (b BoundingBox) Valid() bool {
	for _, v := range []float64{b.MinX, b.MinY, b.MaxX, b.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.MinX < b.MaxX && b.MinY < b.MaxY
}

// Union returns the smallest box containing both boxes.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// Contains reports whether p lies inside the box, borders included.
func (b BoundingBox) Contains(p orb.Point) bool {
	return p.X() >= b.MinX && p.X() <= b.MaxX && p.Y() >= b.MinY && p.Y() <= b.MaxY
}

// CSV renders the box as "minx,miny,maxx,maxy", the provider's query format.
func (b BoundingBox) CSV() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// TileDescriptor is one imagery tile (a "quad") returned by the provider.
type TileDescriptor struct {
	// ID is the provider's quad id, e.g. "1024-1032".
	ID string `json:"id"`

	// BBox is the geographic extent of the tile.
	BBox BoundingBox `json:"bbox"`

	// DownloadRef is the opaque download URL. Empty when the provider
	// reported the tile without a download link.
	DownloadRef string `json:"download_ref,omitempty"`
}

// Downloadable reports whether the tile carries a download reference.
func (t TileDescriptor) Downloadable() bool { return t.DownloadRef != "" }
