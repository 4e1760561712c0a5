package geo

import (
	"math"
	"sort"
)

// DefaultTilePixels is the edge length of one provider tile in pixels.
const DefaultTilePixels = 4096

// edgeEpsilon absorbs float noise in provider bboxes when deciding whether
// two tiles share a grid column or row.
const edgeEpsilon = 1e-9

// MosaicGeometry describes the grid of tiles covering one candidate.
//
// It is derived from the tile list on demand and never stored.
type MosaicGeometry struct {
	// Combined is the union of all tile bounding boxes (geographic).
	Combined BoundingBox `json:"combined_bbox"`

	// TilesX is the number of tile columns spanned by the mosaic.
	TilesX int `json:"tile_count_x"`

	// TilesY is the number of tile rows spanned by the mosaic.
	TilesY int `json:"tile_count_y"`
}

// ResolveMosaic computes the grid dimensions and combined bounding box of a
// set of tiles.
//
// Every tile is treated as one unit cell. The number of distinct western
// edges gives the column count and the number of distinct southern edges
// gives the row count.
//
// Returns ErrNoTiles for an empty list and ErrDegenerate when any tile bbox
// is invalid.
func ResolveMosaic(tiles []TileDescriptor) (MosaicGeometry, error) {
	if len(tiles) == 0 {
		return MosaicGeometry{}, ErrNoTiles
	}

	combined := tiles[0].BBox
	minXs := make([]float64, 0, len(tiles))
	minYs := make([]float64, 0, len(tiles))
	for _, t := range tiles {
		if !t.BBox.Valid() {
			return MosaicGeometry{}, ErrDegenerate
		}
		combined = combined.Union(t.BBox)
		minXs = append(minXs, t.BBox.MinX)
		minYs = append(minYs, t.BBox.MinY)
	}

	return MosaicGeometry{
		Combined: combined,
		TilesX:   countDistinct(minXs),
		TilesY:   countDistinct(minYs),
	}, nil
}

// countDistinct counts values that differ by more than edgeEpsilon.
func countDistinct(values []float64) int {
	sort.Float64s(values)
	n := 1
	for i := 1; i < len(values); i++ {
		if values[i]-values[i-1] > edgeEpsilon {
			n++
		}
	}
	return n
}

// PixelSize returns the mosaic size in pixels for the given tile edge length.
func (m MosaicGeometry) PixelSize(tilePixels int) (width, height int) {
	return tilePixels * m.TilesX, tilePixels * m.TilesY
}

// TileCell returns the grid cell (column, row) of a tile inside the mosaic.
// Row 0 is the northernmost row.
func (m MosaicGeometry) TileCell(t TileDescriptor) (col, row int) {
	cellW := m.Combined.Width() / float64(m.TilesX)
	cellH := m.Combined.Height() / float64(m.TilesY)
	col = int(math.Round((t.BBox.MinX - m.Combined.MinX) / cellW))
	row = int(math.Round((m.Combined.MaxY - t.BBox.MaxY) / cellH))
	return col, row
}
