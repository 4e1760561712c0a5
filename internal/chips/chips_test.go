package chips

import (
	"errors"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"

	"github.com/ironsheep/minepoly/internal/geo"
	"github.com/ironsheep/minepoly/internal/imaging"
)

func tile(id string, minX, minY, maxX, maxY float64) geo.TileDescriptor {
	return geo.TileDescriptor{ID: id, BBox: geo.BoundingBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}}
}

// createTileFile writes a size x size gradient tile and returns its path.
func createTileFile(t *testing.T, dir, id string, size int, seed uint8) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: uint8(x+y) + seed, A: 255})
		}
	}
	path := filepath.Join(dir, id+".png")
	if err := imaging.SavePNG(path, img); err != nil {
		t.Fatalf("failed to write tile: %v", err)
	}
	return path
}

func TestLocate(t *testing.T) {
	tiles := []geo.TileDescriptor{tile("a", 0, 0, 10, 10)}

	f, err := Locate(tiles, geo.BoundingBox{MinX: 2, MinY: 2, MaxX: 6, MaxY: 6}, 100, 512)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	want := geo.BoundingBox{MinX: 20, MinY: 40, MaxX: 60, MaxY: 80}
	if f.Window.Bounds != want {
		t.Errorf("window: got %+v, want %+v", f.Window.Bounds, want)
	}
	if f.Rect() != image.Rect(20, 40, 60, 80) {
		t.Errorf("rect: got %v", f.Rect())
	}
}

func TestLocateErrors(t *testing.T) {
	if _, err := Locate(nil, geo.BoundingBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, 100, 512); !errors.Is(err, geo.ErrNoTiles) {
		t.Errorf("no tiles: got %v, want ErrNoTiles", err)
	}

	tiles := []geo.TileDescriptor{tile("a", 0, 0, 10, 10)}
	bad := geo.BoundingBox{MinX: 1, MinY: 1, MaxX: math.NaN(), MaxY: 2}
	if _, err := Locate(tiles, bad, 100, 512); !errors.Is(err, geo.ErrDegenerate) {
		t.Errorf("NaN window: got %v, want ErrDegenerate", err)
	}

	tiny := geo.BoundingBox{MinX: 1, MinY: 1, MaxX: 1.01, MaxY: 1.01}
	if _, err := Locate(tiles, tiny, 10, 512); !errors.Is(err, geo.ErrDegenerate) {
		t.Errorf("sub-pixel window: got %v, want ErrDegenerate", err)
	}
}

func TestBuilderChip(t *testing.T) {
	dir := t.TempDir()
	createTileFile(t, dir, "west", 32, 0)
	createTileFile(t, dir, "east", 32, 100)
	tiles := []geo.TileDescriptor{tile("west", 0, 0, 10, 10), tile("east", 10, 0, 20, 10)}

	b := &Builder{
		Cache:      imaging.NewImageCache(),
		TilePath:   func(id string) string { return filepath.Join(dir, id+".png") },
		TilePixels: 32,
		RasterSize: 64,
	}

	f, err := Locate(tiles, geo.BoundingBox{MinX: 5, MinY: 2, MaxX: 15, MaxY: 8}, 32, 64)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	chip, err := b.Chip(f, tiles)
	if err != nil {
		t.Fatalf("Chip failed: %v", err)
	}
	if chip.Bounds() != image.Rect(0, 0, 64, 64) {
		t.Errorf("chip bounds: got %v", chip.Bounds())
	}
	if b.Cache.Len() != 2 {
		t.Errorf("window spans both tiles, loaded %d", b.Cache.Len())
	}
}

func TestBuilderChipLoadsOnlyOverlappingTiles(t *testing.T) {
	dir := t.TempDir()
	createTileFile(t, dir, "west", 32, 0)
	tiles := []geo.TileDescriptor{tile("west", 0, 0, 10, 10), tile("east", 10, 0, 20, 10)}

	b := &Builder{
		Cache:      imaging.NewImageCache(),
		TilePath:   func(id string) string { return filepath.Join(dir, id+".png") },
		TilePixels: 32,
		RasterSize: 64,
	}

	f, err := Locate(tiles, geo.BoundingBox{MinX: 1, MinY: 1, MaxX: 4, MaxY: 4}, 32, 64)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if _, err := b.Chip(f, tiles); err != nil {
		t.Fatalf("Chip failed: %v", err)
	}
	if b.Cache.Len() != 1 {
		t.Errorf("only the west tile should be read, loaded %d", b.Cache.Len())
	}
}

func TestBuilderChipMissingTile(t *testing.T) {
	tiles := []geo.TileDescriptor{tile("gone", 0, 0, 10, 10)}
	b := &Builder{
		Cache:      imaging.NewImageCache(),
		TilePath:   func(id string) string { return filepath.Join(t.TempDir(), id+".tiff") },
		TilePixels: 32,
		RasterSize: 64,
	}
	f, _ := Locate(tiles, geo.BoundingBox{MinX: 1, MinY: 1, MaxX: 4, MaxY: 4}, 32, 64)
	if _, err := b.Chip(f, tiles); err == nil {
		t.Error("Chip should fail when a tile is missing")
	}
}

func square(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}}
}

func TestTarget(t *testing.T) {
	tiles := []geo.TileDescriptor{tile("a", 0, 0, 10, 10)}
	f, err := Locate(tiles, geo.BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, 512, 512)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}

	self := Site{ID: 1, Geometry: square(2, 6, 4, 8), TileIDs: []string{"a"}}
	sites := []Site{
		self,
		// Only two vertices inside the window.
		{ID: 2, Geometry: square(9, 1, 12, 3), TileIDs: []string{"a"}},
		// Mostly inside, one vertex clamped to the east border.
		{ID: 3, Geometry: orb.Polygon{{{8, 8}, {9, 8}, {11, 8.5}, {9, 9}, {8, 9}, {8, 8}}}, TileIDs: []string{"a", "b"}},
		// Inside the window but looked up on another tile.
		{ID: 4, Geometry: square(6, 2, 7, 3), TileIDs: []string{"z"}},
		// Three vertices inside, all the same point.
		{ID: 5, Geometry: orb.Polygon{{{9, 2}, {9, 2}, {9, 2}, {12, 2}, {12, 3}, {9, 2}}}, TileIDs: []string{"a"}},
	}

	target, drawn := Target(f, self, sites)
	if drawn != 2 {
		t.Errorf("drawn: got %d, want 2", drawn)
	}

	tests := []struct {
		name string
		x, y int
		want uint8
	}{
		{"self interior", 150, 150, 1},
		{"background", 50, 50, 0},
		{"corner clip excluded", 470, 430, 0},
		{"clamped neighbour", 500, 76, 1},
		{"other tile excluded", 333, 383, 0},
		{"repeated vertices excluded", 505, 400, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := target.GrayAt(tt.x, tt.y).Y; got != tt.want {
				t.Errorf("pixel (%d,%d): got %d, want %d", tt.x, tt.y, got, tt.want)
			}
		})
	}

	// The self square spans 102.4 raster pixels per side; everything west
	// of x=300 belongs to it.
	count := 0
	for y := 0; y < 512; y++ {
		for x := 0; x < 300; x++ {
			if target.GrayAt(x, y).Y == 1 {
				count++
			}
		}
	}
	if count < 10400 || count > 10700 {
		t.Errorf("self foreground pixels: got %d, want about 10486", count)
	}
}

func TestGridLines(t *testing.T) {
	tiles := []geo.TileDescriptor{tile("w", 0, 0, 10, 10), tile("e", 10, 0, 20, 10)}
	f, err := Locate(tiles, geo.BoundingBox{MinX: 5, MinY: 0, MaxX: 15, MaxY: 10}, 64, 128)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}

	xs, ys := f.GridLines(64)
	if len(xs) != 1 || len(ys) != 0 {
		t.Fatalf("got xs=%v ys=%v, want one vertical line", xs, ys)
	}
	// Window starts at mosaic x=32 and is 64 px wide; the seam at x=64 is
	// the middle of a 128 px raster.
	if math.Abs(xs[0]-64) > 1e-9 {
		t.Errorf("seam: got %v, want 64", xs[0])
	}
}
