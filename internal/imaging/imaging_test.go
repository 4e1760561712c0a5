package imaging

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

// createTestImage creates an in-memory image filled with a single colour.
func createTestImage(width, height int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createGradientTile creates a 16-bit tile whose red band encodes x, green
// encodes y and blue the tile's own id.
func createGradientTile(size int, id uint16) *image.NRGBA64 {
	img := image.NewNRGBA64(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetNRGBA64(x, y, color.NRGBA64{R: uint16(x), G: uint16(y), B: id, A: 0})
		}
	}
	return img
}

func TestImageCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.png")
	if err := SavePNG(path, createTestImage(20, 10, color.NRGBA{255, 0, 0, 255})); err != nil {
		t.Fatalf("SavePNG failed: %v", err)
	}

	cache := NewImageCache()
	img1, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img1.Bounds().Dx() != 20 || img1.Bounds().Dy() != 10 {
		t.Errorf("dimensions: got %v, want 20x10", img1.Bounds())
	}

	img2, _ := cache.Load(path)
	if img1 != img2 {
		t.Error("second Load should return the cached image")
	}
	if cache.Len() != 1 {
		t.Errorf("Len: got %d, want 1", cache.Len())
	}

	// Rewriting the file in place must not serve the old pixels.
	if err := SavePNG(path, createTestImage(30, 10, color.NRGBA{0, 255, 0, 255})); err != nil {
		t.Fatalf("SavePNG failed: %v", err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}
	img3, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load after rewrite failed: %v", err)
	}
	if img3.Bounds().Dx() != 30 {
		t.Errorf("Load after rewrite returned the stale image: %v", img3.Bounds())
	}
	if cache.Len() != 1 {
		t.Errorf("Len after rewrite: got %d, want 1", cache.Len())
	}

	if _, err := cache.Load(filepath.Join(t.TempDir(), "missing.tiff")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestImageCacheConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.png")
	if err := SavePNG(path, createTestImage(8, 8, color.White)); err != nil {
		t.Fatalf("SavePNG failed: %v", err)
	}

	cache := NewImageCache()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(path); err != nil {
				t.Errorf("concurrent Load failed: %v", err)
			}
		}()
	}
	wg.Wait()

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len after Clear: got %d, want 0", cache.Len())
	}
}

func TestCutWindowSingleTile(t *testing.T) {
	tiles := []TileImage{{Col: 0, Row: 0, Image: createGradientTile(64, 7)}}

	b, err := CutWindow(image.Rect(10, 20, 30, 50), tiles, 64)
	if err != nil {
		t.Fatalf("CutWindow failed: %v", err)
	}
	if b.Width != 20 || b.Height != 30 {
		t.Fatalf("dimensions: got %dx%d, want 20x30", b.Width, b.Height)
	}
	if b.Covered != 600 {
		t.Errorf("Covered: got %d, want 600", b.Covered)
	}
	// Pixel (0,0) of the window is mosaic pixel (10,20).
	if b.R[0] != 10 || b.G[0] != 20 || b.B[0] != 7 {
		t.Errorf("first pixel: got (%d,%d,%d), want (10,20,7)", b.R[0], b.G[0], b.B[0])
	}
}

func TestCutWindowAcrossTiles(t *testing.T) {
	tiles := []TileImage{
		{Col: 0, Row: 0, Image: createGradientTile(32, 1)},
		{Col: 1, Row: 0, Image: createGradientTile(32, 2)},
	}

	b, err := CutWindow(image.Rect(24, 0, 40, 8), tiles, 32)
	if err != nil {
		t.Fatalf("CutWindow failed: %v", err)
	}

	// Columns 0..7 come from the west tile, 8..15 from the east tile.
	if b.B[7] != 1 || b.B[8] != 2 {
		t.Errorf("tile seam: got ids %d|%d, want 1|2", b.B[7], b.B[8])
	}
	if b.R[8] != 0 {
		t.Errorf("east tile should start at its own column 0, got %d", b.R[8])
	}
}

func TestCutWindowErrors(t *testing.T) {
	tiles := []TileImage{{Col: 0, Row: 0, Image: createGradientTile(16, 1)}}

	tests := []struct {
		name       string
		rect       image.Rectangle
		tiles      []TileImage
		tilePixels int
	}{
		{"empty window", image.Rect(5, 5, 5, 10), tiles, 16},
		{"no overlap", image.Rect(100, 100, 110, 110), tiles, 16},
		{"tile size mismatch", image.Rect(0, 0, 4, 4), tiles, 32},
		{"zero tile size", image.Rect(0, 0, 4, 4), tiles, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CutWindow(tt.rect, tt.tiles, tt.tilePixels); err == nil {
				t.Error("CutWindow should fail")
			}
		})
	}

	_, err := CutWindow(image.Rect(100, 100, 110, 110), tiles, 16)
	if !errors.Is(err, ErrNoOverlap) {
		t.Errorf("got %v, want ErrNoOverlap", err)
	}
}

func TestRGBIgnoresAlpha(t *testing.T) {
	// The NIR band sits in alpha; a zero NIR value must not blank RGB.
	img := image.NewNRGBA64(image.Rect(0, 0, 1, 1))
	img.SetNRGBA64(0, 0, color.NRGBA64{R: 1000, G: 2000, B: 3000, A: 0})

	r, g, b := rgb16(img, 0, 0)
	if r != 1000 || g != 2000 || b != 3000 {
		t.Errorf("got (%d,%d,%d), want (1000,2000,3000)", r, g, b)
	}

	r, _, _ = rgb16(createTestImage(1, 1, color.NRGBA{0x80, 0, 0, 0xff}), 0, 0)
	if r != 0x8080 {
		t.Errorf("8-bit widen: got %#x, want 0x8080", r)
	}
}

func TestNormalize(t *testing.T) {
	b := newBands(2, 1)
	b.R[0], b.R[1] = 100, 300
	b.G[0], b.G[1] = 0, 65535
	b.B[0], b.B[1] = 5000, 5001

	img, err := b.Normalize()
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	lo, hi := img.NRGBAAt(0, 0), img.NRGBAAt(1, 0)
	if lo != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("low pixel: got %v", lo)
	}
	if hi != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("high pixel: got %v", hi)
	}

	stats := b.Stats()
	if stats[0].Min != 100 || stats[0].Max != 300 || stats[0].Mean != 200 {
		t.Errorf("red stats: got %+v", stats[0])
	}
}

func TestNormalizeEmptyBand(t *testing.T) {
	b := newBands(2, 2)
	for i := range b.R {
		b.R[i] = uint16(i)
		b.G[i] = uint16(i)
	}
	if _, err := b.Normalize(); !errors.Is(err, ErrEmptyBand) {
		t.Errorf("got %v, want ErrEmptyBand", err)
	}
}

func TestChip(t *testing.T) {
	tile := image.NewNRGBA64(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint16(x*y + 1)
			tile.SetNRGBA64(x, y, color.NRGBA64{R: v, G: v + 1, B: v + 2, A: 0xffff})
		}
	}

	chip, err := Chip(image.Rect(0, 0, 64, 64), []TileImage{{Image: tile}}, 64, 512)
	if err != nil {
		t.Fatalf("Chip failed: %v", err)
	}
	if chip.Bounds().Dx() != 512 || chip.Bounds().Dy() != 512 {
		t.Errorf("chip size: got %v, want 512x512", chip.Bounds())
	}

	if _, err := Chip(image.Rect(0, 0, 8, 8), []TileImage{{Image: createGradientTile(64, 3)}}, 64, 512); !errors.Is(err, ErrEmptyBand) {
		t.Errorf("constant blue band: got %v, want ErrEmptyBand", err)
	}
}

func TestSavePNGRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chip.png")
	src := createTestImage(4, 3, color.NRGBA{10, 20, 30, 255})
	if err := SavePNG(path, src); err != nil {
		t.Fatalf("SavePNG failed: %v", err)
	}

	img, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	r, g, b, _ := img.At(2, 1).RGBA()
	if r>>8 != 10 || g>>8 != 20 || b>>8 != 30 {
		t.Errorf("pixel: got (%d,%d,%d), want (10,20,30)", r>>8, g>>8, b>>8)
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temporary files left behind: %v", matches)
	}
}

func TestQuicklook(t *testing.T) {
	base := createTestImage(50, 50, color.Black)
	polys := []orb.Polygon{
		{{{5, 5}, {20, 5}, {20, 20}, {5, 20}, {5, 5}}},
		{{{30, 30}, {45, 30}, {45, 45}, {30, 45}, {30, 30}}},
	}

	out := Quicklook(base, polys, QuicklookOptions{GridX: []float64{25}, GridColor: "#00ff00"})

	if got := out.NRGBAAt(25, 2); got != (color.NRGBA{0, 255, 0, 255}) {
		t.Errorf("grid line: got %v, want green", got)
	}
	a, b := out.NRGBAAt(10, 5), out.NRGBAAt(35, 30)
	if a == (color.NRGBA{0, 0, 0, 255}) || b == (color.NRGBA{0, 0, 0, 255}) {
		t.Error("polygon outlines were not drawn")
	}
	if a == b {
		t.Errorf("polygons should get distinct colours, both %v", a)
	}
	if got := out.NRGBAAt(12, 12); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("polygon interior should be untouched, got %v", got)
	}

	// Base is not modified.
	if got := base.NRGBAAt(25, 2); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("base modified: %v", got)
	}
}

func TestQuicklookBadGridColor(t *testing.T) {
	out := Quicklook(createTestImage(10, 10, color.Black), nil, QuicklookOptions{GridY: []float64{4}, GridColor: "nope"})
	if got := out.NRGBAAt(3, 4); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("fallback grid colour: got %v, want red", got)
	}
}
