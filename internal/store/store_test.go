package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
)

func testFeatures() []Feature {
	sq := func(x, y float64) orb.Polygon {
		return orb.Polygon{{{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y}}}
	}
	return []Feature{
		{ID: 0, Geometry: orb.MultiPolygon{sq(10, -2)}, ISOA3: "BRA", CountryName: "Brazil", Year: 2019, Area: 1.5e6},
		{ID: 1, Geometry: sq(20, 5), ISOA3: "", CountryName: "", Year: 2019, Area: 42},
	}
}

func TestGeoPackageLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "mines.gpkg")

	if err := WriteFile(path, "mines_2019", testFeatures()); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	gp, err := OpenGeoPackage(path)
	if err != nil {
		t.Fatalf("OpenGeoPackage failed: %v", err)
	}
	layers, err := gp.Layers()
	gp.Close()
	if err != nil {
		t.Fatalf("Layers failed: %v", err)
	}
	if len(layers) != 1 || layers[0] != "mines_2019" {
		t.Errorf("unexpected layers %v", layers)
	}

	feats, err := ReadFile(path, "")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(feats) != 2 {
		t.Fatalf("expected 2 features, got %d", len(feats))
	}
	f := feats[0]
	if f.ID != 0 || f.ISOA3 != "BRA" || f.CountryName != "Brazil" || f.Year != 2019 || f.Area != 1.5e6 {
		t.Errorf("attributes not preserved: %+v", f)
	}
	mp, ok := feats[1].Geometry.(orb.MultiPolygon)
	if !ok {
		t.Fatalf("expected MultiPolygon, got %T", feats[1].Geometry)
	}
	if b := mp.Bound(); b.Min != (orb.Point{20, 5}) || b.Max != (orb.Point{21, 6}) {
		t.Errorf("unexpected bound %+v", b)
	}
}

func TestGeoPackageOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mines.gpkg")
	if err := WriteGeoPackage(path, "mines", testFeatures()); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := WriteGeoPackage(path, "mines", testFeatures()[:1]); err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	feats, err := ReadFile(path, "mines")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(feats) != 1 {
		t.Errorf("expected file to be replaced, got %d features", len(feats))
	}
}

func TestReadFileLeavesGeoPackageUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidates.gpkg")
	if err := WriteGeoPackage(path, "candidates", testFeatures()); err != nil {
		t.Fatalf("WriteGeoPackage failed: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	for _, layer := range []string{"", "candidates"} {
		if _, err := ReadFile(path, layer); err != nil {
			t.Fatalf("ReadFile(%q) failed: %v", layer, err)
		}
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("reading the GeoPackage modified it")
	}
	if _, err := os.Stat(path + "-journal"); !os.IsNotExist(err) {
		t.Errorf("expected no journal next to the input, got %v", err)
	}
}

func TestOpenGeoPackageIsReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd ?#% name.gpkg")
	if err := WriteGeoPackage(path, "mines", testFeatures()); err != nil {
		t.Fatalf("WriteGeoPackage failed: %v", err)
	}

	gp, err := OpenGeoPackage(path)
	if err != nil {
		t.Fatalf("OpenGeoPackage failed: %v", err)
	}
	defer gp.Close()

	if err := gp.WriteLayer("other", testFeatures()); err == nil {
		t.Error("expected a write through a read-only GeoPackage to fail")
	}
	feats, err := gp.ReadLayer("mines")
	if err != nil {
		t.Fatalf("ReadLayer failed: %v", err)
	}
	if len(feats) != 2 {
		t.Errorf("expected 2 features, got %d", len(feats))
	}
}

func TestOpenGeoPackageMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.gpkg")
	if _, err := OpenGeoPackage(path); err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("opening a missing GeoPackage created it: %v", err)
	}
}

func TestGeoPackageInvalidLayerName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mines.gpkg")
	if err := WriteGeoPackage(path, `x"; DROP TABLE gpkg_contents; --`, nil); err == nil {
		t.Error("expected invalid layer name error")
	}
}

func TestGeometryBlob(t *testing.T) {
	g := orb.MultiPolygon{{{{1, 2}, {3, 2}, {3, 5}, {1, 2}}}}

	blob, err := EncodeGeometry(g, 4326)
	if err != nil {
		t.Fatalf("EncodeGeometry failed: %v", err)
	}
	if blob[0] != 'G' || blob[1] != 'P' || blob[3] != 0x03 {
		t.Errorf("unexpected header % x", blob[:4])
	}
	if len(blob) < 8+32 {
		t.Fatalf("blob too short: %d", len(blob))
	}

	back, err := DecodeGeometry(blob)
	if err != nil {
		t.Fatalf("DecodeGeometry failed: %v", err)
	}
	if back.Bound() != g.Bound() {
		t.Errorf("bound mismatch: %+v vs %+v", back.Bound(), g.Bound())
	}

	empty, err := EncodeGeometry(orb.MultiPolygon{}, 4326)
	if err != nil {
		t.Fatalf("EncodeGeometry failed: %v", err)
	}
	if empty[3]&0x10 == 0 {
		t.Error("empty flag not set")
	}

	if _, err := DecodeGeometry([]byte("nope")); err == nil {
		t.Error("expected error for bad magic")
	}
}

func TestGeoJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mines.geojson")
	if err := WriteFile(path, "", testFeatures()); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	feats, err := ReadFile(path, "")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(feats) != 2 {
		t.Fatalf("expected 2 features, got %d", len(feats))
	}
	if feats[1].ID != 1 || feats[1].Area != 42 || feats[0].ISOA3 != "BRA" {
		t.Errorf("attributes not preserved: %+v / %+v", feats[0], feats[1])
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path string
		want Format
		err  error
	}{
		{"a.gpkg", FormatGeoPackage, nil},
		{"a.GeoJSON", FormatGeoJSON, nil},
		{"a.json", FormatGeoJSON, nil},
		{"a.shp", 0, ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		got, err := FormatFor(tt.path)
		if !errors.Is(err, tt.err) || got != tt.want {
			t.Errorf("FormatFor(%q) = %v, %v", tt.path, got, err)
		}
	}
}
