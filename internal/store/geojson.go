package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"
)

// ReadGeoJSON loads a FeatureCollection.
func ReadGeoJSON(path string) ([]Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON %s: %w", path, err)
	}

	feats := make([]Feature, 0, len(fc.Features))
	for i, gf := range fc.Features {
		f := Feature{Geometry: gf.Geometry, Properties: map[string]interface{}{}}
		for k, v := range gf.Properties {
			f.Properties[k] = v
		}
		assignKnown(&f, i)
		feats = append(feats, f)
	}
	return feats, nil
}

// WriteGeoJSON writes feats as a FeatureCollection, replacing path.
func WriteGeoJSON(path string, feats []Feature) error {
	fc := geojson.NewFeatureCollection()
	for _, f := range feats {
		gf := geojson.NewFeature(multi(f.Geometry))
		gf.Properties["id"] = f.ID
		gf.Properties["iso_a3"] = f.ISOA3
		gf.Properties["country_name"] = f.CountryName
		gf.Properties["year"] = f.Year
		gf.Properties["area"] = f.Area
		fc.Append(gf)
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// assignKnown moves the persisted attributes from Properties into the
// typed fields. Features without an id get their position.
func assignKnown(f *Feature, pos int) {
	f.ID = int64(pos)
	if v, ok := toInt(f.Properties["id"]); ok {
		f.ID = v
		delete(f.Properties, "id")
	}
	if v, ok := f.Properties["iso_a3"].(string); ok {
		f.ISOA3 = v
		delete(f.Properties, "iso_a3")
	}
	if v, ok := f.Properties["country_name"].(string); ok {
		f.CountryName = v
		delete(f.Properties, "country_name")
	}
	if v, ok := toInt(f.Properties["year"]); ok {
		f.Year = int(v)
		delete(f.Properties, "year")
	}
	if v, ok := toFloat(f.Properties["area"]); ok {
		f.Area = v
		delete(f.Properties, "area")
	}
}

func toInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case []byte:
		var i int64
		_, err := fmt.Sscan(string(n), &i)
		return i, err == nil
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
