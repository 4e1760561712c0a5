package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
)

// ErrUnsupportedFormat is returned for file extensions the store does not
// know.
var ErrUnsupportedFormat = errors.New("unsupported layer format")

// Feature is one polygon record with the attributes persisted for every
// yearly dataset.
type Feature struct {
	ID          int64        `json:"id"`
	Geometry    orb.Geometry `json:"-"`
	ISOA3       string       `json:"iso_a3,omitempty"`
	CountryName string       `json:"country_name,omitempty"`
	Year        int          `json:"year,omitempty"`
	Area        float64      `json:"area,omitempty"`

	// Properties holds any further attributes read from an input layer.
	// They are not written back.
	Properties map[string]interface{} `json:"-"`
}

// Format identifies an on-disk layer format.
type Format int

const (
	FormatGeoPackage Format = iota
	FormatGeoJSON
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gpkg":
		return FormatGeoPackage, nil
	case ".geojson", ".json":
		return FormatGeoJSON, nil
	}
	return 0, ErrUnsupportedFormat
}

// ReadFile reads all features of a layer. For GeoPackages an empty layer
// name selects the first feature table; GeoJSON files ignore it.
func ReadFile(path, layer string) ([]Feature, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if format == FormatGeoJSON {
		return ReadGeoJSON(path)
	}

	gp, err := OpenGeoPackage(path)
	if err != nil {
		return nil, err
	}
	defer gp.Close()
	return gp.ReadLayer(layer)
}

// WriteFile replaces path with a single-layer file holding feats.
func WriteFile(path, layer string, feats []Feature) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	if format == FormatGeoJSON {
		return WriteGeoJSON(path, feats)
	}
	return WriteGeoPackage(path, layer, feats)
}

// multi normalises polygonal geometry to a MultiPolygon.
func multi(g orb.Geometry) orb.MultiPolygon {
	switch v := g.(type) {
	case orb.MultiPolygon:
		return v
	case orb.Polygon:
		return orb.MultiPolygon{v}
	}
	return orb.MultiPolygon{}
}
