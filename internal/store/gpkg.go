package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

const (
	gpkgApplicationID = 0x47504B47 // "GPKG"
	gpkgUserVersion   = 10200
	srsWGS84          = 4326
	geometryColumn    = "geom"
)

const wgs84Definition = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`

var schema = []string{
	`CREATE TABLE IF NOT EXISTS gpkg_spatial_ref_sys (
		srs_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL PRIMARY KEY,
		organization TEXT NOT NULL,
		organization_coordsys_id INTEGER NOT NULL,
		definition TEXT NOT NULL,
		description TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS gpkg_contents (
		table_name TEXT NOT NULL PRIMARY KEY,
		data_type TEXT NOT NULL,
		identifier TEXT UNIQUE,
		description TEXT DEFAULT '',
		last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
		srs_id INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS gpkg_geometry_columns (
		table_name TEXT NOT NULL,
		column_name TEXT NOT NULL,
		geometry_type_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL,
		z TINYINT NOT NULL,
		m TINYINT NOT NULL,
		CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name)
	)`,
	`INSERT OR IGNORE INTO gpkg_spatial_ref_sys VALUES
		('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', NULL),
		('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', NULL)`,
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// GeoPackage is an open GeoPackage file.
type GeoPackage struct {
	db *sqlx.DB
}

// OpenGeoPackage opens an existing GeoPackage read-only. The file is never
// modified.
func OpenGeoPackage(path string) (*GeoPackage, error) {
	db, err := sqlx.Open("sqlite3", readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &GeoPackage{db: db}, nil
}

// readOnlyDSN builds a URI filename so that characters sqlite treats as
// URI syntax stay part of the path.
func readOnlyDSN(path string) string {
	escaped := strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23").Replace(filepath.ToSlash(path))
	return "file:" + escaped + "?mode=ro"
}

// createGeoPackage opens (or creates) a GeoPackage for writing and makes
// sure the core metadata tables exist.
func createGeoPackage(path string) (*GeoPackage, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	stmts := append([]string{
		fmt.Sprintf("PRAGMA application_id = %d", gpkgApplicationID),
		fmt.Sprintf("PRAGMA user_version = %d", gpkgUserVersion),
	}, schema...)
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialise GeoPackage %s: %w", path, err)
		}
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO gpkg_spatial_ref_sys VALUES (?, ?, ?, ?, ?, ?)`,
		"WGS 84 geodetic", srsWGS84, "EPSG", srsWGS84, wgs84Definition, "longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to register EPSG:4326: %w", err)
	}
	return &GeoPackage{db: db}, nil
}

// Close closes the underlying database.
func (g *GeoPackage) Close() error { return g.db.Close() }

// Layers lists the feature tables in registration order.
func (g *GeoPackage) Layers() ([]string, error) {
	var names []string
	err := g.db.Select(&names, `SELECT table_name FROM gpkg_contents WHERE data_type = 'features' ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list layers: %w", err)
	}
	return names, nil
}

// WriteLayer creates a feature table and inserts feats in one transaction.
// An existing table of the same name is replaced.
func (g *GeoPackage) WriteLayer(name string, feats []Feature) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid layer name %q", name)
	}

	bound, hasBound := layerBound(feats)
	tx, err := g.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, name),
		fmt.Sprintf(`CREATE TABLE "%s" (
			fid INTEGER PRIMARY KEY AUTOINCREMENT,
			%s MULTIPOLYGON,
			id INTEGER,
			iso_a3 TEXT,
			country_name TEXT,
			year INTEGER,
			area REAL
		)`, name, geometryColumn),
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return fmt.Errorf("failed to create layer %s: %w", name, err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM gpkg_contents WHERE table_name = ?`, name); err != nil {
		return fmt.Errorf("failed to reset layer metadata: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM gpkg_geometry_columns WHERE table_name = ?`, name); err != nil {
		return fmt.Errorf("failed to reset layer metadata: %w", err)
	}
	var minX, minY, maxX, maxY interface{}
	if hasBound {
		minX, minY, maxX, maxY = bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y()
	}
	if _, err := tx.Exec(`INSERT INTO gpkg_contents (table_name, data_type, identifier, min_x, min_y, max_x, max_y, srs_id)
		VALUES (?, 'features', ?, ?, ?, ?, ?, ?)`, name, name, minX, minY, maxX, maxY, srsWGS84); err != nil {
		return fmt.Errorf("failed to register layer %s: %w", name, err)
	}
	if _, err := tx.Exec(`INSERT INTO gpkg_geometry_columns VALUES (?, ?, 'MULTIPOLYGON', ?, 0, 0)`,
		name, geometryColumn, srsWGS84); err != nil {
		return fmt.Errorf("failed to register geometry column: %w", err)
	}

	ins, err := tx.Preparex(fmt.Sprintf(
		`INSERT INTO "%s" (%s, id, iso_a3, country_name, year, area) VALUES (?, ?, ?, ?, ?, ?)`,
		name, geometryColumn))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer ins.Close()

	for _, f := range feats {
		blob, err := EncodeGeometry(multi(f.Geometry), srsWGS84)
		if err != nil {
			return fmt.Errorf("feature %d: %w", f.ID, err)
		}
		if _, err := ins.Exec(blob, f.ID, f.ISOA3, f.CountryName, f.Year, f.Area); err != nil {
			return fmt.Errorf("failed to insert feature %d: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit layer %s: %w", name, err)
	}
	return nil
}

// ReadLayer reads every row of a feature table. An empty name selects the
// first registered layer.
func (g *GeoPackage) ReadLayer(name string) ([]Feature, error) {
	if name == "" {
		layers, err := g.Layers()
		if err != nil {
			return nil, err
		}
		if len(layers) == 0 {
			return nil, errors.New("geopackage has no feature layers")
		}
		name = layers[0]
	}
	if !identRe.MatchString(name) {
		return nil, fmt.Errorf("invalid layer name %q", name)
	}

	var geomCol string
	err := g.db.Get(&geomCol, `SELECT column_name FROM gpkg_geometry_columns WHERE table_name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to find geometry column of %s: %w", name, err)
	}

	rows, err := g.db.Queryx(fmt.Sprintf(`SELECT * FROM "%s"`, name))
	if err != nil {
		return nil, fmt.Errorf("failed to query layer %s: %w", name, err)
	}
	defer rows.Close()

	var feats []Feature
	for rows.Next() {
		row := map[string]interface{}{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		f := Feature{Properties: map[string]interface{}{}}
		for k, v := range row {
			if k == geomCol {
				continue
			}
			if b, ok := v.([]byte); ok && k != "id" {
				v = string(b)
			}
			f.Properties[k] = v
		}
		if blob, ok := row[geomCol].([]byte); ok && len(blob) > 0 {
			geom, err := DecodeGeometry(blob)
			if err != nil {
				return nil, fmt.Errorf("failed to decode geometry: %w", err)
			}
			f.Geometry = geom
		}
		pos := len(feats)
		if fid, ok := toInt(row["fid"]); ok {
			pos = int(fid)
		}
		assignKnown(&f, pos)
		delete(f.Properties, "fid")
		feats = append(feats, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read layer %s: %w", name, err)
	}
	return feats, nil
}

// WriteGeoPackage replaces path with a new GeoPackage holding one layer.
func WriteGeoPackage(path, layer string, feats []Feature) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp := path + ".tmp"
	os.Remove(tmp)

	gp, err := createGeoPackage(tmp)
	if err != nil {
		return err
	}
	if err := gp.WriteLayer(layer, feats); err != nil {
		gp.Close()
		os.Remove(tmp)
		return err
	}
	if err := gp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func layerBound(feats []Feature) (orb.Bound, bool) {
	var b orb.Bound
	found := false
	for _, f := range feats {
		if f.Geometry == nil {
			continue
		}
		fb := f.Geometry.Bound()
		if !found {
			b = fb
			found = true
			continue
		}
		b = b.Union(fb)
	}
	return b, found
}

// EncodeGeometry builds a GeoPackage geometry blob: the "GP" header with an
// XY envelope followed by little-endian WKB.
func EncodeGeometry(g orb.Geometry, srsID int32) ([]byte, error) {
	data, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("failed to encode WKB: %w", err)
	}

	var buf bytes.Buffer
	flags := byte(0x01) // little endian
	empty := isEmpty(g)
	if empty {
		flags |= 0x10
	} else {
		flags |= 0x01 << 1 // envelope [minx, maxx, miny, maxy]
	}
	buf.Write([]byte{'G', 'P', 0, flags})
	binary.Write(&buf, binary.LittleEndian, srsID)
	if !empty {
		b := g.Bound()
		binary.Write(&buf, binary.LittleEndian, [4]float64{b.Min.X(), b.Max.X(), b.Min.Y(), b.Max.Y()})
	}
	buf.Write(data)
	return buf.Bytes(), nil
}

// DecodeGeometry parses a GeoPackage geometry blob.
func DecodeGeometry(blob []byte) (orb.Geometry, error) {
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, errors.New("not a GeoPackage geometry blob")
	}
	flags := blob[3]
	envelopeSize := 0
	switch (flags >> 1) & 0x07 {
	case 0:
	case 1:
		envelopeSize = 32
	case 2, 3:
		envelopeSize = 48
	case 4:
		envelopeSize = 64
	default:
		return nil, fmt.Errorf("invalid envelope indicator in flags 0x%02x", flags)
	}
	start := 8 + envelopeSize
	if len(blob) < start {
		return nil, errors.New("truncated GeoPackage geometry blob")
	}
	g, err := wkb.Unmarshal(blob[start:])
	if err != nil {
		return nil, fmt.Errorf("failed to decode WKB: %w", err)
	}
	return g, nil
}

func isEmpty(g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.MultiPolygon:
		return len(v) == 0
	case orb.Polygon:
		return len(v) == 0
	case nil:
		return true
	}
	b := g.Bound()
	return math.IsNaN(b.Min.X())
}
