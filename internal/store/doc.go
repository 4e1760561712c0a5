// Package store reads and writes polygon layers.
//
// Two on-disk formats are supported and picked by file extension:
//
//   - .gpkg: OGC GeoPackage, written through sqlx on top of SQLite. Geometry
//     is stored as a GeoPackage binary blob (a small header followed by WKB).
//   - .geojson / .json: a GeoJSON FeatureCollection.
//
// All geometries are EPSG:4326 longitude/latitude.
package store
