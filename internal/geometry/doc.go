// Package geometry bridges orb geometries and the GEOS topology engine.
//
// Geometries live as orb values everywhere in the module. Whenever a
// topological operation is needed (union, buffer, validity repair,
// intersection tests) the geometry is handed to GEOS as WKB and the result
// is decoded back into orb. GEOS handles never escape this package.
//
// # Polygon Parts
//
// Most callers work with single polygons. Explode flattens any polygonal
// result (Polygon, MultiPolygon or a GeometryCollection of them) into a
// slice of polygons and drops everything that has no area.
package geometry
