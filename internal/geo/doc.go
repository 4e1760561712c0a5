// Package geo resolves tile mosaics and maps points between the three
// coordinate spaces of the reconstruction pipeline.
//
// # Coordinate Spaces
//
// Three spaces are involved, always visited in this order when going from a
// model mask to the map, and in reverse when going the other way:
//
//   - Raster: the fixed-size inference raster (512×512). Origin (0, 0) at the
//     top-left corner, X grows rightward, Y grows downward.
//   - Mosaic: the pixel grid of all tiles covering a candidate, laid side by
//     side. Origin at the north-west corner of the combined tile bounding box,
//     columns grow eastward, rows grow southward.
//   - Geographic: longitude/latitude (EPSG:4326). Y grows northward.
//
// The row axis flips between the mosaic and geographic spaces. This is the
// only place in the module where that flip happens; every other package
// works through Projector and Window.
//
// # Degenerate Input
//
// A candidate whose tile search returned nothing, or whose window contains
// NaN coordinates, yields ErrNoTiles or ErrDegenerate. Callers treat both as
// "no result for this candidate" and move on.
package geo
