// Package imaging provides the raster plumbing around the reconstruction
// pipeline: loading imagery tiles, cutting candidate windows out of a tile
// mosaic, normalising bands into 8-bit chips and rendering quicklooks.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner, X
// growing rightward and Y growing downward. Mosaic pixel coordinates follow
// the same convention: tile (col, row) covers the half-open rectangle
// [col*tilePixels, (col+1)*tilePixels) x [row*tilePixels, (row+1)*tilePixels),
// and row 0 is the northern edge of the mosaic.
//
// # Bands
//
// Imagery tiles carry four bands (R, G, B, NIR). Only the visible bands are
// used for chips. NIR arrives in the alpha slot of the decoded image, so
// pixel values are read without alpha premultiplication.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Window cutting,
// normalisation and quicklook rendering are stateless.
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - Empty windows or windows that do not overlap any tile
//   - A band with no dynamic range (ErrEmptyBand)
//   - File I/O errors during loading and saving
package imaging
