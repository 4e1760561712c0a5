// Package detection turns segmentation masks into pixel-space polygons.
//
// The model produces one mask per candidate on a fixed 512×512 raster.
// This package cleans the mask, traces the outer border of every
// foreground component and converts the borders into simplified, valid
// polygons that are finally rescaled into the candidate's window of the
// tile mosaic.
//
// # Pipeline
//
//  1. Threshold: class maps and probability images are binarised with
//     bild; raw logits go through a sigmoid and a threshold.
//  2. Postprocess: foreground blobs smaller than MinObjectArea are removed
//     and background holes smaller than MaxHoleArea are filled, so no
//     single-pixel islands reach the tracer.
//  3. Trace: the outer border of each 8-connected component is followed
//     with Moore-neighbour tracing. Holes are ignored. Runs of collinear
//     border pixels are reduced to their end points.
//  4. Simplify: Douglas-Peucker with a 1 px tolerance. Topology is not
//     preserved, so a ring may self-intersect; it is then repaired and may
//     come back as several polygons, all of which are kept.
//  5. Area floor: polygons of 50 px² or less are dropped.
//  6. Rescale: vertices are mapped from the raster into mosaic pixels.
//
// # Coordinate System
//
// Raster coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// Polygon vertices sit on pixel positions, not pixel corners, so a filled
// n×n square traces to a polygon of area (n-1)².
//
// # Diagnostics
//
// Nothing in the pipeline fails because a mask is empty or noisy. Every
// discarded component is counted in Stats instead.
package detection
