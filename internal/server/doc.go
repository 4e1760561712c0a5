// Package server implements the MCP (Model Context Protocol) tool server
// for the geometry stages of the pipeline.
//
// The server lets an MCP client inspect individual candidates: resolve the
// tile grid behind a window, map raster pixels to coordinates, trace a
// stored mask into polygons, and run the overlap and temporal steps on a
// handful of geometries without touching the yearly datasets.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Mosaic geometry:
//   - mosaic_resolve: Tile grid, pixel size and cell of every quad
//   - pixel_to_geo: Raster pixel to lon/lat and back for one window
//
// Reconstruction:
//   - mask_to_polygons: Trace, simplify and filter a mask, optionally
//     projected to geographic coordinates
//
// Dataset operations:
//   - polygons_cluster: Dissolve overlapping predictions into clusters
//   - temporal_filter: Drop detections without a neighbouring-year match
//
// Geometries travel as GeoJSON geometry objects.
//
// # Image Caching
//
// Mask images are cached by path for the lifetime of the process. A mask
// rewritten on disk is decoded again on the next call.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv := server.New(server.DefaultOptions(), logger)
//	if err := srv.Run(); err != nil {
//	    logger.Fatal("Server error", zap.Error(err))
//	}
package server
