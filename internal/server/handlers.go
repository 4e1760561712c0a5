package server

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
	"go.uber.org/zap"

	"github.com/ironsheep/minepoly/internal/chips"
	"github.com/ironsheep/minepoly/internal/cluster"
	"github.com/ironsheep/minepoly/internal/detection"
	"github.com/ironsheep/minepoly/internal/geo"
	"github.com/ironsheep/minepoly/internal/geometry"
	"github.com/ironsheep/minepoly/internal/pipeline"
	"github.com/ironsheep/minepoly/internal/segment"
	"github.com/ironsheep/minepoly/internal/store"
	"github.com/ironsheep/minepoly/internal/temporal"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "mosaic_resolve").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.logger.Debug("Tool failed", zap.String("tool", params.Name), zap.Error(err))
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "mosaic_resolve":
		return s.handleMosaicResolve(args)
	case "pixel_to_geo":
		return s.handlePixelToGeo(args)
	case "mask_to_polygons":
		return s.handleMaskToPolygons(args)
	case "polygons_cluster":
		return s.handlePolygonsCluster(args)
	case "temporal_filter":
		return s.handleTemporalFilter(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Argument helpers ===

type tileArg struct {
	ID   string    `json:"id"`
	BBox []float64 `json:"bbox"`
}

func toTiles(args []tileArg) ([]geo.TileDescriptor, error) {
	out := make([]geo.TileDescriptor, len(args))
	for i, a := range args {
		b, err := geo.BoundingBoxFromSlice(a.BBox)
		if err != nil {
			return nil, fmt.Errorf("tile %q: %w", a.ID, err)
		}
		out[i] = geo.TileDescriptor{ID: a.ID, BBox: b}
	}
	return out, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// decodeGeometries parses GeoJSON geometries and keeps their polygonal
// parts.
func decodeGeometries(raw []json.RawMessage) ([]orb.MultiPolygon, error) {
	out := make([]orb.MultiPolygon, len(raw))
	for i, r := range raw {
		g, err := geojson.UnmarshalGeometry(r)
		if err != nil {
			return nil, fmt.Errorf("geometry %d: %w", i, err)
		}
		out[i] = orb.MultiPolygon(geometry.Explode(g.Geometry()))
	}
	return out, nil
}

// === Mosaic Handlers ===

type mosaicResolveArgs struct {
	Tiles      []tileArg `json:"tiles"`
	TilePixels int       `json:"tile_pixels"`
}

type tileCell struct {
	ID  string `json:"id"`
	Col int    `json:"col"`
	Row int    `json:"row"`
}

type mosaicResolveResult struct {
	geo.MosaicGeometry
	Width  int        `json:"width_px"`
	Height int        `json:"height_px"`
	Cells  []tileCell `json:"cells"`
}

func (s *Server) handleMosaicResolve(args json.RawMessage) (interface{}, error) {
	var a mosaicResolveArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	tiles, err := toTiles(a.Tiles)
	if err != nil {
		return nil, err
	}
	m, err := geo.ResolveMosaic(tiles)
	if err != nil {
		return nil, err
	}

	res := mosaicResolveResult{MosaicGeometry: m}
	res.Width, res.Height = m.PixelSize(orDefault(a.TilePixels, s.opts.TilePixels))
	for _, t := range tiles {
		col, row := m.TileCell(t)
		res.Cells = append(res.Cells, tileCell{ID: t.ID, Col: col, Row: row})
	}
	return res, nil
}

type pixelToGeoArgs struct {
	Tiles      []tileArg    `json:"tiles"`
	SearchBBox []float64    `json:"search_bbox"`
	Points     [][2]float64 `json:"points"`
	Inverse    bool         `json:"inverse"`
	TilePixels int          `json:"tile_pixels"`
	RasterSize int          `json:"raster_size"`
}

type pixelToGeoResult struct {
	Window geo.Window   `json:"window"`
	Points [][2]float64 `json:"points"`
}

func (s *Server) frame(tiles []tileArg, search []float64, tilePixels, rasterSize int) (chips.Frame, error) {
	ts, err := toTiles(tiles)
	if err != nil {
		return chips.Frame{}, err
	}
	b, err := geo.BoundingBoxFromSlice(search)
	if err != nil {
		return chips.Frame{}, fmt.Errorf("search_bbox: %w", err)
	}
	return chips.Locate(ts, b, orDefault(tilePixels, s.opts.TilePixels), orDefault(rasterSize, s.opts.RasterSize))
}

func (s *Server) handlePixelToGeo(args json.RawMessage) (interface{}, error) {
	var a pixelToGeoArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	f, err := s.frame(a.Tiles, a.SearchBBox, a.TilePixels, a.RasterSize)
	if err != nil {
		return nil, err
	}

	res := pixelToGeoResult{Window: f.Window, Points: make([][2]float64, len(a.Points))}
	for i, p := range a.Points {
		var out orb.Point
		if a.Inverse {
			out = geo.GeoToRaster(f.Window, f.Projector, orb.Point(p))
		} else {
			out = geo.RasterToGeo(f.Window, f.Projector, orb.Point(p))
		}
		res.Points[i] = [2]float64(out)
	}
	return res, nil
}

// === Reconstruction Handlers ===

type maskToPolygonsArgs struct {
	Path       string    `json:"path"`
	Encoding   string    `json:"encoding"`
	Threshold  float64   `json:"threshold"`
	Tiles      []tileArg `json:"tiles"`
	SearchBBox []float64 `json:"search_bbox"`
	Tolerance  *float64  `json:"tolerance"`
	MinArea    *float64  `json:"min_area"`
}

type maskToPolygonsResult struct {
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Foreground int               `json:"foreground_pixels"`
	Geographic bool              `json:"geographic"`
	Polygons   *geojson.Geometry `json:"polygons"`
	RasterArea float64           `json:"raster_area"`
	Area       float64           `json:"area_m2,omitempty"`
	Stats      detection.Stats   `json:"stats"`
	Window     *geo.Window       `json:"window,omitempty"`
}

func (s *Server) handleMaskToPolygons(args json.RawMessage) (interface{}, error) {
	a := maskToPolygonsArgs{Encoding: string(segment.EncodingClass), Threshold: 0.5}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	enc, err := segment.ParseEncoding(a.Encoding)
	if err != nil {
		return nil, err
	}
	if a.Threshold <= 0 || a.Threshold >= 1 {
		return nil, fmt.Errorf("threshold must be in (0,1), got %g", a.Threshold)
	}

	opts := s.opts.Reconstruct
	if a.Tolerance != nil {
		opts.Tolerance = *a.Tolerance
	}
	if a.MinArea != nil {
		opts.MinArea = *a.MinArea
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	mask := segment.Decode(img, enc, a.Threshold)

	polys, stats, err := detection.Polygons(mask, opts)
	if err != nil {
		return nil, err
	}
	res := maskToPolygonsResult{
		Width:      mask.Width,
		Height:     mask.Height,
		Foreground: mask.Count(),
		Stats:      stats,
	}
	res.RasterArea = geometry.TotalArea(polys)

	if len(a.Tiles) == 0 {
		res.Polygons = geojson.NewGeometry(orb.MultiPolygon(polys))
		return res, nil
	}

	if mask.Width != mask.Height {
		return nil, fmt.Errorf("mask is %dx%d, projection needs a square mask", mask.Width, mask.Height)
	}
	f, err := s.frame(a.Tiles, a.SearchBBox, 0, mask.Width)
	if err != nil {
		return nil, err
	}
	mosaic := make([]orb.Polygon, len(polys))
	for i, p := range polys {
		mosaic[i] = project.Polygon(orb.Clone(p).(orb.Polygon), f.Window.RasterToMosaic)
	}
	pred := pipeline.Assemble(0, f.Projector, mosaic)

	res.Geographic = true
	res.Window = &f.Window
	res.Polygons = geojson.NewGeometry(pred.Geometry)
	res.Area = geometry.GeodesicArea(pred.Geometry)
	return res, nil
}

// === Dataset Handlers ===

type polygonsClusterArgs struct {
	Predictions []json.RawMessage `json:"predictions"`
}

type clusterResult struct {
	ID       int               `json:"id"`
	Geometry *geojson.Geometry `json:"geometry"`
	Area     float64           `json:"area_m2"`
}

func (s *Server) handlePolygonsCluster(args json.RawMessage) (interface{}, error) {
	var a polygonsClusterArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	preds, err := decodeGeometries(a.Predictions)
	if err != nil {
		return nil, err
	}
	clusters, err := cluster.Resolve(preds)
	if err != nil {
		return nil, err
	}

	out := make([]clusterResult, len(clusters))
	for i, c := range clusters {
		out[i] = clusterResult{
			ID:       c.ID,
			Geometry: geojson.NewGeometry(c.Geometry),
			Area:     geometry.GeodesicArea(c.Geometry),
		}
	}
	return map[string]interface{}{
		"count":    len(out),
		"clusters": out,
	}, nil
}

type yearArg struct {
	Year       int               `json:"year"`
	Geometries []json.RawMessage `json:"geometries"`
}

type temporalFilterArgs struct {
	Datasets []yearArg `json:"datasets"`
	Buffer   *float64  `json:"buffer"`
}

type yearResult struct {
	temporal.YearReport
	Kept []int `json:"kept"`
}

func (s *Server) handleTemporalFilter(args json.RawMessage) (interface{}, error) {
	var a temporalFilterArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	opts := temporal.Options{Buffer: s.opts.Buffer}
	if a.Buffer != nil {
		opts.Buffer = *a.Buffer
	}
	if opts.Buffer < 0 {
		return nil, fmt.Errorf("buffer must not be negative, got %g", opts.Buffer)
	}

	datasets := make([]temporal.Dataset, len(a.Datasets))
	for i, d := range a.Datasets {
		geoms, err := decodeGeometries(d.Geometries)
		if err != nil {
			return nil, fmt.Errorf("year %d: %w", d.Year, err)
		}
		feats := make([]store.Feature, len(geoms))
		for j, g := range geoms {
			// The position doubles as id so kept features map back to
			// the input.
			feats[j] = store.Feature{ID: int64(j), Geometry: g, Year: d.Year}
		}
		datasets[i] = temporal.Dataset{Year: d.Year, Features: feats}
	}

	filtered, reports, err := temporal.Filter(datasets, opts, s.logger)
	if err != nil {
		return nil, err
	}
	out := make([]yearResult, len(filtered))
	for i, ds := range filtered {
		kept := make([]int, len(ds.Features))
		for j, f := range ds.Features {
			kept[j] = int(f.ID)
		}
		out[i] = yearResult{YearReport: reports[i], Kept: kept}
	}
	return map[string]interface{}{
		"buffer": opts.Buffer,
		"years":  out,
	}, nil
}
