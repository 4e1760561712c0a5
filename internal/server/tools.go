package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// bboxSchema is a [minx, miny, maxx, maxy] array.
func bboxSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "number"},
		"minItems":    4,
		"maxItems":    4,
		"description": description,
	}
}

func tilesSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id":   map[string]interface{}{"type": "string"},
				"bbox": bboxSchema("Geographic extent of the quad"),
			},
			"required": []string{"id", "bbox"},
		},
		"description": "Provider quads covering the candidate, as returned by the quads endpoint",
	}
}

func geometryListSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "object", "description": "GeoJSON Polygon or MultiPolygon"},
		"description": description,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Mosaic geometry
		{
			Name:        "mosaic_resolve",
			Description: "Resolve the tile grid of a set of quads: combined bounding box, tile counts, pixel size and the grid cell of every quad (row 0 is north).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"tiles": tilesSchema(),
					"tile_pixels": map[string]interface{}{
						"type":        "integer",
						"description": "Edge length of one quad in pixels. Default 4096",
					},
				},
				"required": []string{"tiles"},
			},
		},
		{
			Name:        "pixel_to_geo",
			Description: "Map points between the inference raster of a candidate window and geographic coordinates. The window is the search bbox snapped into the mosaic.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"tiles":       tilesSchema(),
					"search_bbox": bboxSchema("Geographic search window of the candidate"),
					"points": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type":     "array",
							"items":    map[string]interface{}{"type": "number"},
							"minItems": 2,
							"maxItems": 2,
						},
						"description": "Points as [x, y] raster pixels, or [lon, lat] when inverse is set",
					},
					"inverse": map[string]interface{}{
						"type":        "boolean",
						"description": "Map geographic points to raster pixels instead. Default false",
						"default":     false,
					},
					"tile_pixels": map[string]interface{}{
						"type":        "integer",
						"description": "Edge length of one quad in pixels. Default 4096",
					},
					"raster_size": map[string]interface{}{
						"type":        "integer",
						"description": "Inference raster size. Default 512",
					},
				},
				"required": []string{"tiles", "search_bbox", "points"},
			},
		},

		// Reconstruction
		{
			Name:        "mask_to_polygons",
			Description: "Trace a segmentation mask PNG into simplified polygons. Without tiles the polygons are in raster pixels; with tiles and search_bbox they are projected to geographic coordinates.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the mask image",
					},
					"encoding": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"class", "probability"},
						"description": "Mask encoding. Default class",
						"default":     "class",
					},
					"threshold": map[string]interface{}{
						"type":        "number",
						"description": "Probability threshold for probability masks. Default 0.5",
						"default":     0.5,
					},
					"tiles":       tilesSchema(),
					"search_bbox": bboxSchema("Geographic search window of the candidate"),
					"tolerance": map[string]interface{}{
						"type":        "number",
						"description": "Simplification tolerance in raster pixels. Default 1",
					},
					"min_area": map[string]interface{}{
						"type":        "number",
						"description": "Area floor in square raster pixels. Default 50",
					},
				},
				"required": []string{"path"},
			},
		},

		// Dataset operations
		{
			Name:        "polygons_cluster",
			Description: "Merge overlapping predictions into disjoint clusters with holes closed. Returns one polygon per cluster.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"predictions": geometryListSchema("Predicted geometries in geographic coordinates"),
				},
				"required": []string{"predictions"},
			},
		},
		{
			Name:        "temporal_filter",
			Description: "Keep only the polygons of each year that intersect a polygon of the previous or next year. Years without a neighbour are kept as-is.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"datasets": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"year":       map[string]interface{}{"type": "integer"},
								"geometries": geometryListSchema("Polygons detected in the year"),
							},
							"required": []string{"year", "geometries"},
						},
					},
					"buffer": map[string]interface{}{
						"type":        "number",
						"description": "Tolerance in degrees applied before the overlap test. Default 0.0005",
					},
				},
				"required": []string{"datasets"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
