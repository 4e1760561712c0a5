package server

import (
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	expectedTools := []string{
		"mosaic_resolve",
		"pixel_to_geo",
		"mask_to_polygons",
		"polygons_cluster",
		"temporal_filter",
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("Duplicate tool %s", tool.Name)
		}
		toolMap[tool.Name] = tool
	}

	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", tool.InputSchema["type"])
			}
			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok {
				t.Fatal("InputSchema missing 'properties' field")
			}
			required, ok := tool.InputSchema["required"].([]string)
			if !ok || len(required) == 0 {
				t.Fatal("InputSchema missing 'required' field")
			}
			for _, r := range required {
				if _, ok := props[r]; !ok {
					t.Errorf("Required parameter %s has no schema", r)
				}
			}
		})
	}
}

func TestToolDefinitions_Required(t *testing.T) {
	want := map[string][]string{
		"mosaic_resolve":   {"tiles"},
		"pixel_to_geo":     {"tiles", "search_bbox", "points"},
		"mask_to_polygons": {"path"},
		"polygons_cluster": {"predictions"},
		"temporal_filter":  {"datasets"},
	}

	for _, tool := range GetToolDefinitions() {
		required := tool.InputSchema["required"].([]string)
		if len(required) != len(want[tool.Name]) {
			t.Errorf("%s requires %v, want %v", tool.Name, required, want[tool.Name])
			continue
		}
		for i := range required {
			if required[i] != want[tool.Name][i] {
				t.Errorf("%s requires %v, want %v", tool.Name, required, want[tool.Name])
				break
			}
		}
	}
}
