package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"MINEPOLY_API_KEY", "API_KEY", "MINEPOLY_WORKERS_IO", "MINEPOLY_PLANET_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers.IO != 10 {
		t.Errorf("workers.io: got %d, want 10", cfg.Workers.IO)
	}
	if cfg.Reconstruct.MinObjectArea != 9 || cfg.Reconstruct.MaxHoleArea != 9 || cfg.Reconstruct.MinArea != 50 {
		t.Errorf("reconstruct defaults: %+v", cfg.Reconstruct)
	}
	if cfg.Temporal.Buffer != 0.0005 {
		t.Errorf("temporal.buffer: got %g", cfg.Temporal.Buffer)
	}
	if cfg.Coverage.MinLat != -30 || cfg.Coverage.MaxLat != 30 || len(cfg.Coverage.Excluded) == 0 {
		t.Errorf("coverage defaults: %+v", cfg.Coverage)
	}
	if cfg.Data.TilePixels != 4096 || cfg.Data.RasterSize != 512 {
		t.Errorf("raster defaults: %+v", cfg.Data)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
data:
  dir: /srv/mines
workers:
  io: 1
reconstruct:
  min_area: 80
planet:
  mosaics:
    "2019": custom_2019
model:
  kind: http
  url: http://localhost:9000/predict
  threshold: 0.4
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Data.Dir != "/srv/mines" || cfg.Workers.IO != 1 || cfg.Reconstruct.MinArea != 80 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Reconstruct.MinObjectArea != 9 {
		t.Errorf("unset keys should keep defaults, got %d", cfg.Reconstruct.MinObjectArea)
	}
	overrides, err := cfg.MosaicOverrides()
	if err != nil || overrides[2019] != "custom_2019" {
		t.Errorf("mosaic overrides: %v, %v", overrides, err)
	}
}

func TestLoadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MINEPOLY_WORKERS_IO", "3")
	t.Setenv("API_KEY", "fallback")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers.IO != 3 {
		t.Errorf("workers.io: got %d, want 3", cfg.Workers.IO)
	}
	if cfg.Planet.APIKey != "fallback" {
		t.Errorf("api key from API_KEY: got %q", cfg.Planet.APIKey)
	}

	t.Setenv("MINEPOLY_API_KEY", "primary")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Planet.APIKey != "primary" {
		t.Errorf("MINEPOLY_API_KEY should win: got %q", cfg.Planet.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero io workers", func(c *Config) { c.Workers.IO = 0 }, "workers.io"},
		{"threshold at one", func(c *Config) { c.Model.Threshold = 1 }, "model.threshold"},
		{"negative buffer", func(c *Config) { c.Temporal.Buffer = -1 }, "temporal.buffer"},
		{"unknown model", func(c *Config) { c.Model.Kind = "onnx" }, "model.kind"},
		{"http without url", func(c *Config) { c.Model.Kind = "http" }, "model.url"},
		{"bad encoding", func(c *Config) { c.Model.Encoding = "rle" }, "model.encoding"},
		{"bad mosaic year", func(c *Config) { c.Planet.Mosaics = map[string]string{"next": "x"} }, "planet.mosaics"},
		{"inverted band", func(c *Config) { c.Coverage.MinLat = 40 }, "coverage"},
	}

	if err := getDefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}
