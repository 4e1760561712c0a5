// Package config loads the minepoly configuration from YAML, defaults and
// MINEPOLY_* environment variables.
package config

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ironsheep/minepoly/internal/country"
	"github.com/ironsheep/minepoly/internal/detection"
	"github.com/ironsheep/minepoly/internal/geo"
	"github.com/ironsheep/minepoly/internal/planet"
	"github.com/ironsheep/minepoly/internal/segment"
	"github.com/ironsheep/minepoly/internal/temporal"
)

// EnvPrefix prefixes every environment override, e.g. MINEPOLY_WORKERS_IO.
const EnvPrefix = "MINEPOLY"

type Config struct {
	Data        DataConfig        `mapstructure:"data"`
	Planet      PlanetConfig      `mapstructure:"planet"`
	Workers     WorkersConfig     `mapstructure:"workers"`
	Window      WindowConfig      `mapstructure:"window"`
	Reconstruct detection.Options `mapstructure:"reconstruct"`
	Temporal    TemporalConfig    `mapstructure:"temporal"`
	Coverage    country.Coverage  `mapstructure:"coverage"`
	Model       ModelConfig       `mapstructure:"model"`
	Log         LogConfig         `mapstructure:"log"`
}

type DataConfig struct {
	Dir            string `mapstructure:"dir"`
	Candidates     string `mapstructure:"candidates"`
	CandidateLayer string `mapstructure:"candidate_layer"`
	Countries      string `mapstructure:"countries"`
	CountryLayer   string `mapstructure:"country_layer"`
	Cloudfree      string `mapstructure:"cloudfree"`
	TrainingYear   int    `mapstructure:"training_year"`
	TilePixels     int    `mapstructure:"tile_pixels"`
	RasterSize     int    `mapstructure:"raster_size"`
	Quicklook      bool   `mapstructure:"quicklook"`
}

type PlanetConfig struct {
	BaseURL    string            `mapstructure:"base_url"`
	APIKey     string            `mapstructure:"api_key"`
	Mosaics    map[string]string `mapstructure:"mosaics"`
	MaxRetries uint64            `mapstructure:"max_retries"`
	Timeout    time.Duration     `mapstructure:"timeout"`
}

type WorkersConfig struct {
	IO  int `mapstructure:"io"`
	CPU int `mapstructure:"cpu"`
}

type WindowConfig struct {
	Margin  float64 `mapstructure:"margin"`
	MinSize float64 `mapstructure:"min_size"`
}

type TemporalConfig struct {
	Buffer float64 `mapstructure:"buffer"`
	Years  []int   `mapstructure:"years"`
}

type ModelConfig struct {
	Kind      string  `mapstructure:"kind"`
	URL       string  `mapstructure:"url"`
	Encoding  string  `mapstructure:"encoding"`
	Threshold float64 `mapstructure:"threshold"`
}

type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("planet.api_key", EnvPrefix+"_API_KEY", "API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := getDefaultConfig()

	v.SetDefault("data.dir", d.Data.Dir)
	v.SetDefault("data.candidates", d.Data.Candidates)
	v.SetDefault("data.candidate_layer", d.Data.CandidateLayer)
	v.SetDefault("data.countries", d.Data.Countries)
	v.SetDefault("data.country_layer", d.Data.CountryLayer)
	v.SetDefault("data.cloudfree", d.Data.Cloudfree)
	v.SetDefault("data.training_year", d.Data.TrainingYear)
	v.SetDefault("data.tile_pixels", d.Data.TilePixels)
	v.SetDefault("data.raster_size", d.Data.RasterSize)
	v.SetDefault("data.quicklook", d.Data.Quicklook)

	v.SetDefault("planet.base_url", d.Planet.BaseURL)
	v.SetDefault("planet.api_key", "")
	v.SetDefault("planet.mosaics", map[string]string{})
	v.SetDefault("planet.max_retries", d.Planet.MaxRetries)
	v.SetDefault("planet.timeout", d.Planet.Timeout)

	v.SetDefault("workers.io", d.Workers.IO)
	v.SetDefault("workers.cpu", d.Workers.CPU)

	v.SetDefault("window.margin", d.Window.Margin)
	v.SetDefault("window.min_size", d.Window.MinSize)

	v.SetDefault("reconstruct.min_object_area", d.Reconstruct.MinObjectArea)
	v.SetDefault("reconstruct.max_hole_area", d.Reconstruct.MaxHoleArea)
	v.SetDefault("reconstruct.tolerance", d.Reconstruct.Tolerance)
	v.SetDefault("reconstruct.min_area", d.Reconstruct.MinArea)

	v.SetDefault("temporal.buffer", d.Temporal.Buffer)
	v.SetDefault("temporal.years", d.Temporal.Years)

	v.SetDefault("coverage.min_lat", d.Coverage.MinLat)
	v.SetDefault("coverage.max_lat", d.Coverage.MaxLat)
	v.SetDefault("coverage.excluded", d.Coverage.Excluded)

	v.SetDefault("model.kind", d.Model.Kind)
	v.SetDefault("model.url", d.Model.URL)
	v.SetDefault("model.encoding", d.Model.Encoding)
	v.SetDefault("model.threshold", d.Model.Threshold)

	v.SetDefault("log.mode", d.Log.Mode)
	v.SetDefault("log.level", d.Log.Level)
}

func getDefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir:            "./data",
			Candidates:     "./data/global_mining_polygons_v2.gpkg",
			CandidateLayer: "mining_polygons",
			Countries:      "./data/countries.geojson",
			TrainingYear:   2019,
			TilePixels:     geo.DefaultTilePixels,
			RasterSize:     geo.DefaultRasterSize,
		},
		Planet: PlanetConfig{
			BaseURL:    planet.DefaultBaseURL,
			MaxRetries: 5,
			Timeout:    5 * time.Minute,
		},
		Workers: WorkersConfig{
			IO:  planet.DefaultWorkers,
			CPU: runtime.NumCPU(),
		},
		Window: WindowConfig{
			Margin:  0.5,
			MinSize: 0.01,
		},
		Reconstruct: detection.DefaultOptions(),
		Temporal: TemporalConfig{
			Buffer: temporal.DefaultBuffer,
			Years:  []int{2016, 2017, 2018, 2019, 2020, 2021, 2022, 2023, 2024},
		},
		Coverage: country.DefaultCoverage(),
		Model: ModelConfig{
			Kind:      "directory",
			Encoding:  string(segment.EncodingClass),
			Threshold: 0.5,
		},
		Log: LogConfig{
			Mode:  "debug",
			Level: "info",
		},
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Workers.IO < 1:
		return fmt.Errorf("workers.io must be at least 1, got %d", c.Workers.IO)
	case c.Workers.CPU < 1:
		return fmt.Errorf("workers.cpu must be at least 1, got %d", c.Workers.CPU)
	case c.Data.TilePixels < 1:
		return fmt.Errorf("data.tile_pixels must be positive, got %d", c.Data.TilePixels)
	case c.Data.RasterSize < 1:
		return fmt.Errorf("data.raster_size must be positive, got %d", c.Data.RasterSize)
	case c.Model.Threshold <= 0 || c.Model.Threshold >= 1:
		return fmt.Errorf("model.threshold must be in (0,1), got %g", c.Model.Threshold)
	case c.Temporal.Buffer < 0:
		return fmt.Errorf("temporal.buffer must not be negative, got %g", c.Temporal.Buffer)
	case c.Window.Margin < 0:
		return fmt.Errorf("window.margin must not be negative, got %g", c.Window.Margin)
	case c.Reconstruct.Tolerance < 0 || c.Reconstruct.MinArea < 0:
		return fmt.Errorf("reconstruct tolerance and min_area must not be negative")
	case c.Coverage.MinLat >= c.Coverage.MaxLat:
		return fmt.Errorf("coverage.min_lat must be below coverage.max_lat")
	}

	if _, err := segment.ParseEncoding(c.Model.Encoding); err != nil {
		return fmt.Errorf("model.encoding: %w", err)
	}
	switch c.Model.Kind {
	case "directory":
	case "http":
		if c.Model.URL == "" {
			return fmt.Errorf("model.url is required for the http model")
		}
	default:
		return fmt.Errorf("model.kind must be directory or http, got %q", c.Model.Kind)
	}

	if _, err := c.MosaicOverrides(); err != nil {
		return err
	}
	return nil
}

// MosaicOverrides returns planet.mosaics keyed by year.
func (c *Config) MosaicOverrides() (map[int]string, error) {
	out := make(map[int]string, len(c.Planet.Mosaics))
	for k, name := range c.Planet.Mosaics {
		year, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("planet.mosaics: invalid year %q", k)
		}
		out[year] = name
	}
	return out, nil
}
