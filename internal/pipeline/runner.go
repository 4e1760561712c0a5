package pipeline

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/ironsheep/minepoly/internal/config"
	"github.com/ironsheep/minepoly/internal/country"
	"github.com/ironsheep/minepoly/internal/geo"
	"github.com/ironsheep/minepoly/internal/geometry"
	"github.com/ironsheep/minepoly/internal/planet"
	"github.com/ironsheep/minepoly/internal/store"
)

// LayerName is the feature table written to every output GeoPackage.
const LayerName = "mining_polygons"

// Runner executes pipeline stages against one configuration.
type Runner struct {
	cfg    *config.Config
	layout Layout
	logger *zap.Logger
	client *planet.Client
}

// NewRunner wires a runner from cfg.
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := planet.NewClient(cfg.Planet.APIKey,
		planet.WithBaseURL(cfg.Planet.BaseURL),
		planet.WithHTTPClient(&http.Client{Timeout: cfg.Planet.Timeout}),
		planet.WithBackOff(planet.DefaultBackOff(cfg.Planet.MaxRetries)),
		planet.WithLogger(logger.Named("planet")),
	)
	return &Runner{
		cfg:    cfg,
		layout: Layout{Root: cfg.Data.Dir},
		logger: logger,
		client: client,
	}
}

// Layout returns the data directory layout.
func (r *Runner) Layout() Layout { return r.layout }

// countries opens the configured boundary layer. A missing file disables
// attribution with a warning.
func (r *Runner) countries() (*country.Lookup, error) {
	path := r.cfg.Data.Countries
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("Country boundaries not found, attribution disabled", zap.String("path", path))
		return nil, nil
	}
	lookup, err := country.Load(path, r.cfg.Data.CountryLayer)
	if err != nil {
		return nil, fmt.Errorf("failed to load country boundaries: %w", err)
	}
	return lookup, nil
}

// LoadCandidates reads the candidate layer, attributes countries, drops
// sites outside the provider coverage and computes each search window.
func (r *Runner) LoadCandidates() ([]Candidate, Diagnostics, error) {
	var d Diagnostics

	feats, err := store.ReadFile(r.cfg.Data.Candidates, r.cfg.Data.CandidateLayer)
	if err != nil {
		return nil, d, fmt.Errorf("failed to read candidates: %w", err)
	}

	lookup, err := r.countries()
	if err != nil {
		return nil, d, err
	}
	defer lookup.Close()

	seen := make(map[int64]bool, len(feats))
	out := make([]Candidate, 0, len(feats))
	for _, f := range feats {
		if f.Geometry == nil || len(geometry.Explode(f.Geometry)) == 0 {
			d.InvalidWindow++
			continue
		}
		if seen[f.ID] {
			r.logger.Warn("Duplicate candidate id, keeping the first", zap.Int64("id", f.ID))
			continue
		}
		seen[f.ID] = true

		iso, name := f.ISOA3, f.CountryName
		if lookup != nil {
			if iso, name, err = lookup.Attribute(f.Geometry); err != nil {
				return nil, d, fmt.Errorf("failed to attribute candidate %d: %w", f.ID, err)
			}
		}
		if !r.cfg.Coverage.Covers(f.Geometry, iso) {
			d.OutOfCoverage++
			continue
		}

		out = append(out, Candidate{
			ID:          f.ID,
			Geometry:    f.Geometry,
			Window:      geo.SearchWindow(f.Geometry.Bound(), f.ID, r.cfg.Window.Margin, r.cfg.Window.MinSize),
			ISOA3:       iso,
			CountryName: name,
		})
	}
	d.Candidates = len(out)
	r.logger.Info("Candidates loaded",
		zap.Int("read", len(feats)), zap.Int("kept", len(out)), zap.Int("out_of_coverage", d.OutOfCoverage))
	return out, d, nil
}

// candidatesWithTiles attaches the cached tile lookup of year to every
// candidate. Candidates whose lookup failed are dropped and counted.
func (r *Runner) candidatesWithTiles(year int) ([]Candidate, *planet.Index, Diagnostics, error) {
	cands, d, err := r.LoadCandidates()
	if err != nil {
		return nil, nil, d, err
	}
	index, err := planet.LoadIndex(r.layout.TileIndex(year))
	if err != nil {
		return nil, nil, d, fmt.Errorf("tile index for %d missing, run fetch first: %w", year, err)
	}

	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		tiles, ok := index.Tiles[c.ID]
		if !ok {
			d.SkippedLookup++
			continue
		}
		out = append(out, c.WithTiles(tiles))
	}
	// Record counts candidates per outcome.
	d.Candidates = 0
	return out, index, d, nil
}
