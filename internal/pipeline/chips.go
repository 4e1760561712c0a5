package pipeline

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ironsheep/minepoly/internal/chips"
	"github.com/ironsheep/minepoly/internal/geo"
	"github.com/ironsheep/minepoly/internal/imaging"
	"github.com/ironsheep/minepoly/internal/pool"
)

// Chips writes the inference chip of every candidate with imagery for
// year, and its training target when year is the training year. Existing
// chips are kept.
//
// Candidates are grouped by tile set so each group decodes its tiles once
// and releases them when done.
func (r *Runner) Chips(ctx context.Context, year int) (Diagnostics, error) {
	cands, _, d, err := r.candidatesWithTiles(year)
	if err != nil {
		return d, err
	}

	var sites []chips.Site
	training := year == r.cfg.Data.TrainingYear
	if training {
		sites = make([]chips.Site, len(cands))
		for i, c := range cands {
			sites[i] = chips.Site{ID: c.ID, Geometry: c.Geometry, TileIDs: c.TileIDs()}
		}
	}

	groups := groupByTiles(cands)
	results := pool.Run(ctx, len(groups), r.cfg.Workers.CPU,
		func(i int) []Outcome {
			b := &chips.Builder{
				Cache:      imaging.NewImageCache(),
				TilePath:   func(id string) string { return r.layout.Tile(year, id) },
				TilePixels: r.cfg.Data.TilePixels,
				RasterSize: r.cfg.Data.RasterSize,
			}
			defer b.Cache.Clear()
			out := make([]Outcome, len(groups[i]))
			for j, c := range groups[i] {
				out[j] = r.chip(b, year, c, sites)
			}
			return out
		},
		func(i int, err error) []Outcome {
			out := make([]Outcome, len(groups[i]))
			for j, c := range groups[i] {
				out[j] = Outcome{ID: c.ID, Status: StatusFailed, Err: err}
			}
			return out
		})

	for _, group := range results {
		for _, o := range group {
			d.Record(o)
		}
	}
	d.Log(r.logger, "chips", zap.Int("year", year), zap.Bool("training_targets", training))
	return d, ctx.Err()
}

func (r *Runner) chip(b *chips.Builder, year int, c Candidate, sites []chips.Site) Outcome {
	out := Outcome{ID: c.ID}
	log := r.logger.With(zap.Int64("id", c.ID))

	frame, err := chips.Locate(c.Tiles, c.Window, b.TilePixels, b.RasterSize)
	switch {
	case errors.Is(err, geo.ErrNoTiles):
		out.Status = StatusNoImagery
		return out
	case errors.Is(err, geo.ErrDegenerate):
		out.Status, out.Err = StatusInvalidWindow, err
		return out
	case err != nil:
		out.Status, out.Err = StatusFailed, err
		log.Warn("Failed to locate window", zap.Error(err))
		return out
	}

	path := r.layout.Chip(year, c.ID)
	if _, err := os.Stat(path); err != nil {
		img, err := b.Chip(frame, c.Tiles)
		if err == nil {
			err = imaging.SavePNG(path, img)
		}
		if err != nil {
			out.Status, out.Err = StatusFailed, err
			if errors.Is(err, imaging.ErrEmptyBand) {
				log.Info("Skipping window with an empty color channel")
			} else {
				log.Warn("Failed to build chip", zap.Error(err))
			}
			return out
		}
	}

	if sites != nil {
		self := chips.Site{ID: c.ID, Geometry: c.Geometry, TileIDs: c.TileIDs()}
		target, drawn := chips.Target(frame, self, sites)
		if err := imaging.SavePNG(r.layout.Target(year, c.ID), target); err != nil {
			out.Status, out.Err = StatusFailed, err
			log.Warn("Failed to write training target", zap.Error(err))
			return out
		}
		if drawn == 0 {
			out.EmptyTarget = true
			log.Info("Training target has no mining polygon inside the window")
		}
	}
	return out
}

// groupByTiles buckets candidates that share the same tile set.
func groupByTiles(cands []Candidate) [][]Candidate {
	byKey := make(map[string][]Candidate)
	var keys []string
	for _, c := range cands {
		ids := c.TileIDs()
		sort.Strings(ids)
		k := strings.Join(ids, ",")
		if _, ok := byKey[k]; !ok {
			keys = append(keys, k)
		}
		byKey[k] = append(byKey[k], c)
	}
	out := make([][]Candidate, len(keys))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out
}
