package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ironsheep/minepoly/internal/planet"
)

// Fetch looks up the tiles of every candidate for year, caches the lookup
// in the tile index and downloads every tile not yet on disk. Lookups
// already present in the index are not repeated.
func (r *Runner) Fetch(ctx context.Context, year int) (Diagnostics, error) {
	cands, d, err := r.LoadCandidates()
	if err != nil {
		return d, err
	}

	overrides, err := r.cfg.MosaicOverrides()
	if err != nil {
		return d, err
	}
	name, err := planet.MosaicName(year, overrides)
	if err != nil {
		return d, err
	}
	mosaicID, err := r.client.MosaicID(ctx, name)
	if err != nil {
		return d, err
	}
	r.logger.Info("Resolved mosaic", zap.Int("year", year), zap.String("name", name), zap.String("id", mosaicID))

	index, err := planet.LoadIndex(r.layout.TileIndex(year))
	if err != nil || index.MosaicID != mosaicID {
		index = planet.NewIndex(year, mosaicID)
	}

	var reqs []planet.LookupRequest
	for _, c := range cands {
		if _, ok := index.Tiles[c.ID]; !ok {
			reqs = append(reqs, planet.LookupRequest{ID: c.ID, BBox: c.Window})
		}
	}
	r.logger.Info("Looking up quads", zap.Int("requests", len(reqs)), zap.Int("cached", len(cands)-len(reqs)))

	for _, res := range r.client.LookupAll(ctx, mosaicID, reqs, r.cfg.Workers.IO) {
		if res.Err != nil {
			d.SkippedLookup++
			continue
		}
		index.Tiles[res.ID] = res.Tiles
	}
	for _, c := range cands {
		if ts, ok := index.Tiles[c.ID]; ok && len(ts) == 0 {
			d.NoImagery++
		}
	}
	if err := index.Save(r.layout.TileIndex(year)); err != nil {
		return d, fmt.Errorf("failed to save tile index: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return d, err
	}

	tiles := index.UniqueTiles()
	if r.cfg.Data.Cloudfree != "" {
		cf, err := planet.LoadCloudfree(r.cfg.Data.Cloudfree)
		if err != nil {
			return d, err
		}
		var n int
		tiles, n = cf.Apply(year, tiles, r.cfg.Planet.APIKey)
		r.logger.Info("Applied cloud-free substitutions", zap.Int("tiles", n))
	}

	var jobs []planet.DownloadJob
	for _, t := range tiles {
		if !t.Downloadable() {
			d.SkippedDownload++
			continue
		}
		jobs = append(jobs, planet.DownloadJob{Tile: t, Path: r.layout.Tile(year, t.ID)})
	}

	downloaded, present := 0, 0
	for _, res := range r.client.DownloadAll(ctx, jobs, r.cfg.Workers.IO) {
		switch {
		case res.Err != nil:
			d.SkippedDownload++
		case res.Skipped:
			present++
		default:
			downloaded++
		}
	}

	d.Log(r.logger, "fetch", zap.Int("year", year), zap.Int("tiles", len(tiles)),
		zap.Int("downloaded", downloaded), zap.Int("already_present", present))
	return d, ctx.Err()
}
