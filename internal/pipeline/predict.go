package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/ironsheep/minepoly/internal/cluster"
	"github.com/ironsheep/minepoly/internal/imaging"
	"github.com/ironsheep/minepoly/internal/pool"
	"github.com/ironsheep/minepoly/internal/segment"
	"github.com/ironsheep/minepoly/internal/store"
)

// Segmenter builds the configured model client for year.
func (r *Runner) Segmenter(year int) (segment.Segmenter, error) {
	enc, err := segment.ParseEncoding(r.cfg.Model.Encoding)
	if err != nil {
		return nil, err
	}
	switch r.cfg.Model.Kind {
	case "http":
		return segment.NewHTTPClient(r.cfg.Model.URL, enc, r.cfg.Model.Threshold, r.logger.Named("model")), nil
	case "directory", "":
		return &segment.Directory{Dir: r.layout.PredictionDir(year), Encoding: enc, Threshold: r.cfg.Model.Threshold}, nil
	}
	return nil, fmt.Errorf("unknown model kind %q", r.cfg.Model.Kind)
}

// Predict segments every candidate of year, reconstructs and projects its
// polygons, merges overlapping predictions into clusters and writes the
// yearly prediction dataset.
func (r *Runner) Predict(ctx context.Context, year int) (Diagnostics, error) {
	cands, _, d, err := r.candidatesWithTiles(year)
	if err != nil {
		return d, err
	}
	seg, err := r.Segmenter(year)
	if err != nil {
		return d, err
	}

	asm := &Assembler{
		Options:    r.cfg.Reconstruct,
		TilePixels: r.cfg.Data.TilePixels,
		RasterSize: r.cfg.Data.RasterSize,
		Segmenter:  seg,
		Logger:     r.logger,
	}
	if _, remote := seg.(*segment.HTTPClient); remote {
		asm.Chip = func(id int64) (image.Image, error) { return imaging.Open(r.layout.Chip(year, id)) }
	}
	if r.cfg.Data.Quicklook {
		asm.Quicklook = func(id int64, img image.Image) error {
			return imaging.SavePNG(r.layout.Quicklook(year, id), img)
		}
	}

	outcomes := pool.Run(ctx, len(cands), r.cfg.Workers.CPU,
		func(i int) Outcome { return asm.Process(ctx, cands[i]) },
		func(i int, err error) Outcome { return Outcome{ID: cands[i].ID, Status: StatusFailed, Err: err} })

	var preds []orb.MultiPolygon
	for _, o := range outcomes {
		d.Record(o)
		if o.Status == StatusOK {
			preds = append(preds, o.Prediction.Geometry)
		}
	}
	if err := ctx.Err(); err != nil {
		return d, err
	}

	clusters, err := cluster.Resolve(preds)
	if err != nil {
		return d, fmt.Errorf("failed to resolve overlaps: %w", err)
	}
	feats := make([]store.Feature, len(clusters))
	for i, c := range clusters {
		feats[i] = store.Feature{ID: int64(c.ID), Geometry: c.Geometry, Year: year}
	}
	if err := store.WriteFile(r.layout.Predicted(year), LayerName, feats); err != nil {
		return d, fmt.Errorf("failed to write predictions: %w", err)
	}

	d.Log(r.logger, "predict", zap.Int("year", year), zap.Int("clusters", len(clusters)))
	return d, nil
}
