package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ironsheep/minepoly/internal/country"
	"github.com/ironsheep/minepoly/internal/geometry"
	"github.com/ironsheep/minepoly/internal/store"
	"github.com/ironsheep/minepoly/internal/temporal"
)

// PostprocessReport summarises one output file.
type PostprocessReport struct {
	Year     int
	Buffered bool
	Path     string
	Before   int
	After    int
}

// Postprocess filters the yearly predictions for temporal persistence and
// writes the final datasets, once with the configured buffer and once
// without. Years without a prediction file are left out.
func (r *Runner) Postprocess(ctx context.Context, years []int) ([]PostprocessReport, error) {
	var datasets []temporal.Dataset
	for _, y := range years {
		path := r.layout.Predicted(y)
		feats, err := store.ReadFile(path, LayerName)
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("No predictions for year, skipping", zap.Int("year", y), zap.String("path", path))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read predictions for %d: %w", y, err)
		}
		datasets = append(datasets, temporal.Dataset{Year: y, Features: feats})
	}
	if len(datasets) == 0 {
		return nil, fmt.Errorf("no prediction datasets found")
	}

	lookup, err := r.countries()
	if err != nil {
		return nil, err
	}
	defer lookup.Close()

	var reports []PostprocessReport
	for _, buffered := range []bool{true, false} {
		opts := temporal.Options{}
		if buffered {
			opts.Buffer = r.cfg.Temporal.Buffer
		}
		filtered, yearReports, err := temporal.Filter(datasets, opts, r.logger)
		if err != nil {
			return nil, err
		}

		for i, ds := range filtered {
			if err := ctx.Err(); err != nil {
				return reports, err
			}
			feats, err := Finalize(ds, lookup)
			if err != nil {
				return reports, err
			}
			path := r.layout.Postprocessed(ds.Year, buffered)
			if err := store.WriteFile(path, LayerName, feats); err != nil {
				return reports, fmt.Errorf("failed to write %s: %w", path, err)
			}
			rep := PostprocessReport{Year: ds.Year, Buffered: buffered, Path: path, Before: yearReports[i].Before, After: len(feats)}
			reports = append(reports, rep)
			r.logger.Info("Postprocessed year",
				zap.Int("year", rep.Year), zap.Bool("buffered", buffered),
				zap.Int("before", rep.Before), zap.Int("after", rep.After))
		}
	}
	return reports, nil
}

// Finalize repairs geometries, attributes countries, computes the geodesic
// area in square metres and numbers the features of ds sequentially.
// Features whose geometry repairs to nothing are dropped.
func Finalize(ds temporal.Dataset, lookup *country.Lookup) ([]store.Feature, error) {
	out := make([]store.Feature, 0, len(ds.Features))
	for _, f := range ds.Features {
		if f.Geometry == nil {
			continue
		}
		valid, err := geometry.MakeValid(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("failed to repair feature %d: %w", f.ID, err)
		}
		if len(valid) == 0 {
			continue
		}

		iso, name := f.ISOA3, f.CountryName
		if lookup != nil {
			if iso, name, err = lookup.Attribute(valid); err != nil {
				return nil, fmt.Errorf("failed to attribute feature %d: %w", f.ID, err)
			}
		}

		out = append(out, store.Feature{
			ID:          int64(len(out)),
			Geometry:    valid,
			ISOA3:       iso,
			CountryName: name,
			Year:        ds.Year,
			Area:        geometry.GeodesicArea(valid),
		})
	}
	return out, nil
}
