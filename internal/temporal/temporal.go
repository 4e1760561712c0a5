// Package temporal keeps only detections that persist across years.
//
// A mine that shows up in a single year with no overlap in the years
// before or after it is most likely a false positive. Filter drops those
// detections year by year.
package temporal

import (
	"fmt"
	"sort"

	"github.com/ironsheep/minepoly/internal/geometry"
	"github.com/ironsheep/minepoly/internal/store"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// DefaultBuffer is the tolerance, in degrees, applied to the current year's
// geometry before the overlap test. It is roughly 50 m at the equator.
const DefaultBuffer = 0.0005

// Dataset is the collection of polygons detected in one year.
type Dataset struct {
	Year     int
	Features []store.Feature
}

// Options controls the overlap test.
type Options struct {
	// Buffer grows each current-year geometry by this many degrees before
	// testing it against the neighbouring years. Zero disables it. The
	// persisted geometry is never buffered.
	Buffer float64 `mapstructure:"buffer"`
}

// YearReport summarises the filtering of one year.
type YearReport struct {
	Year       int   `json:"year"`
	Neighbours []int `json:"neighbours"`
	Before     int   `json:"before"`
	After      int   `json:"after"`
}

// Filter returns, for every input year, the features that intersect at
// least one feature of the previous or the following calendar year.
//
// Neighbours are always the original, unfiltered datasets, so the result
// does not depend on the order in which years are processed. A year with
// no neighbour in the input at all is returned unchanged.
func Filter(datasets []Dataset, opts Options, logger *zap.Logger) ([]Dataset, []YearReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	sorted := make([]Dataset, len(datasets))
	copy(sorted, datasets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	byYear := make(map[int]Dataset, len(sorted))
	for _, d := range sorted {
		if _, dup := byYear[d.Year]; dup {
			return nil, nil, fmt.Errorf("year %d appears more than once", d.Year)
		}
		byYear[d.Year] = d
	}

	indexes := make(map[int]*geometry.Index, len(sorted))
	defer func() {
		for _, idx := range indexes {
			idx.Close()
		}
	}()
	indexFor := func(year int) (*geometry.Index, error) {
		if idx, ok := indexes[year]; ok {
			return idx, nil
		}
		feats := byYear[year].Features
		geoms := make([]orb.Geometry, 0, len(feats))
		for _, f := range feats {
			if f.Geometry != nil {
				geoms = append(geoms, f.Geometry)
			}
		}
		idx, err := geometry.NewIndex(geoms)
		if err != nil {
			return nil, fmt.Errorf("failed to index year %d: %w", year, err)
		}
		indexes[year] = idx
		return idx, nil
	}

	out := make([]Dataset, 0, len(sorted))
	reports := make([]YearReport, 0, len(sorted))
	for _, d := range sorted {
		var neighbours []*geometry.Index
		report := YearReport{Year: d.Year, Before: len(d.Features)}
		for _, y := range []int{d.Year - 1, d.Year + 1} {
			if _, ok := byYear[y]; !ok {
				continue
			}
			idx, err := indexFor(y)
			if err != nil {
				return nil, nil, err
			}
			neighbours = append(neighbours, idx)
			report.Neighbours = append(report.Neighbours, y)
		}

		if len(neighbours) == 0 {
			logger.Warn("no neighbouring year, keeping dataset unfiltered", zap.Int("year", d.Year))
			report.After = len(d.Features)
			out = append(out, Dataset{Year: d.Year, Features: append([]store.Feature(nil), d.Features...)})
			reports = append(reports, report)
			continue
		}

		kept := make([]store.Feature, 0, len(d.Features))
		for _, f := range d.Features {
			if f.Geometry == nil {
				continue
			}
			test := f.Geometry
			if opts.Buffer > 0 {
				b, err := geometry.Buffer(f.Geometry, opts.Buffer)
				if err != nil {
					return nil, nil, fmt.Errorf("failed to buffer feature %d of %d: %w", f.ID, d.Year, err)
				}
				test = b
			}
			persistent, err := intersectsAny(test, neighbours)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to test feature %d of %d: %w", f.ID, d.Year, err)
			}
			if persistent {
				kept = append(kept, f)
			}
		}

		report.After = len(kept)
		logger.Info("temporal filter",
			zap.Int("year", d.Year),
			zap.Ints("neighbours", report.Neighbours),
			zap.Int("before", report.Before),
			zap.Int("after", report.After),
		)
		out = append(out, Dataset{Year: d.Year, Features: kept})
		reports = append(reports, report)
	}
	return out, reports, nil
}

func intersectsAny(g orb.Geometry, indexes []*geometry.Index) (bool, error) {
	for _, idx := range indexes {
		i, err := idx.First(g)
		if err != nil {
			return false, err
		}
		if i >= 0 {
			return true, nil
		}
	}
	return false, nil
}
