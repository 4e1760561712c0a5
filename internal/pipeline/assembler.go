package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"go.uber.org/zap"

	"github.com/ironsheep/minepoly/internal/chips"
	"github.com/ironsheep/minepoly/internal/detection"
	"github.com/ironsheep/minepoly/internal/geo"
	"github.com/ironsheep/minepoly/internal/imaging"
	"github.com/ironsheep/minepoly/internal/segment"
)

// Assembler turns the model mask of one candidate into its geographic
// prediction.
type Assembler struct {
	Options    detection.Options
	TilePixels int
	RasterSize int
	Segmenter  segment.Segmenter

	// Chip loads the chip passed to the segmenter. Nil passes no chip,
	// which suits segmenters that read stored masks.
	Chip func(id int64) (image.Image, error)

	// Quicklook, when set, receives a rendering of every non-empty mask
	// with its polygons and the tile grid.
	Quicklook func(id int64, img image.Image) error

	Logger *zap.Logger
}

// Assemble projects reconstructed mosaic-pixel polygons into geographic
// coordinates as one multipolygon.
func Assemble(id int64, p geo.Projector, polys []orb.Polygon) Prediction {
	mp := make(orb.MultiPolygon, 0, len(polys))
	for _, poly := range polys {
		mp = append(mp, project.Polygon(orb.Clone(poly).(orb.Polygon), p.MosaicToGeo))
	}
	return Prediction{SourceID: id, Geometry: mp}
}

// Process runs segmentation and reconstruction for one candidate. It never
// panics on bad input; every failure is reported through the outcome.
func (a *Assembler) Process(ctx context.Context, c Candidate) Outcome {
	out := Outcome{ID: c.ID, Prediction: Prediction{SourceID: c.ID}}

	frame, err := chips.Locate(c.Tiles, c.Window, a.TilePixels, a.RasterSize)
	switch {
	case errors.Is(err, geo.ErrNoTiles):
		out.Status = StatusNoImagery
		return out
	case errors.Is(err, geo.ErrDegenerate):
		out.Status, out.Err = StatusInvalidWindow, err
		return out
	case err != nil:
		return a.fail(out, err)
	}

	var chip image.Image
	if a.Chip != nil {
		if chip, err = a.Chip(c.ID); err != nil {
			out.Status, out.Err = StatusNoPrediction, err
			return out
		}
	}

	mask, err := a.Segmenter.Segment(ctx, c.ID, chip)
	if errors.Is(err, segment.ErrNoPrediction) {
		out.Status, out.Err = StatusNoPrediction, err
		return out
	}
	if err != nil {
		return a.fail(out, err)
	}

	polys, stats, err := detection.Reconstruct(mask, frame.Window, a.Options)
	out.Stats = stats
	if err != nil {
		return a.fail(out, err)
	}

	out.Prediction = Assemble(c.ID, frame.Projector, polys)
	if out.Prediction.Empty() {
		out.Status = StatusEmpty
	}

	if a.Quicklook != nil && mask.Count() > 0 {
		if err := a.Quicklook(c.ID, a.quicklook(frame, mask, polys)); err != nil {
			a.logger().Warn("Failed to write quicklook", zap.Int64("id", c.ID), zap.Error(err))
		}
	}
	return out
}

func (a *Assembler) quicklook(f chips.Frame, mask *detection.Mask, polys []orb.Polygon) image.Image {
	raster := make([]orb.Polygon, len(polys))
	for i, p := range polys {
		raster[i] = project.Polygon(orb.Clone(p).(orb.Polygon), f.Window.MosaicToRaster)
	}
	base := mask.Image()
	for i, v := range base.Pix {
		if v != 0 {
			base.Pix[i] = 0x60
		}
	}
	xs, ys := f.GridLines(a.TilePixels)
	return imaging.Quicklook(base, raster, imaging.QuicklookOptions{
		GridX: xs, GridY: ys, GridColor: imaging.DefaultGridColor, Labels: true,
	})
}

func (a *Assembler) fail(out Outcome, err error) Outcome {
	out.Status = StatusFailed
	out.Err = fmt.Errorf("candidate %d: %w", out.ID, err)
	a.logger().Warn("Candidate failed", zap.Int64("id", out.ID), zap.Error(err))
	return out
}

func (a *Assembler) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}
