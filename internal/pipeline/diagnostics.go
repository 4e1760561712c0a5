package pipeline

import (
	"go.uber.org/zap"
)

// Diagnostics aggregates per-candidate results of a stage.
type Diagnostics struct {
	Candidates      int
	OutOfCoverage   int
	SkippedLookup   int
	SkippedDownload int
	NoImagery       int
	InvalidWindow   int
	NoPrediction    int
	Degenerate      int
	BelowAreaFloor  int
	Failed          int
	Empty           int
	Produced        int

	// EmptyTargets counts training targets written without any mining
	// polygon drawn.
	EmptyTargets int
}

// Record counts one outcome.
func (d *Diagnostics) Record(o Outcome) {
	d.Candidates++
	d.Degenerate += o.Stats.Degenerate
	d.BelowAreaFloor += o.Stats.BelowAreaFloor
	if o.EmptyTarget {
		d.EmptyTargets++
	}

	switch o.Status {
	case StatusOK:
		d.Produced++
	case StatusEmpty:
		d.Empty++
	case StatusNoImagery:
		d.NoImagery++
	case StatusInvalidWindow:
		d.InvalidWindow++
	case StatusNoPrediction:
		d.NoPrediction++
	case StatusFailed:
		d.Failed++
	}
}

// Log writes the counters at info level.
func (d Diagnostics) Log(logger *zap.Logger, stage string, extra ...zap.Field) {
	fields := []zap.Field{
		zap.String("stage", stage),
		zap.Int("candidates", d.Candidates),
		zap.Int("produced", d.Produced),
		zap.Int("empty", d.Empty),
		zap.Int("out_of_coverage", d.OutOfCoverage),
		zap.Int("skipped_lookup", d.SkippedLookup),
		zap.Int("skipped_download", d.SkippedDownload),
		zap.Int("no_imagery", d.NoImagery),
		zap.Int("invalid_window", d.InvalidWindow),
		zap.Int("no_prediction", d.NoPrediction),
		zap.Int("degenerate", d.Degenerate),
		zap.Int("below_area_floor", d.BelowAreaFloor),
		zap.Int("failed", d.Failed),
		zap.Int("empty_targets", d.EmptyTargets),
	}
	logger.Info("Stage complete", append(fields, extra...)...)
}
