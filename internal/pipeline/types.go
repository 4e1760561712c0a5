package pipeline

import (
	"github.com/paulmach/orb"

	"github.com/ironsheep/minepoly/internal/detection"
	"github.com/ironsheep/minepoly/internal/geo"
)

// Candidate is one site to examine. It is not modified after loading.
type Candidate struct {
	ID       int64
	Geometry orb.Geometry

	// Window is the geographic search window around Geometry.
	Window geo.BoundingBox

	// Tiles are the imagery tiles under Window for the year being run.
	Tiles []geo.TileDescriptor

	ISOA3       string
	CountryName string
}

// WithTiles returns a copy of c using tiles.
func (c Candidate) WithTiles(tiles []geo.TileDescriptor) Candidate {
	c.Tiles = append([]geo.TileDescriptor(nil), tiles...)
	return c
}

// TileIDs lists the ids of c's tiles.
func (c Candidate) TileIDs() []string {
	ids := make([]string, len(c.Tiles))
	for i, t := range c.Tiles {
		ids[i] = t.ID
	}
	return ids
}

// Prediction is the reconstructed geometry of one candidate in geographic
// coordinates. An empty geometry is a valid result.
type Prediction struct {
	SourceID int64
	Geometry orb.MultiPolygon
}

// Empty reports whether nothing was detected.
func (p Prediction) Empty() bool { return len(p.Geometry) == 0 }

// Status is the terminal state of one candidate in a stage.
type Status int

const (
	StatusOK Status = iota
	// StatusEmpty means the candidate was processed and nothing survived.
	StatusEmpty
	StatusNoImagery
	StatusInvalidWindow
	StatusNoPrediction
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusNoImagery:
		return "no_imagery"
	case StatusInvalidWindow:
		return "invalid_window"
	case StatusNoPrediction:
		return "no_prediction"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the result of processing one candidate.
type Outcome struct {
	ID         int64
	Status     Status
	Prediction Prediction
	Stats      detection.Stats
	Err        error

	// EmptyTarget is set when a training target was written with nothing
	// drawn into it.
	EmptyTarget bool
}
