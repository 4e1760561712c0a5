// Package segment connects the pipeline to the segmentation model. The model
// itself lives outside this repository; a Segmenter turns one chip into a
// binary mining mask.
package segment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ironsheep/minepoly/internal/detection"
)

// ErrNoPrediction is returned when no mask exists for a candidate.
var ErrNoPrediction = errors.New("no prediction for candidate")

// Encoding describes how a mask image stores the model output.
type Encoding string

const (
	// EncodingClass is a class map: 0 is background, anything else mining.
	EncodingClass Encoding = "class"
	// EncodingProbability is an 8-bit probability map compared against a
	// threshold.
	EncodingProbability Encoding = "probability"
)

// ParseEncoding validates an encoding name. Empty selects EncodingClass.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case "", EncodingClass:
		return EncodingClass, nil
	case EncodingProbability:
		return EncodingProbability, nil
	}
	return "", fmt.Errorf("unknown mask encoding %q", s)
}

// Segmenter produces the mining mask of one candidate chip.
type Segmenter interface {
	Segment(ctx context.Context, id int64, chip image.Image) (*detection.Mask, error)
}

// Decode turns a mask image into a binary mask.
func Decode(img image.Image, enc Encoding, threshold float64) *detection.Mask {
	if enc == EncodingProbability {
		return detection.MaskFromImage(img, detection.ProbabilityLevel(threshold))
	}
	return detection.MaskFromClassMap(img)
}

// Directory serves masks that were predicted ahead of time and stored as
// <dir>/<id>.png.
type Directory struct {
	Dir       string
	Encoding  Encoding
	Threshold float64
}

// Path returns the mask file of candidate id.
func (d *Directory) Path(id int64) string {
	return filepath.Join(d.Dir, strconv.FormatInt(id, 10)+".png")
}

// Segment reads the stored mask of id; the chip is not used.
func (d *Directory) Segment(ctx context.Context, id int64, _ image.Image) (*detection.Mask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(d.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %d", ErrNoPrediction, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open mask: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mask %d: %w", id, err)
	}
	return Decode(img, d.Encoding, d.Threshold), nil
}
