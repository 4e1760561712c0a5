package detection

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/segment"
)

// Mask is a binary raster. Pix holds one byte per pixel in row-major order,
// 1 for foreground and 0 for background.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewMask allocates an all-background mask.
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// At reports whether (x, y) is foreground. Out-of-range coordinates are
// background.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x] != 0
}

// Set marks (x, y) as foreground or background. Out-of-range coordinates
// are ignored.
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	if v {
		m.Pix[y*m.Width+x] = 1
	} else {
		m.Pix[y*m.Width+x] = 0
	}
}

// FillRect marks the half-open rectangle [x1,x2)×[y1,y2) as foreground.
func (m *Mask) FillRect(x1, y1, x2, y2 int) {
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			m.Set(x, y, true)
		}
	}
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	out := &Mask{Width: m.Width, Height: m.Height, Pix: make([]uint8, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// Image renders the mask as black background with white foreground.
func (m *Mask) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v != 0 {
			img.Pix[i] = 255
		}
	}
	return img
}

// MaskFromImage binarises a probability image: pixels whose luminance is
// at least level become foreground. Use ProbabilityLevel to turn a
// probability threshold into a level.
func MaskFromImage(img image.Image, level uint8) *Mask {
	gray := segment.Threshold(img, level)
	b := gray.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
		for x, v := range row {
			if v != 0 {
				m.Pix[y*m.Width+x] = 1
			}
		}
	}
	return m
}

// MaskFromClassMap reads a discrete class map in which background is
// stored as 0 and any other value is a mining class.
func MaskFromClassMap(img image.Image) *Mask {
	b := img.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			if g.Y != 0 {
				m.Pix[y*m.Width+x] = 1
			}
		}
	}
	return m
}

// ProbabilityLevel converts a probability threshold in (0,1) to the 8-bit
// level expected by MaskFromImage.
func ProbabilityLevel(threshold float64) uint8 {
	v := math.Round(threshold * 255)
	if v < 1 {
		return 1
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// MaskFromLogits thresholds raw model logits: a pixel is foreground when
// sigmoid(logit) >= threshold.
func MaskFromLogits(logits []float32, width, height int, threshold float64) (*Mask, error) {
	if len(logits) != width*height {
		return nil, fmt.Errorf("logit count %d does not match %dx%d raster", len(logits), width, height)
	}
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("threshold must be in (0,1), got %g", threshold)
	}
	// sigmoid(x) >= t  <=>  x >= log(t/(1-t))
	cut := math.Log(threshold / (1 - threshold))
	m := NewMask(width, height)
	for i, l := range logits {
		if float64(l) >= cut {
			m.Pix[i] = 1
		}
	}
	return m, nil
}
