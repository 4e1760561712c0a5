package imaging

import (
	"errors"
	"image"
)

// ErrEmptyBand is returned when a band carries no dynamic range in a window,
// typically because the window fell on the no-data border of a tile.
var ErrEmptyBand = errors.New("empty color channel")

// BandStats summarises one band of a window.
type BandStats struct {
	Min  uint16  `json:"min"`
	Max  uint16  `json:"max"`
	Mean float64 `json:"mean"`
}

// Empty reports whether the band is constant.
func (s BandStats) Empty() bool { return s.Max == s.Min }

func bandStats(values []uint16) BandStats {
	if len(values) == 0 {
		return BandStats{}
	}
	s := BandStats{Min: values[0], Max: values[0]}
	var sum uint64
	for _, v := range values {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		sum += uint64(v)
	}
	s.Mean = float64(sum) / float64(len(values))
	return s
}

// Stats returns the statistics of the R, G and B bands in that order.
func (b *Bands) Stats() [3]BandStats {
	return [3]BandStats{bandStats(b.R), bandStats(b.G), bandStats(b.B)}
}

// Normalize stretches every band independently from its [min, max] range
// onto 0..255 and returns an opaque 8-bit image. A constant band yields
// ErrEmptyBand.
func (b *Bands) Normalize() (*image.NRGBA, error) {
	stats := b.Stats()
	for _, s := range stats {
		if s.Empty() {
			return nil, ErrEmptyBand
		}
	}

	out := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	bands := [3][]uint16{b.R, b.G, b.B}
	for i := 0; i < b.Width*b.Height; i++ {
		p := out.Pix[i*4 : i*4+4 : i*4+4]
		for c, values := range bands {
			s := stats[c]
			p[c] = uint8((uint32(values[i]-s.Min)*255 + uint32(s.Max-s.Min)/2) / uint32(s.Max-s.Min))
		}
		p[3] = 0xff
	}
	return out, nil
}
