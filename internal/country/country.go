// Package country attributes polygons to countries and decides whether a
// site lies inside the imagery provider's coverage.
package country

import (
	"fmt"
	"strings"

	"github.com/ironsheep/minepoly/internal/geometry"
	"github.com/ironsheep/minepoly/internal/store"
	"github.com/paulmach/orb"
)

// unknownISO is the Natural Earth placeholder for territories without an
// ISO 3166 code.
const unknownISO = "-99"

// Boundary is one country polygon.
type Boundary struct {
	ISO3     string
	Name     string
	Geometry orb.Geometry
}

// Lookup answers point-in-country questions for a fixed boundary layer.
type Lookup struct {
	boundaries []Boundary
	index      *geometry.Index
}

// NewLookup prepares the boundaries for repeated intersection tests.
func NewLookup(boundaries []Boundary) (*Lookup, error) {
	geoms := make([]orb.Geometry, len(boundaries))
	for i, b := range boundaries {
		geoms[i] = b.Geometry
	}
	idx, err := geometry.NewIndex(geoms)
	if err != nil {
		return nil, fmt.Errorf("failed to index country boundaries: %w", err)
	}
	return &Lookup{boundaries: boundaries, index: idx}, nil
}

// Load reads a boundary layer. The ISO code is taken from the first of
// iso_a3, ISO_A3, ISO3_CODE or adm0_a3 present, the name from name, NAME,
// ADMIN or COUNTRY_NAME.
func Load(path, layer string) (*Lookup, error) {
	feats, err := store.ReadFile(path, layer)
	if err != nil {
		return nil, fmt.Errorf("failed to read country boundaries: %w", err)
	}
	boundaries := make([]Boundary, 0, len(feats))
	for _, f := range feats {
		if f.Geometry == nil {
			continue
		}
		iso := f.ISOA3
		if iso == "" {
			iso = firstString(f.Properties, "ISO_A3", "ISO3_CODE", "adm0_a3", "ADM0_A3")
		}
		name := f.CountryName
		if name == "" {
			name = firstString(f.Properties, "name", "NAME", "ADMIN", "COUNTRY_NAME")
		}
		boundaries = append(boundaries, Boundary{ISO3: iso, Name: name, Geometry: f.Geometry})
	}
	return NewLookup(boundaries)
}

// Attribute returns the ISO3 code and name of the first boundary that
// intersects g. Both are empty when no boundary matches. A "-99" code is
// reported as empty while the name is kept.
func (l *Lookup) Attribute(g orb.Geometry) (iso, name string, err error) {
	i, err := l.index.First(g)
	if err != nil {
		return "", "", err
	}
	if i < 0 {
		return "", "", nil
	}
	b := l.boundaries[i]
	iso = b.ISO3
	if iso == unknownISO {
		iso = ""
	}
	return iso, b.Name, nil
}

// Close releases the prepared geometries.
func (l *Lookup) Close() {
	if l != nil && l.index != nil {
		l.index.Close()
	}
}

func firstString(props map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := props[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Coverage describes where the imagery provider has data.
type Coverage struct {
	MinLat   float64  `mapstructure:"min_lat"`
	MaxLat   float64  `mapstructure:"max_lat"`
	Excluded []string `mapstructure:"excluded"`
}

// DefaultExcluded lists the countries outside the NICFI tropical programme
// although parts of them fall inside its latitude band.
var DefaultExcluded = []string{
	"USA", "CHN", "RUS", "CAN", "AUS", "SAU", "MRT", "DZA", "LBA", "EGY",
	"OMN", "YEM", "NCL", "MAR", "ESH", "LBY", "TUN", "JOR", "ISR", "PSE",
	"SYR", "LBN", "IRQ", "KWT", "IRN", "AFG", "PAK", "URY", "TWN", "KOR",
	"PRK", "JPN", "ARE", "QAT", "PRI",
}

// DefaultCoverage is the NICFI tropical band between 30°S and 30°N.
func DefaultCoverage() Coverage {
	return Coverage{MinLat: -30, MaxLat: 30, Excluded: append([]string(nil), DefaultExcluded...)}
}

// Covers reports whether a site with geometry g in country iso can be
// imaged: g must reach into the latitude band and iso must not be
// excluded.
func (c Coverage) Covers(g orb.Geometry, iso string) bool {
	b := g.Bound()
	if b.Max.Y() < c.MinLat || b.Min.Y() > c.MaxLat {
		return false
	}
	for _, e := range c.Excluded {
		if strings.EqualFold(e, iso) {
			return false
		}
	}
	return true
}
