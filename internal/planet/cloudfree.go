package planet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ironsheep/minepoly/internal/geo"
)

// Cloudfree maps year and quad id to a replacement download link for a
// hand-picked cloud-free scene.
type Cloudfree map[int]map[string]string

// LoadCloudfree reads a CSV with a header containing year, quad and link
// columns, in any order.
func LoadCloudfree(path string) (Cloudfree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cloudfree list: %w", err)
	}
	defer f.Close()
	return ReadCloudfree(f)
}

// ReadCloudfree parses the cloudfree CSV from r.
func ReadCloudfree(r io.Reader) (Cloudfree, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read cloudfree header: %w", err)
	}
	col := map[string]int{"year": -1, "quad": -1, "link": -1}
	for i, h := range header {
		if _, ok := col[strings.TrimSpace(h)]; ok {
			col[strings.TrimSpace(h)] = i
		}
	}
	for name, i := range col {
		if i < 0 {
			return nil, fmt.Errorf("cloudfree list has no %q column", name)
		}
	}

	out := make(Cloudfree)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read cloudfree list: %w", err)
		}
		year, err := strconv.Atoi(strings.TrimSpace(rec[col["year"]]))
		if err != nil {
			return nil, fmt.Errorf("cloudfree line %d: invalid year: %w", line, err)
		}
		if out[year] == nil {
			out[year] = make(map[string]string)
		}
		out[year][strings.TrimSpace(rec[col["quad"]])] = strings.TrimSpace(rec[col["link"]])
	}
	return out, nil
}

// Apply returns a copy of tiles where every quad listed for year downloads
// from its cloud-free link, with apiKey appended as the link expects. It
// also returns how many tiles were substituted.
func (cf Cloudfree) Apply(year int, tiles []geo.TileDescriptor, apiKey string) ([]geo.TileDescriptor, int) {
	out := make([]geo.TileDescriptor, len(tiles))
	copy(out, tiles)

	links := cf[year]
	n := 0
	for i, t := range out {
		if link, ok := links[t.ID]; ok && link != "" {
			out[i].DownloadRef = link + apiKey
			n++
		}
	}
	return out, n
}
