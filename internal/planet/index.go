package planet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ironsheep/minepoly/internal/geo"
)

// Index is the cached result of the quad lookups of one year, keyed by
// candidate id.
type Index struct {
	Year     int                            `json:"year"`
	MosaicID string                         `json:"mosaic_id"`
	Tiles    map[int64][]geo.TileDescriptor `json:"tiles"`
}

// NewIndex creates an empty index.
func NewIndex(year int, mosaicID string) *Index {
	return &Index{Year: year, MosaicID: mosaicID, Tiles: make(map[int64][]geo.TileDescriptor)}
}

// UniqueTiles returns every distinct tile in the index ordered by id.
func (x *Index) UniqueTiles() []geo.TileDescriptor {
	byID := make(map[string]geo.TileDescriptor)
	for _, ts := range x.Tiles {
		for _, t := range ts {
			if _, ok := byID[t.ID]; !ok || (byID[t.ID].DownloadRef == "" && t.DownloadRef != "") {
				byID[t.ID] = t
			}
		}
	}
	out := make([]geo.TileDescriptor, 0, len(byID))
	for _, t := range byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadIndex reads an index written by Save.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile index: %w", err)
	}
	var x Index
	if err := json.Unmarshal(data, &x); err != nil {
		return nil, fmt.Errorf("failed to parse tile index: %w", err)
	}
	if x.Tiles == nil {
		x.Tiles = make(map[int64][]geo.TileDescriptor)
	}
	return &x, nil
}

// Save writes the index as JSON, replacing path atomically.
func (x *Index) Save(path string) error {
	data, err := json.MarshalIndent(x, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tile index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write tile index: %w", err)
	}
	return os.Rename(tmp, path)
}
