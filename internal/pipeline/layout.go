package pipeline

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// Layout resolves the on-disk locations under the data directory.
type Layout struct {
	Root string
}

func (l Layout) yearDir(year int) string {
	return filepath.Join(l.Root, "segmentation", strconv.Itoa(year))
}

// TileIndex is the cached quad lookup of a year.
func (l Layout) TileIndex(year int) string {
	return filepath.Join(l.yearDir(year), "tiles.json")
}

// Tile is the GeoTIFF of one quad.
func (l Layout) Tile(year int, tileID string) string {
	return filepath.Join(l.Root, "tiff_tiles", strconv.Itoa(year), tileID+".tiff")
}

// ChipDir holds the inference chips of a year.
func (l Layout) ChipDir(year int) string { return filepath.Join(l.yearDir(year), "img_dir") }

// TargetDir holds the training targets of a year.
func (l Layout) TargetDir(year int) string { return filepath.Join(l.yearDir(year), "ann_dir") }

// PredictionDir holds the model masks of a year.
func (l Layout) PredictionDir(year int) string { return filepath.Join(l.yearDir(year), "pred_dir") }

// QuicklookDir holds quicklook renderings of a year.
func (l Layout) QuicklookDir(year int) string { return filepath.Join(l.yearDir(year), "quicklook") }

// Chip is the chip of candidate id.
func (l Layout) Chip(year int, id int64) string {
	return filepath.Join(l.ChipDir(year), strconv.FormatInt(id, 10)+".png")
}

// Target is the training target of candidate id.
func (l Layout) Target(year int, id int64) string {
	return filepath.Join(l.TargetDir(year), strconv.FormatInt(id, 10)+".png")
}

// Quicklook is the quicklook of candidate id.
func (l Layout) Quicklook(year int, id int64) string {
	return filepath.Join(l.QuicklookDir(year), strconv.FormatInt(id, 10)+".png")
}

// Predicted is the clustered prediction dataset of a year.
func (l Layout) Predicted(year int) string {
	return filepath.Join(l.yearDir(year), "gpkg", fmt.Sprintf("global_mining_polygons_predicted_%d.gpkg", year))
}

// Postprocessed is the final dataset of a year, with or without the
// temporal buffer.
func (l Layout) Postprocessed(year int, buffered bool) string {
	name := fmt.Sprintf("global_mining_polygons_predicted_%d_postprocessed.gpkg", year)
	if !buffered {
		name = fmt.Sprintf("global_mining_polygons_predicted_%d_postprocessed_nobuffer.gpkg", year)
	}
	return filepath.Join(l.yearDir(year), "gpkg", name)
}
