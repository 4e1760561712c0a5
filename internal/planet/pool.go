package planet

import (
	"context"

	"go.uber.org/zap"

	"github.com/ironsheep/minepoly/internal/geo"
	"github.com/ironsheep/minepoly/internal/pool"
)

// DefaultWorkers is the default I/O fan-out.
const DefaultWorkers = 10

// LookupRequest asks for the tiles under one candidate window.
type LookupRequest struct {
	ID   int64
	BBox geo.BoundingBox
}

// LookupResult carries the tiles found for one request. Err is set when the
// lookup failed after retries; the candidate is then skipped.
type LookupResult struct {
	ID    int64
	Tiles []geo.TileDescriptor
	Err   error
}

// DownloadJob fetches one tile to Path.
type DownloadJob struct {
	Tile geo.TileDescriptor
	Path string
}

// DownloadResult reports the outcome of one job.
type DownloadResult struct {
	Job     DownloadJob
	Skipped bool
	Err     error
}

// LookupAll resolves the tiles of every request against mosaicID.
func (c *Client) LookupAll(ctx context.Context, mosaicID string, reqs []LookupRequest, workers int) []LookupResult {
	return pool.Run(ctx, len(reqs), workerCount(workers),
		func(i int) LookupResult {
			tiles, err := c.Quads(ctx, mosaicID, reqs[i].BBox)
			if err != nil {
				c.logger.Warn("Quad lookup failed", zap.Int64("id", reqs[i].ID), zap.Error(err))
			}
			return LookupResult{ID: reqs[i].ID, Tiles: tiles, Err: err}
		},
		func(i int, err error) LookupResult {
			return LookupResult{ID: reqs[i].ID, Err: err}
		})
}

// DownloadAll fetches every job, skipping files already on disk. Jobs that
// share a path run once. A duplicate reports the outcome of the job that
// ran: skipped when it succeeded, its error when it failed.
func (c *Client) DownloadAll(ctx context.Context, jobs []DownloadJob, workers int) []DownloadResult {
	first := make(map[string]int, len(jobs))
	var unique []int
	for i, j := range jobs {
		if _, ok := first[j.Path]; !ok {
			first[j.Path] = len(unique)
			unique = append(unique, i)
		}
	}

	ran := pool.Run(ctx, len(unique), workerCount(workers),
		func(k int) DownloadResult {
			job := jobs[unique[k]]
			skipped, err := c.Download(ctx, job.Tile.DownloadRef, job.Path)
			if err != nil {
				c.logger.Warn("Tile download failed", zap.String("tile", job.Tile.ID), zap.Error(err))
			}
			return DownloadResult{Job: job, Skipped: skipped, Err: err}
		},
		func(k int, err error) DownloadResult {
			return DownloadResult{Job: jobs[unique[k]], Err: err}
		})

	out := make([]DownloadResult, len(jobs))
	for i, job := range jobs {
		k := first[job.Path]
		if unique[k] == i {
			out[i] = ran[k]
			continue
		}
		out[i] = DownloadResult{Job: job, Skipped: ran[k].Err == nil, Err: ran[k].Err}
	}
	return out
}

func workerCount(n int) int {
	if n <= 0 {
		return DefaultWorkers
	}
	return n
}
