package frame

import (
	"runtime"
	"sync"
	"time"
)

// TileFunc renders one tile in place (accumulating samples into whatever
// buffer the caller closed over) and reports how it went.
type TileFunc func(workerID int, t Tile) error

// WorkerPool runs a fixed number of goroutines pulling tiles off a shared
// channel: tiles are non-overlapping so no synchronization is needed
// beyond the channel handoff itself, and the pool size defaults to
// runtime.NumCPU() to match hardware concurrency.
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool builds a pool with numWorkers goroutines; numWorkers <= 0
// defaults to runtime.NumCPU().
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &WorkerPool{numWorkers: numWorkers}
}

// Run renders every tile in tiles by dispatching to render, and returns
// per-tile timing plus the frame's total wall-clock time. A tile that
// returns an error records it on the returned FrameStats without stopping
// the remaining tiles already queued or in flight -- a failed tile marks
// the frame discarded but never corrupts the accumulator any other tile is
// writing into, since tile bounds never overlap.
func (wp *WorkerPool) Run(tiles []Tile, render TileFunc) FrameStats {
	start := time.Now()
	totalPixels := float32(0)
	for _, t := range tiles {
		totalPixels += float32(t.Area())
	}

	taskCh := make(chan Tile, len(tiles))
	for _, t := range tiles {
		taskCh <- t
	}
	close(taskCh)

	statCh := make(chan TileStat, len(tiles))
	var errMu sync.Mutex
	var firstErr error

	var wg sync.WaitGroup
	for w := 0; w < wp.numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for t := range taskCh {
				tileStart := time.Now()
				err := render(workerID, t)
				elapsed := time.Since(tileStart)

				if err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
				}

				percent := float32(0)
				if totalPixels > 0 {
					percent = 100 * float32(t.Area()) / totalPixels
				}
				statCh <- TileStat{WorkerID: workerID, Tile: t, FramePercent: percent, RenderTime: elapsed}
			}
		}(w)
	}

	go func() {
		wg.Wait()
		close(statCh)
	}()

	stats := FrameStats{Tiles: make([]TileStat, 0, len(tiles))}
	for ts := range statCh {
		stats.Tiles = append(stats.Tiles, ts)
	}
	stats.RenderTime = time.Since(start)
	stats.Err = firstErr
	return stats
}
