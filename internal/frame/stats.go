package frame

import "time"

// TileStat records the timing of a single completed tile rendered by one
// CPU worker.
type TileStat struct {
	// WorkerID identifies which worker rendered the tile.
	WorkerID int

	Tile Tile

	// FramePercent is the percentage (0-100) of the frame's total pixel
	// count this tile covers.
	FramePercent float32

	RenderTime time.Duration
}

// FrameStats aggregates every tile's timing for one RenderFrame call, plus
// frame-scoped error propagation: a tile that fails sets Err without
// aborting sibling tiles already in flight, leaving the frame discarded
// without corrupting scene state.
type FrameStats struct {
	Tiles      []TileStat
	RenderTime time.Duration
	Err        error
}
