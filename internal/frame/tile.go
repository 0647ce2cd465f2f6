// Package frame implements the frame-level orchestration around
// internal/pathtrace's per-sample estimator: 2D tile scheduling, a fixed
// worker pool, a progressive per-pixel accumulator with running-variance
// tracking, and an NLM variance-guided filter for the final tonemap pass.
//
// 2-D tiles are scheduled over a single CPU worker pool rather than 1-D
// row blocks across per-device tracers, since the software path has no
// per-device split to schedule around. The worker-pool plumbing itself
// (task/result channels, one goroutine per worker, non-overlapping tile
// bounds needing no synchronization) follows the same shape as any
// bounded-work-queue pool.
package frame

// Tile is a non-overlapping rectangular region of the frame buffer.
type Tile struct {
	X, Y, W, H uint32
}

// DefaultTileSize is the default CPU tile edge in pixels (32x32 tiles),
// keeping a single tile's pixel count a cache-friendly unit of work.
const DefaultTileSize = 32

// Tiles splits a frameW x frameH image into tileSize x tileSize tiles
// (the last tile in each row/column is clipped to fit the frame), in
// row-major order.
func Tiles(frameW, frameH, tileSize uint32) []Tile {
	if tileSize == 0 {
		tileSize = DefaultTileSize
	}
	var tiles []Tile
	for y := uint32(0); y < frameH; y += tileSize {
		h := tileSize
		if y+h > frameH {
			h = frameH - y
		}
		for x := uint32(0); x < frameW; x += tileSize {
			w := tileSize
			if x+w > frameW {
				w = frameW - x
			}
			tiles = append(tiles, Tile{X: x, Y: y, W: w, H: h})
		}
	}
	return tiles
}

// Area returns the pixel count covered by the tile.
func (t Tile) Area() uint32 { return t.W * t.H }
