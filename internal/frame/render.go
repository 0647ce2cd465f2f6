package frame

import (
	"github.com/prism-renderer/prism/internal/pathtrace"
	"github.com/prism-renderer/prism/internal/sampling"
	"github.com/prism-renderer/prism/internal/vecmath"
)

// Options bundles frame dimensions, sample count, exposure and tiling
// parameters; device-selection flags live on the CLI's own flag set
// instead since internal/frame always runs on the CPU worker pool.
type Options struct {
	FrameW, FrameH uint32

	SamplesPerPixel uint32

	Exposure float32

	TileSize   uint32
	NumWorkers int

	Filter FilterParams
}

// DefaultOptions returns the CLI's defaults (512x512, spp=16,
// exposure=1.0).
func DefaultOptions() Options {
	return Options{
		FrameW:          512,
		FrameH:          512,
		SamplesPerPixel: 16,
		Exposure:        1.0,
		TileSize:        DefaultTileSize,
		Filter:          DefaultFilterParams(),
	}
}

// Frame owns the progressive accumulator and orchestrates one full render
// pass across the tile worker pool, exposing both the HDR accumulation
// buffer and the final tonemapped LDR pixel buffer.
type Frame struct {
	opts  Options
	accum *Accumulator
	ldr   []uint8
}

// New allocates a Frame's accumulator and output buffer for the given
// options.
func New(opts Options) *Frame {
	return &Frame{
		opts:  opts,
		accum: NewAccumulator(opts.FrameW, opts.FrameH),
		ldr:   make([]uint8, int(opts.FrameW)*int(opts.FrameH)*4),
	}
}

// RenderFrame traces every pixel of the frame opts.SamplesPerPixel times
// through tr using cam, dispatching tiles across a worker pool sized to
// opts.NumWorkers (0 = runtime.NumCPU()), then resolves the accumulator
// through the NLM filter and tonemap curve into the LDR buffer GetPixelsRef
// exposes.
func RenderFrame(tr *pathtrace.Tracer, cam pathtrace.Camera, opts Options) (*Frame, FrameStats) {
	f := New(opts)
	pool := NewWorkerPool(opts.NumWorkers)
	tiles := Tiles(opts.FrameW, opts.FrameH, opts.TileSize)

	render := func(_ int, t Tile) error {
		for y := t.Y; y < t.Y+t.H; y++ {
			for x := t.X; x < t.X+t.W; x++ {
				seq := sampling.NewSequence(x, y)
				for s := uint32(0); s < opts.SamplesPerPixel; s++ {
					fu, fv := seq.Sample2D(s, sampling.DimFilm)
					filmX := (2*(float32(x)+fu))/float32(opts.FrameW) - 1
					filmY := 1 - (2*(float32(y)+fv))/float32(opts.FrameH)
					radiance := tr.SamplePixel(cam, x, y, s, filmX, filmY)
					f.accum.Add(x, y, radiance)
				}
			}
		}
		return nil
	}

	stats := pool.Run(tiles, render)
	f.resolve()
	return f, stats
}

// resolve runs the NLM filter over the accumulator's running mean using its
// per-pixel running variance, then tonemaps into the RGBA8 output buffer.
func (f *Frame) resolve() {
	w, h := f.accum.Width(), f.accum.Height()
	mean := make([]vecmath.Vec3, int(w)*int(h))
	variance := make([]float32, int(w)*int(h))
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			i := int(y)*int(w) + int(x)
			mean[i] = f.accum.Mean(x, y)
			variance[i] = f.accum.Variance(x, y)
		}
	}

	filtered := RunNLM(mean, variance, w, h, f.opts.Filter)

	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			i := int(y)*int(w) + int(x)
			ldr := Tonemap(filtered[i], f.opts.Exposure, f.opts.Filter)
			o := i * 4
			f.ldr[o+0] = to8(ldr[0])
			f.ldr[o+1] = to8(ldr[1])
			f.ldr[o+2] = to8(ldr[2])
			f.ldr[o+3] = 255
		}
	}
}

func to8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// GetPixelsRef returns a reference to the resolved RGBA8 frame buffer: the
// slice aliases Frame's internal buffer and must not be retained past the
// next RenderFrame call.
func (f *Frame) GetPixelsRef() []uint8 { return f.ldr }

// Accumulator exposes the underlying progressive accumulator, e.g. for a
// caller that wants to inspect per-pixel sample counts or variance
// mid-render.
func (f *Frame) Accumulator() *Accumulator { return f.accum }
