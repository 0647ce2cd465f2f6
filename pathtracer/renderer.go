package pathtracer

import (
	"fmt"

	"github.com/prism-renderer/prism/internal/frame"
	"github.com/prism-renderer/prism/internal/pathtrace"
	"github.com/prism-renderer/prism/internal/rlog"
)

var log = rlog.New("pathtracer")

// Renderer owns the config and last-rendered frame buffer a host
// application drives via RenderScene/GetPixelsRef: a single accumulated
// CPU frame per call, rather than a repeated-block feedback loop.
type Renderer struct {
	opts    frame.Options
	config  pathtrace.Config
	last    *frame.Frame
	lastErr error
}

// Options bundles the frame options and path-tracer config a host chooses
// once at CreateRenderer time.
type Options struct {
	Frame  frame.Options
	Tracer pathtrace.Config
}

// DefaultOptions mirrors internal/frame.DefaultOptions/pathtrace.DefaultConfig.
func DefaultOptions() Options {
	return Options{Frame: frame.DefaultOptions(), Tracer: pathtrace.DefaultConfig()}
}

// CreateRenderer allocates a Renderer bound to the given options; no scene
// is required yet.
func CreateRenderer(opts Options) *Renderer {
	return &Renderer{opts: opts.Frame, config: opts.Tracer}
}

// RenderScene traces one accumulated frame of the given scene through its
// current camera. The scene must already have had Finalize called since
// its last edit.
func (r *Renderer) RenderScene(s *Scene) error {
	cam, ok := s.currentCameraValue()
	if !ok {
		return fmt.Errorf("pathtracer: no current camera set")
	}

	fr := s.inner.Frame()
	tr := pathtrace.New(fr, s.envRadiance, r.config)

	f, stats := frame.RenderFrame(tr, cam, r.opts)
	r.last = f
	r.lastErr = stats.Err
	if stats.Err != nil {
		log.Errorf("frame render failed: %v", stats.Err)
		return stats.Err
	}
	log.Infof("frame rendered in %s across %d tiles", stats.RenderTime, len(stats.Tiles))
	return nil
}

// GetPixelsRef returns a reference to the last rendered frame's LDR RGBA8
// pixel buffer, not a copy. Each RenderScene call renders into a new
// frame, so a slice returned earlier is not overwritten by later renders.
func (r *Renderer) GetPixelsRef() []uint8 {
	if r.last == nil {
		return nil
	}
	return r.last.GetPixelsRef()
}

// Resolution reports the configured frame dimensions.
func (r *Renderer) Resolution() (width, height uint32) {
	return r.opts.FrameW, r.opts.FrameH
}

// Close releases the renderer's resources. The CPU backend holds nothing
// that needs explicit release, but the method exists so a future hardware
// backend (internal/hwrt) can free device buffers behind the same
// interface without a call-site change.
func (r *Renderer) Close() error { return nil }
