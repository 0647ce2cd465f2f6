package cmd

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/prism-renderer/prism/internal/frame"
	"github.com/prism-renderer/prism/internal/goldentest"
	"github.com/prism-renderer/prism/internal/pathtrace"
	"github.com/prism-renderer/prism/internal/vecmath"
)

func findScenario(name string) (goldentest.Scenario, error) {
	for _, sc := range goldentest.Scenarios() {
		if sc.Name == name {
			return sc, nil
		}
	}
	return goldentest.Scenario{}, fmt.Errorf("no such scenario %q (see `prism scenarios`)", name)
}

// RenderFrame renders one accumulated frame of a built-in scenario and
// writes it out as a PNG. It selects one of this repo's built-in
// goldentest scenarios rather than loading a scene file from disk, since
// mesh/HDR file I/O is an external collaborator this repo's core does
// not own.
func RenderFrame(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing scenario name argument")
	}
	sc, err := findScenario(ctx.Args().First())
	if err != nil {
		return err
	}

	opts := frame.DefaultOptions()
	opts.FrameW = uint32(ctx.Int("width"))
	opts.FrameH = uint32(ctx.Int("height"))
	opts.SamplesPerPixel = uint32(ctx.Int("spp"))
	opts.Exposure = float32(ctx.Float64("exposure"))

	if blacklist := ctx.StringSlice("blacklist"); len(blacklist) > 0 {
		logger.Notice("device blacklist has no effect on the CPU backend; hardware device selection happens in `list-devices`/cgo_opencl builds")
	}

	scn, cam := sc.Build()
	tr := pathtrace.New(scn.Frame(), func(vecmath.Vec3) vecmath.Vec3 { return vecmath.Vec3{} }, sc.Config)

	logger.Noticef("rendering %q at %dx%d, %d spp", sc.Name, opts.FrameW, opts.FrameH, opts.SamplesPerPixel)
	start := time.Now()
	f, stats := frame.RenderFrame(tr, cam, opts)
	if stats.Err != nil {
		logger.Errorf("frame render failed: %v", stats.Err)
		return stats.Err
	}
	logger.Noticef("rendered frame in %s across %d tiles", time.Since(start), len(stats.Tiles))

	out, err := os.Create(ctx.String("out"))
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer out.Close()

	img := &image.RGBA{
		Pix:    f.GetPixelsRef(),
		Stride: int(opts.FrameW) * 4,
		Rect:   image.Rect(0, 0, int(opts.FrameW), int(opts.FrameH)),
	}
	if err := png.Encode(out, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	logger.Noticef("wrote frame to %s", ctx.String("out"))
	return nil
}
