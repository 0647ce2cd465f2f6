package cmd

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/prism-renderer/prism/internal/frame"
	"github.com/prism-renderer/prism/internal/goldentest"
	"github.com/prism-renderer/prism/internal/pathtrace"
	"github.com/prism-renderer/prism/internal/vecmath"
)

// ListScenarios prints the built-in end-to-end scenarios, in the same
// console-table style scene.Scene.Stats() and displayFrameStats use.
func ListScenarios(ctx *cli.Context) error {
	setupLogging(ctx)

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Name", "Samples", "Min PSNR (dB)", "Max fireflies"})
	for _, sc := range goldentest.Scenarios() {
		table.Append([]string{
			sc.Name,
			fmt.Sprintf("%d", sc.Samples),
			fmt.Sprintf("%.1f", sc.MinPSNRdB),
			fmt.Sprintf("%d", sc.MaxFireflies),
		})
	}
	table.Render()
	logger.Notice("built-in scenarios\n" + buf.String())
	return nil
}

// Bench renders a named built-in scenario and prints per-tile timing
// statistics: one row per CPU worker tile, with a footer carrying the
// total render time.
func Bench(ctx *cli.Context) error {
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

	scn, cam := sc.Build()
	tr := pathtrace.New(scn.Frame(), func(vecmath.Vec3) vecmath.Vec3 { return vecmath.Vec3{} }, sc.Config)

	_, stats := frame.RenderFrame(tr, cam, opts)
	if stats.Err != nil {
		logger.Errorf("frame render failed: %v", stats.Err)
		return stats.Err
	}

	displayFrameStats(sc.Name, stats)
	return nil
}

func displayFrameStats(name string, stats frame.FrameStats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Worker", "Tile", "% of frame", "Render time"})
	for _, stat := range stats.Tiles {
		table.Append([]string{
			fmt.Sprintf("%d", stat.WorkerID),
			fmt.Sprintf("(%d,%d) %dx%d", stat.Tile.X, stat.Tile.Y, stat.Tile.W, stat.Tile.H),
			fmt.Sprintf("%02.2f %%", stat.FramePercent),
			stat.RenderTime.String(),
		})
	}
	table.SetFooter([]string{"", "", "TOTAL", stats.RenderTime.String()})

	table.Render()
	logger.Noticef("%q frame statistics\n%s", name, buf.String())
}
