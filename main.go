package main

import (
	"os"

	"github.com/urfave/cli"

	"github.com/prism-renderer/prism/cmd"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "prism"
	app.Usage = "render scenes using unbiased Monte-Carlo path tracing"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "list-devices",
			Usage:  "list available hardware ray-tracing devices",
			Action: cmd.ListDevices,
		},
		{
			Name:   "scenarios",
			Usage:  "list the built-in end-to-end test scenarios",
			Action: cmd.ListScenarios,
		},
		{
			Name:  "render",
			Usage: "render scene",
			Subcommands: []cli.Command{
				{
					Name:        "frame",
					Usage:       "render a single frame of a built-in scenario",
					Description: `Render a single accumulated frame and write it out as a PNG.`,
					ArgsUsage:   "scenario-name",
					Flags: []cli.Flag{
						cli.IntFlag{
							Name:  "width",
							Value: 512,
							Usage: "frame width",
						},
						cli.IntFlag{
							Name:  "height",
							Value: 512,
							Usage: "frame height",
						},
						cli.IntFlag{
							Name:  "spp",
							Value: 16,
							Usage: "samples per pixel",
						},
						cli.Float64Flag{
							Name:  "exposure",
							Value: 1.0,
							Usage: "camera exposure for tone-mapping",
						},
						cli.StringSliceFlag{
							Name:  "blacklist, b",
							Value: &cli.StringSlice{},
							Usage: "blacklist hardware devices whose names contain this value",
						},
						cli.StringFlag{
							Name:  "out, o",
							Value: "frame.png",
							Usage: "image filename for the rendered frame",
						},
					},
					Action: cmd.RenderFrame,
				},
			},
		},
		{
			Name:   "bench",
			Usage:  "render a built-in scenario and print per-tile timing statistics",
			Action: cmd.Bench,
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "width",
					Value: 256,
					Usage: "frame width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 256,
					Usage: "frame height",
				},
				cli.IntFlag{
					Name:  "spp",
					Value: 16,
					Usage: "samples per pixel",
				},
			},
			ArgsUsage: "scenario-name",
		},
	}

	app.Run(os.Args)
}
