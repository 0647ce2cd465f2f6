package cmd

import (
	"bytes"
	"fmt"

	"github.com/urfave/cli"

	"github.com/prism-renderer/prism/internal/hwrt"
)

// ListDevices prints the hardware ray-tracing devices this build can see,
// using internal/hwrt's build-tag-gated Available()/ListDevices() pair so
// the command reports "no hardware backend in this build" cleanly when
// compiled without cgo_opencl instead of failing to link.
func ListDevices(ctx *cli.Context) error {
	setupLogging(ctx)

	if !hwrt.Available() {
		logger.Notice("this build has no hardware ray-tracing backend (rebuild with -tags cgo_opencl)")
		return nil
	}

	devices, err := hwrt.ListDevices()
	if err != nil {
		logger.Errorf("listing devices: %v", err)
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("\nfound %d hardware device(s):\n\n", len(devices)))
	for i, d := range devices {
		buf.WriteString(fmt.Sprintf("  [Device %02d]\n    Name  %s\n    Type  %s\n\n", i, d.Name, d.Type))
	}
	logger.Notice(buf.String())
	return nil
}
