// Package cmd implements the prism CLI's subcommand actions: one file per
// subcommand, a shared package-level logger, and a setupLogging helper
// reading the app's global -v/-vv flags.
package cmd

import (
	"github.com/urfave/cli"

	"github.com/prism-renderer/prism/internal/rlog"
)

var logger = rlog.New("prism")

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("vv") {
		rlog.SetLevel(rlog.Debug)
		return
	}
	if ctx.GlobalBool("v") {
		rlog.SetLevel(rlog.Info)
	}
}
