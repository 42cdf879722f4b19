// Package main is the entry point for the tonk CLI.
// tonk packs, validates, and serves portable application bundles.
package main

import (
	"os"

	"github.com/tonk-labs/tonk/cmd"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date, builtBy)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
