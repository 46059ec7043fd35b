//go:build unix

// Package main is the entry point for the orphan-spawner application
package main

import (
	"os"
	"runtime/debug"

	"orphan-spawner/cmd/orphan-spawner/commands"
	"orphan-spawner/internal/constants"
	"orphan-spawner/internal/stage"
)

func main() {
	// detach stages never return from here
	if stage.Active() {
		stage.Main()
	}

	// short-lived process; keep the heap small
	debug.SetGCPercent(50)

	if err := commands.Execute(); err != nil {
		os.Exit(constants.ExitFailure)
	}
}
