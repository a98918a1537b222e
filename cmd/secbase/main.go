// Package main is the entry point for the secbase CLI.
//
// secbase generates cloud security baseline requirements, validates each
// one against real disposable test infrastructure, refines configurations
// that fail, and reclaims every resource it provisioned.
//
// Commands: run, generate, cleanup, version.
//
// For detailed usage information, run:
//
//	secbase --help
package main

import (
	"fmt"
	"os"

	"github.com/secbase/secbase/cmd/secbase/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
