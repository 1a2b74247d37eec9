// Package main is the entry point for the chaoskit CLI.
//
// chaoskit runs automated chaos engineering cycles against a
// Kubernetes system: it deploys the target, derives a hypothesis,
// plans and executes a Chaos Mesh experiment, and iteratively
// reconfigures the manifests until the steady states hold.
//
// Commands: run, cleanup, version.
//
// For detailed usage information, run:
//
//	chaoskit --help
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaoskit/chaoskit/cmd/chaoskit/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := commands.Root().ExecuteContext(ctx)
	if err == nil {
		return
	}
	var exit *commands.ExitError
	if errors.As(err, &exit) {
		os.Exit(exit.Code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
