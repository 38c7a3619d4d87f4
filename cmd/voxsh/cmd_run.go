package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"voxsh/internal/ux"
)

// errNotCompleted gives `voxsh run` a non-zero exit status.
var errNotCompleted = errors.New("task not completed")

// runCmd resolves a single typed intent
var runCmd = &cobra.Command{
	Use:   "run [intent...]",
	Short: "Resolve one typed request and exit",
	Long: `Synthesizes a shell command for the request, asks for confirmation,
runs it and repairs it on failure, exactly like one cycle of the
interactive session. Exits with status 1 when the task was not completed.

Example:
  voxsh run list the five largest files in this directory`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOnce,
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cfg, false, appDeps{styled: true})
	if err != nil {
		return err
	}
	stopMetrics, err := a.serveMetrics(ctx)
	if err != nil {
		return err
	}
	defer stopMetrics()

	return a.runIntent(ctx, joinArgs(args))
}

// runIntent resolves one intent and maps the outcome to an error.
func (a *app) runIntent(ctx context.Context, intent string) error {
	res, err := a.resolveIntent(ctx, intent)
	if errors.Is(err, ux.ErrExitRequested) {
		return nil
	}
	if err != nil {
		return err
	}
	if !res.Success() {
		return errNotCompleted
	}
	return nil
}
