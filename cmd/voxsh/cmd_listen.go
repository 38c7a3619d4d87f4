package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"voxsh/cmd/voxsh/ui"
	"voxsh/internal/config"
	"voxsh/internal/metrics"
)

// listenCmd runs a single listening session
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Listen once and print the transcript",
	Long: `Runs one listening session against the configured transcriber and
prints what was recognized. Nothing is executed. Useful for checking the
microphone and transcriber setup, or with --audio-file for a recording.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	a := newListenApp(cfg, appDeps{})
	if a.cfg.Speech.TranscriberURL == "" {
		return fmt.Errorf("transcriber location not configured (set VOXSH_TRANSCRIBER_URL or speech.transcriber_url)")
	}
	return a.transcribeOnce(ctx)
}

// newListenApp builds an app with a listener and no resolver.
func newListenApp(c *config.Config, deps appDeps) *app {
	a := &app{cfg: c, out: deps.out, metrics: metrics.New(), styles: ui.DefaultStyles()}
	if a.out == nil {
		a.out = os.Stdout
	}
	a.listener = newListener(c, deps, a.signal)
	return a
}

// transcribeOnce listens once and prints the transcript.
func (a *app) transcribeOnce(ctx context.Context) error {
	text, err := a.listen(ctx)
	if err != nil {
		return err
	}
	if text == "" {
		fmt.Fprintln(a.out, a.styles.Muted.Render("No speech recognized before the timeout."))
		return nil
	}
	fmt.Fprintln(a.out, "You said: "+a.styles.Heard.Render(text))
	return nil
}
