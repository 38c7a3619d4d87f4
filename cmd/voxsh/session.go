package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voxsh/internal/logging"
	"voxsh/internal/perception"
	"voxsh/internal/resolve"
	"voxsh/internal/speech"
	"voxsh/internal/ux"
)

// errExit ends the interactive session.
var errExit = errors.New("exit requested")

func runInteractive(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	// The SIGTERM path ends the process; SIGINT is handled per cycle.
	ctx, stopTerm := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer stopTerm()

	a, err := newApp(ctx, cfg, true, appDeps{styled: true})
	if err != nil {
		return err
	}
	stopMetrics, err := a.serveMetrics(ctx)
	if err != nil {
		return err
	}
	defer stopMetrics()

	return a.session(ctx, func(parent context.Context) (context.Context, context.CancelFunc) {
		return signal.NotifyContext(parent, os.Interrupt)
	})
}

// cycleContext derives the context for one menu cycle. Interrupts cancel it.
type cycleContext func(parent context.Context) (context.Context, context.CancelFunc)

// session runs the top-level menu until the user exits or ctx ends.
func (a *app) session(ctx context.Context, newCycle cycleContext) error {
	fmt.Fprintln(a.out, a.styles.Title.Render("voxsh")+a.styles.Muted.Render(" - say what you want done. Say or type 'exit' to quit."))
	logging.Session("Session started")
	defer logging.Session("Session ended")

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		cycleCtx, cancel := newCycle(ctx)
		err := a.cycle(cycleCtx)
		interrupted := cycleCtx.Err() != nil && ctx.Err() == nil
		cancel()

		switch {
		case errors.Is(err, errExit) || errors.Is(err, ux.ErrExitRequested):
			fmt.Fprintln(a.out, "Goodbye.")
			return nil
		case errors.Is(err, io.EOF):
			return nil
		case interrupted || errors.Is(err, ux.ErrInterrupted):
			fmt.Fprintln(a.out, a.styles.Warning.Render("Interrupted."))
			logging.SessionWarn("Cycle interrupted")
		case err != nil:
			fmt.Fprintln(a.out, a.styles.Error.Render("Error:")+" "+err.Error())
			logging.SessionWarn("Cycle failed: %v", err)
		}
	}
}

// cycle asks for one intent and resolves it.
func (a *app) cycle(ctx context.Context) error {
	choices := ux.MenuChoices
	if a.listener == nil {
		choices = []resolve.Choice{ux.MenuType, ux.MenuQuit}
	}
	choice, err := a.prompter.Choose(ctx, "Speak or type your request?", choices)
	if err != nil {
		// An interrupt at the menu itself ends the session.
		if errors.Is(err, ux.ErrInterrupted) || ctx.Err() != nil {
			return errExit
		}
		return err
	}

	var intent string
	switch choice {
	case ux.MenuQuit:
		return errExit
	case ux.MenuSpeak:
		text, err := a.listen(ctx)
		if err != nil {
			var fault *speech.CaptureFault
			if errors.As(err, &fault) {
				logger.Warn("Listening aborted", zap.Error(err))
				return fmt.Errorf("listening failed: %w", err)
			}
			return err
		}
		if text == "" {
			fmt.Fprintln(a.out, a.styles.Muted.Render("Didn't catch that. Try again."))
			return nil
		}
		intent = text
		fmt.Fprintln(a.out, "You said: "+a.styles.Heard.Render(intent))
	default:
		intent, err = a.prompter.Input(ctx, "What should I do?", "")
		if err != nil {
			return err
		}
	}

	intent = ux.NormalizeIntent(intent)
	if intent == "" {
		return nil
	}
	if ux.IsExitKeyword(intent) {
		return errExit
	}
	_, err = a.resolveIntent(ctx, intent)
	return err
}

// resolveIntent runs the repair loop for intent and prints the summary.
func (a *app) resolveIntent(ctx context.Context, intent string) (*resolve.Result, error) {
	res, err := a.resolver.Resolve(ctx, intent)
	if err != nil && resolve.IsCanceled(err) {
		return res, err
	}
	if res != nil && len(res.Attempts) > 0 {
		fmt.Fprint(a.out, a.report.Render(res))
	}
	switch {
	case err != nil:
		var fault *perception.OracleFault
		if !errors.As(err, &fault) {
			return res, err
		}
		fmt.Fprintln(a.out, a.styles.Error.Render("Could not get a command:")+" "+err.Error())
		return res, nil
	case res.Success():
		fmt.Fprintln(a.out, a.styles.Success.Render("Done."))
	case res.Outcome == resolve.OutcomeUserRejected:
		fmt.Fprintln(a.out, a.styles.Muted.Render("Command rejected."))
	case res.BudgetExhausted:
		fmt.Fprintln(a.out, a.styles.Error.Render(fmt.Sprintf("Could not complete the task after %d attempts. Manual follow-up needed.", len(res.Attempts))))
	default:
		fmt.Fprintln(a.out, a.styles.Error.Render("Could not complete the task."))
	}
	return res, nil
}
