package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voxsh/internal/logging"
)

// ErrNotSatisfied is the repair context used when the user rejects a
// technically successful result.
const ErrNotSatisfied = "user not satisfied with the result"

// Options configures a Resolver.
type Options struct {
	// MaxAttempts caps attempts per task (default 10).
	MaxAttempts int

	// AutoAccept runs proposed commands without confirmation. The
	// satisfaction question is still asked.
	AutoAccept bool
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{MaxAttempts: DefaultMaxAttempts}
}

// Resolver runs the synthesize/confirm/execute/judge/repair loop.
// Oracle calls and executions are strictly sequential.
type Resolver struct {
	synth    Synthesizer
	judge    Judge
	exec     Executor
	prompter Prompter
	opts     Options

	observers []Observer
	recorder  Recorder
	now       func() time.Time
}

// Option configures optional Resolver collaborators.
type Option func(*Resolver)

// WithObserver registers an observer for state transitions.
func WithObserver(o Observer) Option {
	return func(r *Resolver) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// WithRecorder registers a recorder for attempts and results.
func WithRecorder(rec Recorder) Option {
	return func(r *Resolver) { r.recorder = rec }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// New creates a Resolver.
func New(synth Synthesizer, judge Judge, exec Executor, prompter Prompter, opts Options, extra ...Option) *Resolver {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	r := &Resolver{
		synth:    synth,
		judge:    judge,
		exec:     exec,
		prompter: prompter,
		opts:     opts,
		now:      time.Now,
	}
	for _, o := range extra {
		o(r)
	}
	return r
}

// Resolve works on intent until it completes, the user rejects a command,
// a repair cannot be produced, or MaxAttempts attempts have run.
//
// The returned error is non-nil only when the task could not be handled
// inside the loop: the first synthesis failed, the prompter failed, or ctx
// was canceled. The Result is always non-nil.
func (r *Resolver) Resolve(ctx context.Context, intent string) (*Result, error) {
	task := NewTask(strings.TrimSpace(intent), r.now())
	res := &Result{Task: task}
	defer func() {
		res.Duration = r.now().Sub(task.CreatedAt)
		if r.recorder != nil {
			r.recorder.ObserveResolution(res)
		}
		logging.Resolve("Task %s finished: outcome=%s attempts=%d budget_exhausted=%v",
			task.ID, res.Outcome, len(res.Attempts), res.BudgetExhausted)
	}()

	logging.Resolve("Task %s: resolving %q (max attempts %d)", task.ID, task.Intent, r.opts.MaxAttempts)
	r.emit(Event{TaskID: task.ID, State: StateInit})

	r.emit(Event{TaskID: task.ID, State: StateSynthesizing, Index: 1})
	command, err := r.synth.Synthesize(ctx, task.Intent)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		logging.ResolveWarn("Task %s: synthesis failed: %v", task.ID, err)
		res.Outcome = OutcomeUserAbandoned
		r.emit(Event{TaskID: task.ID, State: StateAbandoned, Index: 1, Err: err})
		return res, err
	}

	for index := 1; ; index++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		r.emit(Event{TaskID: task.ID, State: StateAwaitingConfirmation, Index: index, Command: command})
		line, edited, accepted, err := r.confirm(ctx, command)
		if err != nil {
			return res, err
		}
		if !accepted {
			logging.Resolve("Task %s: user rejected %q", task.ID, command)
			res.Outcome = OutcomeUserRejected
			r.emit(Event{TaskID: task.ID, State: StateDone, Index: index, Command: command})
			return res, nil
		}

		r.emit(Event{TaskID: task.ID, State: StateExecuting, Index: index, Command: line})
		attempt := r.execute(ctx, index, line, edited)
		if err := ctx.Err(); err != nil {
			return res, err
		}

		r.emit(Event{TaskID: task.ID, State: StateJudging, Index: index, Command: line, Attempt: &attempt})
		attempt.JudgedComplete = r.judge.IsComplete(ctx, task.Intent, attempt.Output())

		switch {
		case attempt.JudgedComplete:
			attempt.Outcome = OutcomeCompleted
		case attempt.Faulted():
			attempt.Outcome = OutcomeFailed
			attempt.ErrorContext = failureContext(attempt)
		default:
			satisfied, err := r.askSatisfied(ctx)
			if err != nil {
				r.record(res, attempt)
				return res, err
			}
			if satisfied {
				attempt.UserSatisfied = true
				attempt.Outcome = OutcomeCompleted
			} else {
				attempt.Outcome = OutcomeFailed
				attempt.ErrorContext = ErrNotSatisfied
			}
		}
		r.record(res, attempt)

		if attempt.Outcome == OutcomeCompleted {
			res.Outcome = OutcomeCompleted
			r.emit(Event{TaskID: task.ID, State: StateDone, Index: index, Command: line, Attempt: &attempt})
			return res, nil
		}

		if index >= r.opts.MaxAttempts {
			logging.ResolveWarn("Task %s: attempt budget of %d exhausted", task.ID, r.opts.MaxAttempts)
			res.Outcome = OutcomeUserAbandoned
			res.BudgetExhausted = true
			r.emit(Event{TaskID: task.ID, State: StateAbandoned, Index: index, Command: line, Attempt: &attempt})
			return res, nil
		}

		r.emit(Event{TaskID: task.ID, State: StateRetrying, Index: index, Command: line, Attempt: &attempt})
		r.emit(Event{TaskID: task.ID, State: StateSynthesizing, Index: index + 1})
		next, err := r.synth.Repair(ctx, task.Intent, attempt.Command, attempt.ErrorContext)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			logging.ResolveWarn("Task %s: no repair for attempt %d: %v", task.ID, index, err)
			res.Outcome = OutcomeUserAbandoned
			res.RepairErr = err
			r.emit(Event{TaskID: task.ID, State: StateAbandoned, Index: index, Command: line, Attempt: &attempt, Err: err})
			return res, nil
		}
		logging.ResolveDebug("Task %s: repair %d -> %q", task.ID, index+1, next)
		command = next
	}
}

// confirm asks the user about command. It returns the line to run, whether
// it was edited, and whether the user accepted at all.
func (r *Resolver) confirm(ctx context.Context, command string) (string, bool, bool, error) {
	if r.opts.AutoAccept {
		return command, false, true, nil
	}
	for {
		choice, err := r.prompter.Choose(ctx, fmt.Sprintf("Run this command? %s", command), ConfirmChoices)
		if err != nil {
			return "", false, false, fmt.Errorf("confirm command: %w", err)
		}
		switch choice {
		case ChoiceAccept:
			return command, false, true, nil
		case ChoiceReject:
			return "", false, false, nil
		case ChoiceEdit:
			line, err := r.prompter.Input(ctx, "Command to run", command)
			if err != nil {
				return "", false, false, fmt.Errorf("edit command: %w", err)
			}
			if line = strings.TrimSpace(line); line != "" {
				return line, line != command, true, nil
			}
			// Empty edit: ask again.
		default:
			return "", false, false, fmt.Errorf("confirm command: unexpected choice %q", choice)
		}
	}
}

func (r *Resolver) askSatisfied(ctx context.Context) (bool, error) {
	choice, err := r.prompter.Choose(ctx, "The command succeeded but completion could not be verified. Are you satisfied?", SatisfiedChoices)
	if err != nil {
		return false, fmt.Errorf("confirm satisfaction: %w", err)
	}
	return choice == ChoiceYes, nil
}

// execute runs line and converts the result into an attempt. An executor
// infrastructure failure becomes a failed attempt with exit code -1 and the
// error as stderr, so it feeds the repair path like any other fault.
func (r *Resolver) execute(ctx context.Context, index int, line string, edited bool) Attempt {
	attempt := Attempt{
		Index:     index,
		Command:   line,
		Edited:    edited,
		ExitCode:  -1,
		StartedAt: r.now(),
	}

	result, err := r.exec.Run(ctx, line)
	attempt.Duration = r.now().Sub(attempt.StartedAt)
	if result != nil {
		attempt.Stdout = result.Stdout
		attempt.Stderr = result.Stderr
		attempt.ExitCode = result.ExitCode
	}
	if err != nil {
		logging.ResolveWarn("Attempt %d: executor failed: %v", index, err)
		attempt.ExitCode = -1
		if attempt.Stderr == "" {
			attempt.Stderr = err.Error()
		} else {
			attempt.Stderr = strings.TrimRight(attempt.Stderr, "\n") + "\n" + err.Error()
		}
	}
	logging.Resolve("Attempt %d: %q exit=%d stdout=%d bytes stderr=%d bytes",
		index, line, attempt.ExitCode, len(attempt.Stdout), len(attempt.Stderr))
	return attempt
}

func (r *Resolver) record(res *Result, a Attempt) {
	res.Attempts = append(res.Attempts, a)
	if r.recorder != nil {
		r.recorder.ObserveAttempt(a)
	}
}

func (r *Resolver) emit(ev Event) {
	for _, o := range r.observers {
		o(ev)
	}
}

// failureContext is the error text handed to the repair oracle.
func failureContext(a Attempt) string {
	if stderr := strings.TrimSpace(a.Stderr); stderr != "" {
		return stderr
	}
	msg := fmt.Sprintf("exit status %d", a.ExitCode)
	if stdout := strings.TrimSpace(a.Stdout); stdout != "" {
		msg += "\n" + stdout
	}
	return msg
}

// IsCanceled reports whether err came from an interrupted context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
