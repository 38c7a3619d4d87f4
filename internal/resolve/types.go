// Package resolve drives one task from intent to a finished shell command:
// synthesize, confirm, execute, judge, and repair until the task succeeds,
// the user declines, or the attempt budget runs out.
package resolve

import (
	"context"
	"time"

	"github.com/google/uuid"

	"voxsh/internal/tactile"
)

// DefaultMaxAttempts caps attempts per task.
const DefaultMaxAttempts = 10

// Outcome is the result of an attempt or of a whole task.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeCompleted
	OutcomeFailed
	OutcomeUserRejected
	OutcomeUserAbandoned
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeUserRejected:
		return "user_rejected"
	case OutcomeUserAbandoned:
		return "user_abandoned"
	}
	return "pending"
}

// State is a resolver state.
type State int

const (
	StateInit State = iota
	StateSynthesizing
	StateAwaitingConfirmation
	StateExecuting
	StateJudging
	StateDone
	StateRetrying
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateSynthesizing:
		return "synthesizing"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateExecuting:
		return "executing"
	case StateJudging:
		return "judging"
	case StateDone:
		return "done"
	case StateRetrying:
		return "retrying"
	case StateAbandoned:
		return "abandoned"
	}
	return "unknown"
}

// Task is one user intent being resolved.
type Task struct {
	ID        uuid.UUID `json:"id"`
	Intent    string    `json:"intent"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTask creates a task for intent.
func NewTask(intent string, now time.Time) Task {
	return Task{ID: uuid.New(), Intent: intent, CreatedAt: now}
}

// Attempt is one execute-and-evaluate cycle.
type Attempt struct {
	Index    int    `json:"index"`
	Command  string `json:"command"`
	Edited   bool   `json:"edited"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`

	// Outcome is OutcomeCompleted or OutcomeFailed.
	Outcome Outcome `json:"outcome"`

	// JudgedComplete records the judge's verdict; UserSatisfied records an
	// override when the judge said no.
	JudgedComplete bool `json:"judged_complete"`
	UserSatisfied  bool `json:"user_satisfied"`

	// ErrorContext is what the next repair was told about this attempt.
	ErrorContext string `json:"error_context,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Output is stdout followed by stderr, as shown to the judge.
func (a Attempt) Output() string {
	if a.Stderr == "" {
		return a.Stdout
	}
	if a.Stdout == "" {
		return a.Stderr
	}
	return a.Stdout + "\n" + a.Stderr
}

// Faulted reports a non-zero exit or anything on stderr.
func (a Attempt) Faulted() bool {
	return a.ExitCode != 0 || a.Stderr != ""
}

// Result is the outcome of resolving one task.
type Result struct {
	Task     Task      `json:"task"`
	Attempts []Attempt `json:"attempts"`
	Outcome  Outcome   `json:"outcome"`

	// BudgetExhausted is set when the attempt cap was reached.
	BudgetExhausted bool `json:"budget_exhausted"`

	// RepairErr is set when a repair could not be produced.
	RepairErr error `json:"-"`

	Duration time.Duration `json:"duration"`
}

// Success reports whether the task completed.
func (r *Result) Success() bool {
	return r != nil && r.Outcome == OutcomeCompleted
}

// LastAttempt returns the most recent attempt, if any.
func (r *Result) LastAttempt() (Attempt, bool) {
	if r == nil || len(r.Attempts) == 0 {
		return Attempt{}, false
	}
	return r.Attempts[len(r.Attempts)-1], true
}

// Choice is an answer offered by the Prompter.
type Choice string

const (
	ChoiceAccept Choice = "accept"
	ChoiceReject Choice = "reject"
	ChoiceEdit   Choice = "edit"
	ChoiceYes    Choice = "yes"
	ChoiceNo     Choice = "no"
)

// ConfirmChoices are offered for every proposed command.
var ConfirmChoices = []Choice{ChoiceAccept, ChoiceReject, ChoiceEdit}

// SatisfiedChoices are offered when a command succeeded but the judge could
// not confirm completion.
var SatisfiedChoices = []Choice{ChoiceYes, ChoiceNo}

// Prompter asks the user synchronous questions.
type Prompter interface {
	// Choose returns one of options.
	Choose(ctx context.Context, prompt string, options []Choice) (Choice, error)

	// Input reads a free-text line, pre-filled with initial where supported.
	Input(ctx context.Context, prompt, initial string) (string, error)
}

// Synthesizer proposes and repairs commands.
type Synthesizer interface {
	Synthesize(ctx context.Context, intent string) (string, error)
	Repair(ctx context.Context, intent, failedCommand, errorText string) (string, error)
}

// Judge decides whether output satisfies an intent.
type Judge interface {
	IsComplete(ctx context.Context, intent, combinedOutput string) bool
}

// Executor runs one command line.
type Executor interface {
	Run(ctx context.Context, line string) (*tactile.ExecutionResult, error)
}

// Event is emitted on every state transition.
type Event struct {
	TaskID  uuid.UUID
	State   State
	Index   int
	Command string

	// Attempt is set for Judging, Done, Retrying and Abandoned once an
	// attempt exists.
	Attempt *Attempt

	// Err is set when a transition was caused by a failure.
	Err error
}

// Observer receives resolver events.
type Observer func(Event)

// Recorder receives attempt and task results, typically for metrics.
type Recorder interface {
	ObserveAttempt(a Attempt)
	ObserveResolution(r *Result)
}
