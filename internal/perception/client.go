// Package perception turns free-text intent into shell commands and judges
// whether a command's output satisfied that intent. Both jobs are delegated
// to an opaque text-completion Oracle.
package perception

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Oracle is a synchronous text-completion service.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc func(ctx context.Context, prompt string) (Completion, error)

// Complete calls f.
func (f OracleFunc) Complete(ctx context.Context, prompt string) (Completion, error) {
	return f(ctx, prompt)
}

// Completion is the validated result of one oracle call.
type Completion struct {
	Raw string `json:"raw"`
}

// FirstLine returns the first non-blank line of the completion, trimmed.
func (c Completion) FirstLine() string {
	for _, line := range strings.Split(c.Raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// ErrEmptyCommand is returned when the oracle reply holds no command.
var ErrEmptyCommand = errors.New("oracle returned no command")

// OracleFault is a failed oracle call: network, auth, quota or a reply that
// could not be used.
type OracleFault struct {
	Op  string // synthesize, repair or judge
	Err error
}

func (e *OracleFault) Error() string {
	return fmt.Sprintf("oracle %s: %v", e.Op, e.Err)
}

func (e *OracleFault) Unwrap() error { return e.Err }

// ParseFault is an oracle reply that does not have the expected shape.
type ParseFault struct {
	Raw    string
	Reason string
}

func (e *ParseFault) Error() string {
	raw := e.Raw
	if len(raw) > 120 {
		raw = raw[:120] + "..."
	}
	return fmt.Sprintf("malformed oracle reply (%s): %q", e.Reason, raw)
}

type operationKey struct{}

// WithOperation tags ctx with the logical operation an oracle call serves,
// so wrappers can attribute latency and failures.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// OperationFrom returns the operation tag set by WithOperation, or "unknown".
func OperationFrom(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok && op != "" {
		return op
	}
	return "unknown"
}
