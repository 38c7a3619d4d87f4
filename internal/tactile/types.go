// Package tactile is the motor layer of voxsh: it physically runs the shell
// commands the resolver settles on and reports what happened.
//
// Design Principles:
//   - Minimal logic: no safety checks happen here. The command line is an
//     explicit trust boundary and is handed to the shell verbatim.
//   - Structured output: stdout, stderr and exit code are captured separately
//     so the repair loop can reason about them.
//   - Cross-platform: sh -c on Unix, cmd /C on Windows.
package tactile

import (
	"time"
)

// Command represents a command to be executed.
type Command struct {
	// Binary is the executable to run (e.g., "sh", "git").
	Binary string `json:"binary"`

	// Arguments are the command-line arguments.
	Arguments []string `json:"arguments"`

	// WorkingDirectory is the directory to execute in.
	// If empty, uses the executor's default working directory.
	WorkingDirectory string `json:"working_directory,omitempty"`

	// Environment variables to set (in KEY=VALUE format).
	Environment []string `json:"environment,omitempty"`

	// Stdin provides input to the command's standard input.
	Stdin string `json:"stdin,omitempty"`

	// Limits specifies resource constraints for execution.
	Limits *ResourceLimits `json:"limits,omitempty"`

	// Line is the original shell line when the command wraps one.
	Line string `json:"line,omitempty"`
}

// CommandString returns the full command as a string (for display/logging).
func (c Command) CommandString() string {
	if c.Line != "" {
		return c.Line
	}
	result := c.Binary
	for _, arg := range c.Arguments {
		result += " " + arg
	}
	return result
}

// ResourceLimits defines constraints on command execution.
type ResourceLimits struct {
	// TimeoutMs is the maximum execution time in milliseconds.
	// Zero means no timeout.
	TimeoutMs int64 `json:"timeout_ms,omitempty"`

	// MaxOutputBytes limits captured stdout and stderr, each.
	// Zero means use the executor's default.
	MaxOutputBytes int64 `json:"max_output_bytes,omitempty"`
}

// ExecutionResult is the comprehensive output of command execution.
type ExecutionResult struct {
	// Success indicates whether the execution infrastructure worked.
	// A command that runs but returns non-zero exit code has Success=true.
	Success bool `json:"success"`

	// ExitCode is the command's exit code (-1 if not available).
	ExitCode int `json:"exit_code"`

	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`

	// Killed indicates the command was forcibly terminated.
	Killed     bool   `json:"killed"`
	KillReason string `json:"kill_reason,omitempty"`

	// Truncated indicates output was truncated due to size limits.
	Truncated      bool  `json:"truncated"`
	TruncatedBytes int64 `json:"truncated_bytes,omitempty"`

	// Error contains any infrastructure-level error message.
	Error string `json:"error,omitempty"`

	// Command is a copy of the command that was executed (for audit).
	Command *Command `json:"command,omitempty"`
}

// IsError returns true if the execution failed (infrastructure error).
func (r *ExecutionResult) IsError() bool {
	return !r.Success || r.Error != ""
}

// Failed reports whether the run counts as an execution fault:
// a non-zero exit, anything on stderr, or an infrastructure error.
func (r *ExecutionResult) Failed() bool {
	return r.IsError() || r.ExitCode != 0 || r.Stderr != ""
}

// Output returns stdout followed by stderr.
func (r *ExecutionResult) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventStart    AuditEventType = "start"
	AuditEventComplete AuditEventType = "complete"
	AuditEventKilled   AuditEventType = "killed"
	AuditEventError    AuditEventType = "error"
)

// AuditEvent represents an execution event.
type AuditEvent struct {
	Type         AuditEventType   `json:"type"`
	Timestamp    time.Time        `json:"timestamp"`
	Command      Command          `json:"command"`
	Result       *ExecutionResult `json:"result,omitempty"`
	ExecutorName string           `json:"executor_name"`
}

// ExecutorConfig is the configuration for creating executors.
type ExecutorConfig struct {
	// DefaultWorkingDir is used when Command.WorkingDirectory is empty.
	DefaultWorkingDir string `json:"default_working_dir"`

	// DefaultTimeout is used when no timeout is specified. Zero means none.
	DefaultTimeout time.Duration `json:"default_timeout"`

	// InheritEnvironment passes the full process environment to commands.
	// When false only AllowedEnvironment is passed through.
	InheritEnvironment bool `json:"inherit_environment"`

	// AllowedEnvironment lists environment variables to pass through.
	AllowedEnvironment []string `json:"allowed_environment"`

	// MaxOutputBytes caps output capture per stream (default 10MB).
	MaxOutputBytes int64 `json:"max_output_bytes"`
}

// DefaultExecutorConfig returns sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		DefaultWorkingDir:  "",
		DefaultTimeout:     0,
		InheritEnvironment: true,
		MaxOutputBytes:     10 * 1024 * 1024, // 10MB
		AllowedEnvironment: []string{"PATH", "HOME", "USER", "SHELL", "LANG", "LC_ALL", "TERM"},
	}
}

// Merge combines this config with command-specific settings.
// Command settings override config defaults.
func (c ExecutorConfig) Merge(cmd Command) Command {
	result := cmd

	if result.WorkingDirectory == "" {
		result.WorkingDirectory = c.DefaultWorkingDir
	}

	limits := ResourceLimits{}
	if result.Limits != nil {
		limits = *result.Limits
	}
	if limits.TimeoutMs == 0 && c.DefaultTimeout > 0 {
		limits.TimeoutMs = int64(c.DefaultTimeout / time.Millisecond)
	}
	if limits.MaxOutputBytes == 0 {
		limits.MaxOutputBytes = c.MaxOutputBytes
	}
	result.Limits = &limits

	return result
}
