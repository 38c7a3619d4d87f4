package tactile

import (
	"context"
	"fmt"
	"runtime"
	"strings"
)

// ShellRunner runs single command lines through the platform shell.
//
// The line is passed to the shell unmodified. Whatever the line does, it does
// with the privileges of the current user; callers are responsible for
// deciding whether a line should run at all.
type ShellRunner struct {
	executor Executor
	workDir  string
	goos     string
}

// ShellOption configures a ShellRunner.
type ShellOption func(*ShellRunner)

// WithWorkingDir runs every line in dir instead of the process cwd.
func WithWorkingDir(dir string) ShellOption {
	return func(r *ShellRunner) { r.workDir = dir }
}

// WithPlatform overrides the detected GOOS when building shell invocations.
func WithPlatform(goos string) ShellOption {
	return func(r *ShellRunner) { r.goos = goos }
}

// NewShellRunner wraps an executor. A nil executor gets a DirectExecutor
// with default config.
func NewShellRunner(executor Executor, opts ...ShellOption) *ShellRunner {
	if executor == nil {
		executor = NewDirectExecutor()
	}
	r := &ShellRunner{executor: executor, goos: runtime.GOOS}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Command builds the shell invocation for line.
func (r *ShellRunner) Command(line string) Command {
	cmd := Command{
		Binary:           "sh",
		Arguments:        []string{"-c", line},
		WorkingDirectory: r.workDir,
		Line:             line,
	}
	if r.goos == "windows" {
		cmd.Binary = "cmd"
		cmd.Arguments = []string{"/C", line}
	}
	return cmd
}

// Run executes line and waits for it to finish. A non-zero exit is not an
// error; the returned error means the shell itself could not be run.
func (r *ShellRunner) Run(ctx context.Context, line string) (*ExecutionResult, error) {
	if strings.TrimSpace(line) == "" {
		return nil, fmt.Errorf("empty command line")
	}
	result, err := r.executor.Execute(ctx, r.Command(line))
	if err != nil {
		return nil, err
	}
	if result.IsError() {
		return result, fmt.Errorf("run %q: %s", line, result.Error)
	}
	return result, nil
}
