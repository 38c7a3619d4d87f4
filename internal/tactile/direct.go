package tactile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"voxsh/internal/logging"
)

// DirectExecutor executes commands directly on the host using os/exec.
// There is no sandboxing.
type DirectExecutor struct {
	mu     sync.RWMutex
	config ExecutorConfig

	// auditCallback is called for execution events
	auditCallback func(AuditEvent)
}

// NewDirectExecutor creates a new direct executor with default config.
func NewDirectExecutor() *DirectExecutor {
	return NewDirectExecutorWithConfig(DefaultExecutorConfig())
}

// NewDirectExecutorWithConfig creates a new direct executor with custom config.
func NewDirectExecutorWithConfig(config ExecutorConfig) *DirectExecutor {
	logging.TactileDebug("Creating DirectExecutor: timeout=%s, maxOutput=%d bytes",
		config.DefaultTimeout, config.MaxOutputBytes)
	return &DirectExecutor{
		config: config,
	}
}

// SetAuditCallback sets the callback for audit events.
func (e *DirectExecutor) SetAuditCallback(callback func(AuditEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.auditCallback = callback
}

// emitAudit emits an audit event if a callback is registered.
func (e *DirectExecutor) emitAudit(eventType AuditEventType, cmd Command, result *ExecutionResult) {
	e.mu.RLock()
	callback := e.auditCallback
	e.mu.RUnlock()

	if callback != nil {
		callback(AuditEvent{
			Type:         eventType,
			Timestamp:    time.Now(),
			Command:      cmd,
			Result:       result,
			ExecutorName: "direct",
		})
	}
}

// Validate checks if a command can be executed.
func (e *DirectExecutor) Validate(cmd Command) error {
	if cmd.Binary == "" {
		return fmt.Errorf("binary is required")
	}
	return nil
}

// Execute runs a command directly on the host.
func (e *DirectExecutor) Execute(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	timer := logging.StartTimer(logging.CategoryTactile, "Direct command execution")
	defer timer.Stop()

	if err := e.Validate(cmd); err != nil {
		logging.TactileWarn("Command validation failed: %q - %v", cmd.CommandString(), err)
		return nil, err
	}

	cmd = e.config.Merge(cmd)
	logging.Tactile("Executing command: %s (dir=%s, timeout=%dms)",
		cmd.CommandString(), cmd.WorkingDirectory, cmd.Limits.TimeoutMs)

	result := &ExecutionResult{
		ExitCode: -1,
		Command:  &cmd,
	}

	e.emitAudit(AuditEventStart, cmd, nil)

	// No timeout unless one was configured.
	var timeout time.Duration
	if cmd.Limits.TimeoutMs > 0 {
		timeout = time.Duration(cmd.Limits.TimeoutMs) * time.Millisecond
	}
	var execCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		execCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	execCmd := exec.CommandContext(execCtx, cmd.Binary, cmd.Arguments...)
	execCmd.Dir = cmd.WorkingDirectory
	execCmd.Env = e.buildEnvironment(cmd.Environment)

	if cmd.Stdin != "" {
		logging.TactileDebug("Providing stdin input (%d bytes)", len(cmd.Stdin))
		execCmd.Stdin = strings.NewReader(cmd.Stdin)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	stdoutLimited := &limitedWriter{w: &stdoutBuf, max: cmd.Limits.MaxOutputBytes}
	stderrLimited := &limitedWriter{w: &stderrBuf, max: cmd.Limits.MaxOutputBytes}
	execCmd.Stdout = stdoutLimited
	execCmd.Stderr = stderrLimited

	result.StartedAt = time.Now()
	err := execCmd.Run()
	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)

	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()

	if stdoutLimited.truncated || stderrLimited.truncated {
		result.Truncated = true
		result.TruncatedBytes = stdoutLimited.discarded + stderrLimited.discarded
		logging.TactileWarn("Command output truncated: %d bytes discarded", result.TruncatedBytes)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.Success = true
		result.ExitCode = 0
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result.Success = true // Infrastructure worked, command was killed
		result.Killed = true
		result.KillReason = fmt.Sprintf("timeout after %s", timeout)
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		}
		logging.TactileWarn("Command killed (timeout): %s after %s", cmd.CommandString(), timeout)
		e.emitAudit(AuditEventKilled, cmd, result)
	case errors.Is(execCtx.Err(), context.Canceled):
		result.Success = true
		result.Killed = true
		result.KillReason = "context canceled"
		logging.TactileDebug("Command canceled: %s", cmd.CommandString())
		e.emitAudit(AuditEventKilled, cmd, result)
	case errors.As(err, &exitErr):
		result.Success = true // Command ran, just returned non-zero
		result.ExitCode = exitErr.ExitCode()
		logging.TactileDebug("Command exited non-zero: %s -> %d", cmd.CommandString(), result.ExitCode)
	default:
		result.Success = false
		result.Error = err.Error()
		logging.TactileError("Command failed: %s - %v", cmd.CommandString(), err)
		e.emitAudit(AuditEventError, cmd, result)
		return result, nil
	}

	e.emitAudit(AuditEventComplete, cmd, result)

	logging.Tactile("Command completed: exit=%d, duration=%s, stdout=%d bytes, stderr=%d bytes",
		result.ExitCode, result.Duration, len(result.Stdout), len(result.Stderr))

	return result, nil
}

// buildEnvironment creates the environment variable list.
func (e *DirectExecutor) buildEnvironment(cmdEnv []string) []string {
	var env []string
	if e.config.InheritEnvironment {
		env = os.Environ()
	} else {
		for _, key := range e.config.AllowedEnvironment {
			if val := os.Getenv(key); val != "" {
				env = append(env, key+"="+val)
			}
		}
	}
	return append(env, cmdEnv...)
}

// limitedWriter is an io.Writer that limits total bytes written.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if lw.max <= 0 {
		written, err := lw.w.Write(p)
		lw.written += int64(written)
		return written, err
	}

	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil // Pretend we wrote it
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err // Return original length to avoid "short write" errors
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
