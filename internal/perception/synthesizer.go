package perception

import (
	"context"
	"fmt"
	"strings"

	"voxsh/internal/logging"
)

// UnsafeSentinel is the command the oracle is told to answer with when an
// intent is ambiguous or unsafe. It is a harmless no-op when run.
const UnsafeSentinel = "echo Unsafe or unclear command."

// IsUnsafeSentinel reports whether command is the unsafe/unclear sentinel.
func IsUnsafeSentinel(command string) bool {
	return strings.EqualFold(strings.TrimSpace(command), UnsafeSentinel)
}

const synthesizeTemplate = `You are a helpful %[1]s assistant. Given the following user request, reply with a single-line, safe %[1]s shell command that fulfills the intent. Do not explain, just output the command. If the request is unsafe or ambiguous, reply with '%[2]s'
User request: %[3]s
Command: `

const repairTemplate = `You are a helpful %[1]s assistant. A shell command was run to fulfill a user request, but it did not succeed. Reply with a single-line, safe %[1]s shell command that fixes the problem and fulfills the original intent. Do not explain, just output the command. If the request cannot be fulfilled safely, reply with '%[2]s'
User request: %[3]s
Failed command: %[4]s
Error: %[5]s
Command: `

// Synthesizer turns intents into single shell command lines.
type Synthesizer struct {
	oracle   Oracle
	platform string
}

// SynthesizerOption configures a Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithTargetPlatform names the platform in the instruction templates
// (default "Linux").
func WithTargetPlatform(name string) SynthesizerOption {
	return func(s *Synthesizer) {
		if name != "" {
			s.platform = name
		}
	}
}

// NewSynthesizer creates a synthesizer backed by oracle.
func NewSynthesizer(oracle Oracle, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{oracle: oracle, platform: "Linux"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SynthesizePrompt renders the synthesis instruction for intent.
func (s *Synthesizer) SynthesizePrompt(intent string) string {
	return fmt.Sprintf(synthesizeTemplate, s.platform, UnsafeSentinel, strings.TrimSpace(intent))
}

// RepairPrompt renders the repair instruction.
func (s *Synthesizer) RepairPrompt(intent, failedCommand, errorText string) string {
	return fmt.Sprintf(repairTemplate, s.platform, UnsafeSentinel,
		strings.TrimSpace(intent), strings.TrimSpace(failedCommand), strings.TrimSpace(errorText))
}

// Synthesize asks the oracle for a command fulfilling intent.
// Failures are returned as *OracleFault.
func (s *Synthesizer) Synthesize(ctx context.Context, intent string) (string, error) {
	return s.ask(WithOperation(ctx, "synthesize"), "synthesize", s.SynthesizePrompt(intent))
}

// Repair asks the oracle for a replacement for failedCommand given the error
// it produced. Failures are returned as *OracleFault; callers treat any error
// as "no repair available".
func (s *Synthesizer) Repair(ctx context.Context, intent, failedCommand, errorText string) (string, error) {
	return s.ask(WithOperation(ctx, "repair"), "repair", s.RepairPrompt(intent, failedCommand, errorText))
}

func (s *Synthesizer) ask(ctx context.Context, op, prompt string) (string, error) {
	completion, err := s.oracle.Complete(ctx, prompt)
	if err != nil {
		logging.PerceptionWarn("%s failed: %v", op, err)
		return "", &OracleFault{Op: op, Err: err}
	}

	command := firstCommandLine(completion.Raw)
	if command == "" {
		logging.PerceptionWarn("%s: empty reply %q", op, completion.Raw)
		return "", &OracleFault{Op: op, Err: ErrEmptyCommand}
	}
	if IsUnsafeSentinel(command) {
		logging.Perception("%s: oracle declined with the unsafe sentinel", op)
	} else {
		logging.Perception("%s: %s", op, command)
	}
	return command, nil
}

// firstCommandLine keeps only the first command line of a reply. Markdown
// fences and inline backticks are stripped.
func firstCommandLine(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		if len(line) >= 2 && strings.HasPrefix(line, "`") && strings.HasSuffix(line, "`") {
			line = strings.TrimSpace(strings.Trim(line, "`"))
		}
		if line != "" {
			return line
		}
	}
	return ""
}
