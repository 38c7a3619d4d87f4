package perception

import (
	"context"
	"fmt"
	"strings"

	"voxsh/internal/logging"
)

// CompletedToken is the only judge reply that counts as complete.
const CompletedToken = "completed"

// maxJudgedOutput bounds the command output quoted to the judge. The tail is
// kept since errors and summaries usually come last.
const maxJudgedOutput = 8 * 1024

const judgeTemplate = `You are verifying whether a shell command fulfilled a user's request.
User request: %s
Command output:
%s
If the output shows the request was fully accomplished, reply with exactly '%s'. Otherwise reply with exactly 'incomplete'. Reply with one word only.
Verdict: `

// Judge classifies whether a task is complete from its latest output.
type Judge struct {
	oracle Oracle
}

// NewJudge creates a judge backed by oracle.
func NewJudge(oracle Oracle) *Judge {
	return &Judge{oracle: oracle}
}

// Prompt renders the judging instruction.
func (j *Judge) Prompt(intent, combinedOutput string) string {
	output := combinedOutput
	if len(output) > maxJudgedOutput {
		output = "..." + output[len(output)-maxJudgedOutput:]
	}
	if strings.TrimSpace(output) == "" {
		output = "(no output)"
	}
	return fmt.Sprintf(judgeTemplate, strings.TrimSpace(intent), output, CompletedToken)
}

// Verdict asks the oracle and reports its classification. Errors are
// *OracleFault.
func (j *Judge) Verdict(ctx context.Context, intent, combinedOutput string) (bool, error) {
	completion, err := j.oracle.Complete(WithOperation(ctx, "judge"), j.Prompt(intent, combinedOutput))
	if err != nil {
		return false, &OracleFault{Op: "judge", Err: err}
	}
	return strings.TrimSpace(completion.Raw) == CompletedToken, nil
}

// IsComplete reports whether the task is complete. Anything other than the
// completed token, including an oracle failure, is false.
func (j *Judge) IsComplete(ctx context.Context, intent, combinedOutput string) bool {
	done, err := j.Verdict(ctx, intent, combinedOutput)
	if err != nil {
		logging.PerceptionWarn("judge unavailable, assuming incomplete: %v", err)
		return false
	}
	logging.PerceptionDebug("judge verdict for %q: complete=%v", intent, done)
	return done
}
