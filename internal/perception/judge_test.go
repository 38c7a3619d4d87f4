package perception

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJudge_IsComplete(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"completed", true},
		{"  completed\n", true},
		{"Completed", false},
		{"COMPLETED", false},
		{"completed\nThe files were listed.", false},
		{"incomplete", false},
		{"not completed", false},
		{"completed.", false},
		{"The task was completed", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			j := NewJudge(&scriptedOracle{replies: []string{tt.reply}})
			assert.Equal(t, tt.want, j.IsComplete(context.Background(), "list files", "a.txt\nb.txt"))
		})
	}
}

func TestJudge_OracleFailureIsIncomplete(t *testing.T) {
	j := NewJudge(&scriptedOracle{err: errors.New("network unreachable")})

	assert.False(t, j.IsComplete(context.Background(), "list files", "a.txt"))

	_, err := j.Verdict(context.Background(), "list files", "a.txt")
	var fault *OracleFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "judge", fault.Op)
}

func TestJudge_Prompt(t *testing.T) {
	oracle := &scriptedOracle{replies: []string{"completed"}}
	j := NewJudge(oracle)

	j.IsComplete(context.Background(), "list files in current directory", "a.txt\nb.txt")

	require.Len(t, oracle.prompts, 1)
	prompt := oracle.prompts[0]
	assert.Contains(t, prompt, "User request: list files in current directory")
	assert.Contains(t, prompt, "a.txt\nb.txt")
	assert.Contains(t, prompt, "'completed'")
	assert.Equal(t, []string{"judge"}, oracle.ops)

	assert.Contains(t, j.Prompt("x", "  "), "(no output)")
}

func TestJudge_PromptKeepsOutputTail(t *testing.T) {
	j := NewJudge(nil)
	output := strings.Repeat("a", maxJudgedOutput) + "TAIL"

	prompt := j.Prompt("build", output)

	assert.Contains(t, prompt, "..."+strings.Repeat("a", maxJudgedOutput-4)+"TAIL")
	assert.NotContains(t, prompt, strings.Repeat("a", maxJudgedOutput))
}
