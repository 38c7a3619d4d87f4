package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"voxsh/internal/resolve"
)

func TestDetectTheme(t *testing.T) {
	t.Setenv("VOXSH_DARK_MODE", "")

	t.Setenv("COLORFGBG", "15;0")
	if !DetectTheme().IsDark {
		t.Error("expected dark theme for background 0")
	}

	t.Setenv("COLORFGBG", "0;15")
	if DetectTheme().IsDark {
		t.Error("expected light theme for background 15")
	}

	t.Setenv("COLORFGBG", "")
	t.Setenv("VOXSH_DARK_MODE", "1")
	if !DetectTheme().IsDark {
		t.Error("expected dark theme from VOXSH_DARK_MODE")
	}
}

func TestStyles_Rule(t *testing.T) {
	s := NewStyles(LightTheme())
	assert.Contains(t, s.Rule("output"), "output")
	assert.NotEmpty(t, s.Rule(""))
}

func sampleResult() *resolve.Result {
	return &resolve.Result{
		Task: resolve.Task{Intent: "deploy app"},
		Attempts: []resolve.Attempt{
			{Index: 1, Command: "deploy.sh", ExitCode: 127, Stderr: "command not found", Outcome: resolve.OutcomeFailed},
			{Index: 2, Command: "./deploy.sh | tee log", ExitCode: 0, Outcome: resolve.OutcomeCompleted, Edited: true},
		},
		Outcome: resolve.OutcomeCompleted,
	}
}

func TestReportMarkdown(t *testing.T) {
	md := ReportMarkdown(sampleResult())

	assert.Contains(t, md, "### deploy app")
	assert.Contains(t, md, "| 1 | `deploy.sh` | 127 | failed |")
	assert.Contains(t, md, "| 2 | `./deploy.sh \\| tee log` (edited) | 0 | completed |")
	assert.Contains(t, md, "**Result:** completed")
	assert.NotContains(t, md, "gave up")
}

func TestReportMarkdown_BudgetExhausted(t *testing.T) {
	res := sampleResult()
	res.Outcome = resolve.OutcomeFailed
	res.BudgetExhausted = true

	md := ReportMarkdown(res)
	assert.Contains(t, md, "gave up after 2 attempts")
	assert.Equal(t, "", ReportMarkdown(nil))
}

func TestRenderer_Plain(t *testing.T) {
	r := NewRenderer(false, LightTheme())
	res := sampleResult()
	assert.Equal(t, ReportMarkdown(res), r.Render(res))
}

func TestRenderer_Styled(t *testing.T) {
	r := NewRenderer(true, DarkTheme())
	out := r.Render(sampleResult())
	assert.True(t, strings.Contains(out, "deploy"), "rendered report should keep the intent")
}
