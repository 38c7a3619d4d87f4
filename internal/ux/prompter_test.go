package ux

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"voxsh/internal/resolve"
)

func TestLinePrompter_Choose(t *testing.T) {
	defer goleak.VerifyNone(t)

	var out bytes.Buffer
	p := NewLinePrompter(strings.NewReader("maybe\nE\n"), &out)

	choice, err := p.Choose(context.Background(), "Run this command? ls", resolve.ConfirmChoices)
	require.NoError(t, err)
	assert.Equal(t, resolve.ChoiceEdit, choice)

	assert.Contains(t, out.String(), "Run this command? ls [accept/reject/edit]: ")
	assert.Contains(t, out.String(), "Please answer one of: accept, reject, edit")

	// Drain to EOF so the reader goroutine exits.
	_, err = p.Choose(context.Background(), "again", resolve.ConfirmChoices)
	assert.ErrorIs(t, err, io.EOF)
}

func TestLinePrompter_Input(t *testing.T) {
	defer goleak.VerifyNone(t)

	var out bytes.Buffer
	p := NewLinePrompter(strings.NewReader("\n./deploy.sh --prod\n"), &out)
	ctx := context.Background()

	line, err := p.Input(ctx, "Command to run", "./deploy.sh")
	require.NoError(t, err)
	assert.Equal(t, "./deploy.sh", line, "empty answer keeps the initial value")

	line, err = p.Input(ctx, "Command to run", "./deploy.sh")
	require.NoError(t, err)
	assert.Equal(t, "./deploy.sh --prod", line)

	_, err = p.Input(ctx, "Intent", "")
	assert.ErrorIs(t, err, io.EOF)
	assert.Contains(t, out.String(), "Intent: ")
}

func TestExitAwarePrompter_Input(t *testing.T) {
	defer goleak.VerifyNone(t)

	var out bytes.Buffer
	p := NewExitAwarePrompter(NewLinePrompter(strings.NewReader("ls -la\n  Bye!\n\nbye\n"), &out))
	ctx := context.Background()

	line, err := p.Input(ctx, "Command to run", "ls")
	require.NoError(t, err)
	assert.Equal(t, "ls -la", line)

	_, err = p.Input(ctx, "Command to run", "ls")
	assert.ErrorIs(t, err, ErrExitRequested)

	// A pre-filled exit keyword kept by an empty answer still exits.
	_, err = p.Input(ctx, "Command to run", "quit")
	assert.ErrorIs(t, err, ErrExitRequested)

	// Menu answers pass through untouched.
	choice, err := p.Choose(ctx, "Speak or type your request?", []resolve.Choice{"bye", MenuQuit})
	require.NoError(t, err)
	assert.Equal(t, resolve.Choice("bye"), choice)

	_, err = p.Input(ctx, "Intent", "")
	assert.ErrorIs(t, err, io.EOF)
}

func TestLinePrompter_Cancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	pr, pw := io.Pipe()
	p := NewLinePrompter(pr, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := p.Choose(ctx, "Satisfied?", resolve.SatisfiedChoices)
	assert.ErrorIs(t, err, context.Canceled)

	pw.Close()
	_, err = p.Choose(context.Background(), "Satisfied?", resolve.SatisfiedChoices)
	assert.ErrorIs(t, err, io.EOF)
}

func TestMatchChoice(t *testing.T) {
	tests := []struct {
		answer string
		want   resolve.Choice
		ok     bool
	}{
		{"accept", resolve.ChoiceAccept, true},
		{"ACCEPT", resolve.ChoiceAccept, true},
		{" a ", resolve.ChoiceAccept, true},
		{"r", resolve.ChoiceReject, true},
		{"ed", resolve.ChoiceEdit, true},
		{"", "", false},
		{"x", "", false},
		{"accepted", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			got, ok := matchChoice(tt.answer, resolve.ConfirmChoices)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}

	_, ok := matchChoice("s", []resolve.Choice{"speak", "stop"})
	assert.False(t, ok, "ambiguous prefix")
}

func TestMapPromptErr(t *testing.T) {
	assert.ErrorIs(t, mapPromptErr(promptui.ErrInterrupt), ErrInterrupted)
	assert.ErrorIs(t, mapPromptErr(promptui.ErrEOF), io.EOF)
	other := errors.New("tty gone")
	assert.ErrorIs(t, mapPromptErr(other), other)
}

func TestTerminalPrompter_CanceledContext(t *testing.T) {
	p := NewTerminalPrompter(io.NopCloser(strings.NewReader("")), nopWriteCloser{io.Discard})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Choose(ctx, "menu", MenuChoices)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = p.Input(ctx, "intent", "")
	assert.ErrorIs(t, err, context.Canceled)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
