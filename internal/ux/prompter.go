package ux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"

	"voxsh/internal/resolve"
)

// ErrInterrupted is returned when the user presses ^C at a prompt.
var ErrInterrupted = errors.New("prompt interrupted")

// ErrExitRequested is returned when free-text input is an exit keyword.
var ErrExitRequested = errors.New("exit requested")

// Top-level menu choices.
const (
	MenuSpeak resolve.Choice = "speak"
	MenuType  resolve.Choice = "type"
	MenuQuit  resolve.Choice = "quit"
)

// MenuChoices is the listen-or-type menu.
var MenuChoices = []resolve.Choice{MenuSpeak, MenuType, MenuQuit}

// NewPrompter returns an interactive promptui prompter when in and out are
// both terminals, and a line-based prompter otherwise.
func NewPrompter(in *os.File, out *os.File) resolve.Prompter {
	if term.IsTerminal(int(in.Fd())) && term.IsTerminal(int(out.Fd())) {
		return NewTerminalPrompter(in, out)
	}
	return NewLinePrompter(in, out)
}

// TerminalPrompter asks questions with arrow-key menus.
type TerminalPrompter struct {
	in  io.ReadCloser
	out io.WriteCloser
}

// NewTerminalPrompter creates a promptui-backed prompter.
func NewTerminalPrompter(in io.ReadCloser, out io.WriteCloser) *TerminalPrompter {
	return &TerminalPrompter{in: in, out: out}
}

// Choose implements resolve.Prompter.
func (p *TerminalPrompter) Choose(ctx context.Context, prompt string, options []resolve.Choice) (resolve.Choice, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sel := promptui.Select{
		Label:  prompt,
		Items:  options,
		Stdin:  p.in,
		Stdout: p.out,
		Size:   len(options),
	}
	idx, _, err := sel.Run()
	if err != nil {
		return "", mapPromptErr(err)
	}
	return options[idx], nil
}

// Input implements resolve.Prompter.
func (p *TerminalPrompter) Input(ctx context.Context, prompt, initial string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	in := promptui.Prompt{
		Label:     prompt,
		Default:   initial,
		AllowEdit: initial != "",
		Stdin:     p.in,
		Stdout:    p.out,
	}
	line, err := in.Run()
	if err != nil {
		return "", mapPromptErr(err)
	}
	return line, nil
}

func mapPromptErr(err error) error {
	switch {
	case errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrAbort):
		return ErrInterrupted
	case errors.Is(err, promptui.ErrEOF):
		return io.EOF
	}
	return err
}

// LinePrompter asks questions over plain lines of text, for pipes and
// dumb terminals. Reads are cancelable through ctx.
type LinePrompter struct {
	out io.Writer

	start sync.Once
	in    io.Reader
	lines chan string
	err   error // set before lines is closed
}

// NewLinePrompter creates a line-based prompter.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: in, out: out, lines: make(chan string)}
}

func (p *LinePrompter) readLoop() {
	scanner := bufio.NewScanner(p.in)
	for scanner.Scan() {
		p.lines <- scanner.Text()
	}
	p.err = scanner.Err()
	if p.err == nil {
		p.err = io.EOF
	}
	close(p.lines)
}

func (p *LinePrompter) readLine(ctx context.Context) (string, error) {
	p.start.Do(func() { go p.readLoop() })
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-p.lines:
		if !ok {
			return "", p.err
		}
		return line, nil
	}
}

// Choose implements resolve.Prompter. Any unambiguous prefix of an option
// is accepted, case-insensitively.
func (p *LinePrompter) Choose(ctx context.Context, prompt string, options []resolve.Choice) (resolve.Choice, error) {
	names := make([]string, len(options))
	for i, o := range options {
		names[i] = string(o)
	}
	for {
		fmt.Fprintf(p.out, "%s [%s]: ", prompt, strings.Join(names, "/"))
		line, err := p.readLine(ctx)
		if err != nil {
			fmt.Fprintln(p.out)
			return "", err
		}
		if choice, ok := matchChoice(line, options); ok {
			return choice, nil
		}
		fmt.Fprintf(p.out, "Please answer one of: %s\n", strings.Join(names, ", "))
	}
}

// Input implements resolve.Prompter. An empty answer keeps initial.
func (p *LinePrompter) Input(ctx context.Context, prompt, initial string) (string, error) {
	if initial != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", prompt, initial)
	} else {
		fmt.Fprintf(p.out, "%s: ", prompt)
	}
	line, err := p.readLine(ctx)
	if err != nil {
		fmt.Fprintln(p.out)
		return "", err
	}
	if strings.TrimSpace(line) == "" {
		return initial, nil
	}
	return line, nil
}

// ExitAwarePrompter turns an exit keyword typed at any free-text prompt into
// ErrExitRequested, so it is never treated as an intent or a command.
type ExitAwarePrompter struct {
	resolve.Prompter
}

// NewExitAwarePrompter wraps p.
func NewExitAwarePrompter(p resolve.Prompter) *ExitAwarePrompter {
	return &ExitAwarePrompter{Prompter: p}
}

// Input implements resolve.Prompter.
func (p *ExitAwarePrompter) Input(ctx context.Context, prompt, initial string) (string, error) {
	line, err := p.Prompter.Input(ctx, prompt, initial)
	if err != nil {
		return "", err
	}
	if IsExitKeyword(line) {
		return "", ErrExitRequested
	}
	return line, nil
}

func matchChoice(answer string, options []resolve.Choice) (resolve.Choice, bool) {
	answer = Fold(strings.TrimSpace(answer))
	if answer == "" {
		return "", false
	}
	var match resolve.Choice
	matches := 0
	for _, o := range options {
		name := Fold(string(o))
		if name == answer {
			return o, true
		}
		if strings.HasPrefix(name, answer) {
			match = o
			matches++
		}
	}
	return match, matches == 1
}
