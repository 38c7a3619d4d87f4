package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"

	"voxsh/internal/resolve"
)

// ReportMarkdown summarizes a resolution as a markdown table.
func ReportMarkdown(res *resolve.Result) string {
	if res == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", escapeCell(res.Task.Intent))
	if len(res.Attempts) > 0 {
		b.WriteString("| # | Command | Exit | Outcome |\n")
		b.WriteString("|---|---------|------|---------|\n")
		for _, a := range res.Attempts {
			cmd := "`" + strings.ReplaceAll(a.Command, "`", "'") + "`"
			if a.Edited {
				cmd += " (edited)"
			}
			fmt.Fprintf(&b, "| %d | %s | %d | %s |\n", a.Index, escapeCell(cmd), a.ExitCode, a.Outcome)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "**Result:** %s", res.Outcome)
	if res.BudgetExhausted {
		fmt.Fprintf(&b, " (gave up after %d attempts)", len(res.Attempts))
	}
	b.WriteString("\n")
	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

// Renderer renders attempt reports for the terminal. Plain returns the
// markdown untouched, for pipes and tests.
type Renderer struct {
	term  *glamour.TermRenderer
	plain bool
}

// NewRenderer creates a renderer. When styled is false, or glamour cannot
// build a renderer, reports are printed as raw markdown.
func NewRenderer(styled bool, theme Theme) *Renderer {
	if !styled {
		return &Renderer{plain: true}
	}
	style := styles.LightStyle
	if theme.IsDark {
		style = styles.DarkStyle
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return &Renderer{plain: true}
	}
	return &Renderer{term: tr}
}

// Render renders the report for res.
func (r *Renderer) Render(res *resolve.Result) string {
	md := ReportMarkdown(res)
	if r.plain || md == "" {
		return md
	}
	out, err := r.term.Render(md)
	if err != nil {
		return md
	}
	return out
}
