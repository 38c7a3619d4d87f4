// Package ui provides the terminal styling for the voxsh interactive session.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	LightForeground = lipgloss.Color("#101F38")
	LightPrimary    = lipgloss.Color("#101F38")
	LightMuted      = lipgloss.Color("#6b7280")

	DarkForeground = lipgloss.Color("#f2f2f2")
	DarkPrimary    = lipgloss.Color("#8BC34A")
	DarkMuted      = lipgloss.Color("#9ca3af")

	// Semantic colors (same in both modes)
	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#8BC34A")
	Warning     = lipgloss.Color("#FFC107")
	Info        = lipgloss.Color("#2196F3")
)

// Theme holds the current color scheme
type Theme struct {
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Muted      lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{Foreground: LightForeground, Primary: LightPrimary, Muted: LightMuted}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{Foreground: DarkForeground, Primary: DarkPrimary, Muted: DarkMuted, IsDark: true}
}

// DetectTheme picks a theme from COLORFGBG or VOXSH_DARK_MODE, defaulting to light.
func DetectTheme() Theme {
	if colorTerm := os.Getenv("COLORFGBG"); colorTerm != "" {
		// "foreground;background"; 0-6 and 8 are dark backgrounds.
		parts := strings.Split(colorTerm, ";")
		if len(parts) == 2 {
			if bgIdx, err := strconv.Atoi(parts[1]); err == nil {
				if (bgIdx >= 0 && bgIdx <= 6) || bgIdx == 8 {
					return DarkTheme()
				}
			}
		}
	}
	if os.Getenv("VOXSH_DARK_MODE") == "1" {
		return DarkTheme()
	}
	return LightTheme()
}

// Styles holds the styled components used by the session.
type Styles struct {
	Theme Theme

	Title     lipgloss.Style
	Muted     lipgloss.Style
	Bold      lipgloss.Style
	Heard     lipgloss.Style
	Command   lipgloss.Style
	Divider   lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Info      lipgloss.Style
	Listening lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		Heard: lipgloss.NewStyle().
			Foreground(Info).
			Italic(true),

		Command: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			PaddingLeft(2),

		Divider: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Success: lipgloss.NewStyle().
			Foreground(Success).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(Warning),

		Info: lipgloss.NewStyle().
			Foreground(Info),

		Listening: lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true),
	}
}

// DefaultStyles returns styles with auto-detected theme
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// Rule returns a horizontal divider labelled with title.
func (s Styles) Rule(title string) string {
	line := strings.Repeat("─", 10)
	if title == "" {
		return s.Divider.Render(strings.Repeat("─", 24))
	}
	return s.Divider.Render(line + " " + title + " " + line)
}
