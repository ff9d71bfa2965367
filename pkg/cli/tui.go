package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color // AI speaker, titles
	Accent  lipgloss.Color // user speaker
	Dim     lipgloss.Color // status lines
	Error   lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Accent:  lipgloss.Color("#58a6ff"),
	Dim:     lipgloss.Color("#6e7681"),
	Error:   lipgloss.Color("#ff7b72"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	AI     lipgloss.Style
	User   lipgloss.Style
	Status lipgloss.Style
	Error  lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		AI:     lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		User:   lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		Status: lipgloss.NewStyle().Foreground(t.Dim),
		Error:  lipgloss.NewStyle().Bold(true).Foreground(t.Error),
	}
}

// Transcript renders one utterance as "label text".
func (s Styles) Transcript(speaker, text string) string {
	label := s.User
	name := "候选人"
	if speaker == "ai" {
		label = s.AI
		name = "面试官"
	}
	return label.Render(name+"›") + " " + text
}

// StatusLine renders a dimmed status line such as "[interrupted]".
func (s Styles) StatusLine(text string) string {
	return s.Status.Render("[" + text + "]")
}
