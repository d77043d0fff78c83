// Package alerts renders connection banners and the dismissable change
// notifications above the meeting list.
package alerts

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/changelog"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/theme"
)

// Banner is an error shown until the condition clears.
type Banner struct {
	Text     string
	Terminal bool
}

// Model holds what the alert area shows.
type Model struct {
	Banners []Banner
	Changes []changelog.Event
	Width   int
}

// Empty reports whether there is nothing to render.
func (m Model) Empty() bool {
	return len(m.Banners) == 0 && len(m.Changes) == 0
}

// View renders banners first, then changes newest first.
func (m Model) View() string {
	if m.Empty() {
		return ""
	}
	width := m.Width
	if width < 40 {
		width = 40
	}

	var lines []string
	for _, b := range m.Banners {
		if b.Terminal {
			lines = append(lines, theme.StyleDanger.Render("✗ "+b.Text))
		} else {
			lines = append(lines, theme.StyleWarning.Render("⚠ "+b.Text))
		}
	}
	for i := len(m.Changes) - 1; i >= 0; i-- {
		text := strings.ReplaceAll(m.Changes[i].Text, "\n", " ")
		lines = append(lines, theme.StyleInfo.Render("ℹ "+text))
	}
	if len(m.Changes) > 0 {
		lines = append(lines, theme.StyleDimmed.Render("  x:dismiss newest"))
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
