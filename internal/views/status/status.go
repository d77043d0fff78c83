package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/theme"
)

// Link describes how the client is following the queue.
type Link int

const (
	LinkConnecting Link = iota
	LinkLive
	LinkReconnecting
	LinkPolling
	LinkStopped
)

func (l Link) String() string {
	switch l {
	case LinkLive:
		return "Live"
	case LinkReconnecting:
		return "Reconnecting..."
	case LinkPolling:
		return "Polling"
	case LinkStopped:
		return "Disconnected"
	default:
		return "Connecting..."
	}
}

// Model holds the status bar state.
type Model struct {
	Link        Link
	QueueName   string
	QueueStatus string
	InLine      int
	InProgress  int
	User        string
	Width       int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// SetCounts updates the meeting counts.
func (m *Model) SetCounts(inLine, inProgress int) {
	m.InLine = inLine
	m.InProgress = inProgress
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var linkStr string
	switch m.Link {
	case LinkLive, LinkPolling:
		linkStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● " + m.Link.String())
	case LinkReconnecting:
		linkStr = lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("◌ " + m.Link.String())
	default:
		linkStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ " + m.Link.String())
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := linkStr
	if m.QueueName != "" {
		status := lipgloss.NewStyle().Foreground(theme.QueueStatusColor(m.QueueStatus)).Render(m.QueueStatus)
		content += sep + theme.StyleHeader.Render(m.QueueName) + " " + status
		content += sep + fmt.Sprintf("%d in line  %d in progress", m.InLine, m.InProgress)
	}
	if m.User != "" {
		content += sep + theme.StyleDimmed.Render(m.User)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
