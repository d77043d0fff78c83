// Package theme provides the Lip Gloss color palette and reusable styles
// for the office-hours TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Queue status colors.
var (
	ColorOpen   = lipgloss.Color("#22c55e")
	ColorClosed = lipgloss.Color("#dc2626")
)

// Meeting status colors.
var (
	ColorUnassigned = lipgloss.Color("#9ca3af")
	ColorAssigned   = lipgloss.Color("#d97706")
	ColorStarted    = lipgloss.Color("#2563eb")
)

// Backend badge colors.
var (
	ColorZoom     = lipgloss.Color("#3b82f6")
	ColorInPerson = lipgloss.Color("#a855f7")
	ColorDefault  = lipgloss.Color("#9ca3af")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorInfo    = lipgloss.Color("#06b6d4")
)

// QueueStatusColor returns the color for an "open" or "closed" status.
func QueueStatusColor(status string) lipgloss.Color {
	switch status {
	case "open":
		return ColorOpen
	case "closed":
		return ColorClosed
	default:
		return ColorDefault
	}
}

// MeetingColor returns the color for a meeting status name.
func MeetingColor(status string) lipgloss.Color {
	switch status {
	case "unassigned":
		return ColorUnassigned
	case "assigned":
		return ColorAssigned
	case "started":
		return ColorStarted
	default:
		return ColorDefault
	}
}

// MeetingGlyph returns a Unicode glyph for a meeting status name.
func MeetingGlyph(status string) string {
	switch status {
	case "unassigned":
		return "○"
	case "assigned":
		return "◎"
	case "started":
		return "●>"
	default:
		return "·"
	}
}

// BackendBadge returns a colored badge string for a meeting backend type.
func BackendBadge(backend string) string {
	switch backend {
	case "zoom":
		return lipgloss.NewStyle().Foreground(ColorZoom).Render("[Z]")
	case "inperson":
		return lipgloss.NewStyle().Foreground(ColorInPerson).Render("[P]")
	default:
		return lipgloss.NewStyle().Foreground(ColorDefault).Render("[?]")
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleWarning = lipgloss.NewStyle().
			Foreground(ColorWarning)

	StyleDanger = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorDanger)

	StyleInfo = lipgloss.NewStyle().
			Foreground(ColorInfo)
)
