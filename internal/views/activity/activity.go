// Package activity keeps a per-feed history of what the client saw: the
// snapshots each feed delivered and how many changes they carried, REST
// actions, and connection errors with their close codes.
package activity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/api"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/live"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/theme"
)

const maxEntries = 200

// Sources the app reports under.
const (
	SourceQueue  = "queue"
	SourceUser   = "user"
	SourcePoll   = "poll"
	SourceAction = "action"
)

type Kind int

const (
	KindOpened Kind = iota
	KindStopped
	KindSnapshot
	KindAction
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindOpened:
		return "open"
	case KindStopped:
		return "stop"
	case KindSnapshot:
		return "snap"
	case KindAction:
		return "act"
	case KindError:
		return "err"
	default:
		return "?"
	}
}

// Entry is one line of history. Snapshots without changes from the same
// source fold into the previous line and bump Repeat.
type Entry struct {
	Time     time.Time
	Source   string
	Kind     Kind
	Message  string
	Changes  int
	Repeat   int
	Code     int // close code or HTTP status, 0 when unknown
	Terminal bool
}

// Tally counts what one source has delivered since the model started.
type Tally struct {
	Snapshots int
	Changes   int
	Errors    int
	LastCode  int
}

type Model struct {
	Entries []Entry
	Offset  int // scroll offset (from bottom)

	order   []string
	tallies map[string]*Tally
	now     func() time.Time
}

func New() Model {
	return Model{tallies: make(map[string]*Tally), now: time.Now}
}

func (m *Model) tally(source string) *Tally {
	if m.tallies == nil {
		m.tallies = make(map[string]*Tally)
	}
	t, ok := m.tallies[source]
	if !ok {
		t = &Tally{}
		m.tallies[source] = t
		m.order = append(m.order, source)
	}
	return t
}

// Tally returns the counts for source.
func (m Model) Tally(source string) Tally {
	if t, ok := m.tallies[source]; ok {
		return *t
	}
	return Tally{}
}

func (m *Model) add(e Entry) {
	if m.now == nil {
		m.now = time.Now
	}
	e.Time = m.now()
	m.Entries = append(m.Entries, e)
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// Opened records that a feed started following url.
func (m *Model) Opened(source, url string) {
	m.tally(source)
	m.add(Entry{Source: source, Kind: KindOpened, Message: url})
}

// Stopped records that a feed ended for good.
func (m *Model) Stopped(source string) {
	m.tally(source)
	m.add(Entry{Source: source, Kind: KindStopped, Message: "feed stopped"})
}

// Snapshot records one applied snapshot and the number of change events it
// produced. A nil snapshot after a deletion is reported with deleted set.
func (m *Model) Snapshot(source string, changes int, deleted bool) {
	t := m.tally(source)
	t.Snapshots++
	t.Changes += changes

	if deleted {
		m.add(Entry{Source: source, Kind: KindSnapshot, Message: "deleted"})
		return
	}
	if n := len(m.Entries); n > 0 && changes == 0 {
		last := &m.Entries[n-1]
		if last.Kind == KindSnapshot && last.Source == source && last.Changes == 0 && last.Message == "" {
			last.Repeat++
			last.Time = m.now()
			m.Offset = 0
			return
		}
	}
	m.add(Entry{Source: source, Kind: KindSnapshot, Changes: changes})
}

// Action records a REST call that succeeded.
func (m *Model) Action(what string) {
	m.tally(SourceAction)
	m.add(Entry{Source: SourceAction, Kind: KindAction, Message: what})
}

// Error records err against source, keeping the close code or HTTP status
// and whether the feed gave up.
func (m *Model) Error(source string, err error) {
	e := Entry{Source: source, Kind: KindError, Message: err.Error()}
	var ce *live.ConnectionError
	var se *api.StatusError
	switch {
	case errors.As(err, &ce):
		e.Code = ce.Code
		e.Terminal = ce.Terminal
	case errors.As(err, &se):
		e.Code = se.Status
	case api.IsNotFound(err):
		e.Code = 404
	case api.IsForbidden(err):
		e.Code = 403
	}

	t := m.tally(source)
	t.Errors++
	if e.Code != 0 {
		t.LastCode = e.Code
	}
	m.add(e)
}

func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Entries)-1, 0))
}

func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

func (e Entry) describe() string {
	switch e.Kind {
	case KindSnapshot:
		if e.Message != "" {
			return e.Message
		}
		text := "no changes"
		if e.Changes == 1 {
			text = "1 change"
		} else if e.Changes > 1 {
			text = fmt.Sprintf("%d changes", e.Changes)
		}
		if e.Repeat > 0 {
			text += fmt.Sprintf(" (x%d)", e.Repeat+1)
		}
		return text
	case KindError:
		glyph := "⚠"
		if e.Terminal {
			glyph = "✗"
		}
		if e.Code != 0 {
			return fmt.Sprintf("%s [%d] %s", glyph, e.Code, e.Message)
		}
		return glyph + " " + e.Message
	default:
		return e.Message
	}
}

func (m Model) summary() string {
	var parts []string
	for _, source := range m.order {
		t := m.tallies[source]
		s := fmt.Sprintf("%s %d/%d", source, t.Snapshots, t.Changes)
		if t.Errors > 0 {
			s += fmt.Sprintf(" err %d", t.Errors)
			if t.LastCode != 0 {
				s += fmt.Sprintf("@%d", t.LastCode)
			}
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "  ")
}

// View renders the history as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	visibleLines := max(height-8, 3)

	title := theme.StyleHeader.Render(" ACTIVITY ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries", len(m.Entries)))
	panel := lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  Nothing received yet.")
		return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	// snapshots/changes per source
	summary := theme.StyleInfo.Render(m.summary())

	end := max(len(m.Entries)-m.Offset, 0)
	start := max(end-visibleLines, 0)

	var lines []string
	for _, e := range m.Entries[start:end] {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		source := lipgloss.NewStyle().Foreground(sourceColor(e.Source)).Width(6).Render(e.Source)
		kind := lipgloss.NewStyle().Foreground(kindColor(e)).Width(4).Render(e.Kind.String())
		msg := e.describe()
		if limit := innerW - 30; limit > 3 && len(msg) > limit {
			msg = msg[:limit-3] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s %s", ts, source, kind, msg))
	}

	more := ""
	if m.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}
	return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, summary, "", strings.Join(lines, "\n"), more, help))
}

func sourceColor(source string) lipgloss.Color {
	switch source {
	case SourceQueue:
		return theme.ColorStarted
	case SourceUser:
		return theme.ColorAssigned
	case SourcePoll:
		return theme.ColorInfo
	default:
		return theme.ColorDimmed
	}
}

func kindColor(e Entry) lipgloss.Color {
	switch {
	case e.Kind == KindError && e.Terminal:
		return theme.ColorDanger
	case e.Kind == KindError:
		return theme.ColorWarning
	case e.Kind == KindSnapshot && e.Changes > 0:
		return theme.ColorInfo
	default:
		return theme.ColorDimmed
	}
}
