package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/model"
)

type promptKind int

const (
	promptNone promptKind = iota
	promptAgenda
	promptAddHost
	promptRemoveHost
)

func (k promptKind) label() string {
	switch k {
	case promptAgenda:
		return "agenda"
	case promptAddHost:
		return "add host"
	case promptRemoveHost:
		return "remove host"
	default:
		return ""
	}
}

// prompt is the one-line input shown while editing an agenda or naming a
// host.
type prompt struct {
	kind    promptKind
	meeting model.Meeting
	input   textinput.Model
}

func newPrompt(kind promptKind, value string) prompt {
	ti := textinput.New()
	ti.CharLimit = 100
	switch kind {
	case promptAgenda:
		ti.Placeholder = "What would you like to discuss?"
	default:
		ti.Placeholder = "uniqname"
	}
	ti.SetValue(value)
	ti.Focus()
	return prompt{kind: kind, input: ti}
}

func (m Model) openPrompt(kind promptKind) (tea.Model, tea.Cmd) {
	if m.api == nil || m.queue == nil {
		return m, nil
	}
	switch kind {
	case promptAgenda:
		mt, ok := m.selectedMeeting()
		if !ok {
			return m, nil
		}
		m.prompt = newPrompt(kind, mt.Agenda)
		m.prompt.meeting = mt
	default:
		m.prompt = newPrompt(kind, "")
	}
	return m, textinput.Blink
}

// handlePromptKey feeds keys to the open prompt. Enter submits and esc
// cancels.
func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		p := m.prompt
		m.prompt = prompt{}
		return m, m.submitPrompt(p)
	case key.Matches(msg, m.keys.Escape):
		m.prompt = prompt{}
		return m, nil
	}

	var cmd tea.Cmd
	m.prompt.input, cmd = m.prompt.input.Update(msg)
	return m, cmd
}

func (m Model) submitPrompt(p prompt) tea.Cmd {
	value := strings.TrimSpace(p.input.Value())
	queueID := m.queue.ID

	switch p.kind {
	case promptAgenda:
		id := p.meeting.ID
		return m.action("changed the agenda for "+meetingName(p.meeting), func(ctx context.Context) error {
			_, err := m.api.ChangeAgenda(ctx, id, value)
			return err
		})

	case promptAddHost:
		if value == "" {
			return nil
		}
		return m.action("added host "+value, func(ctx context.Context) error {
			users, err := m.api.GetUsers(ctx)
			if err != nil {
				return err
			}
			u, ok := findUser(users, value)
			if !ok {
				return fmt.Errorf("There is no user with the uniqname %q.", value)
			}
			return m.api.AddHost(ctx, queueID, u.ID)
		})

	case promptRemoveHost:
		if value == "" {
			return nil
		}
		u, ok := findUser(m.queue.Hosts, value)
		if !ok {
			return func() tea.Msg {
				return actionMsg{what: "remove host", err: fmt.Errorf("%s is not a host of this queue.", value)}
			}
		}
		return m.action("removed host "+value, func(ctx context.Context) error {
			return m.api.RemoveHost(ctx, queueID, u.ID)
		})
	}
	return nil
}

func findUser(users []model.User, username string) (model.User, bool) {
	for _, u := range users {
		if strings.EqualFold(u.Username, username) {
			return u, true
		}
	}
	return model.User{}, false
}

func meetingName(mt model.Meeting) string {
	if a, ok := mt.PrimaryAttendee(); ok {
		return a.DisplayName()
	}
	return fmt.Sprintf("meeting %d", mt.ID)
}

func (p prompt) View() string {
	return fmt.Sprintf("  %s: %s", p.kind.label(), p.input.View())
}
