package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the TUI.
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Start       key.Binding
	Assign      key.Binding
	MeetingType key.Binding
	Agenda      key.Binding
	Remove      key.Binding
	Toggle      key.Binding
	AddHost     key.Binding
	RemoveHost  key.Binding
	Dismiss     key.Binding
	Refresh     key.Binding
	Activity    key.Binding
	Confirm     key.Binding
	Escape      key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "prev meeting"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next meeting"),
		),
		Start: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start meeting"),
		),
		Assign: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "take/release meeting"),
		),
		MeetingType: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "next meeting type"),
		),
		Agenda: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit agenda"),
		),
		Remove: key.NewBinding(
			key.WithKeys("delete"),
			key.WithHelp("del", "remove meeting"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open/close queue"),
		),
		AddHost: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "add host"),
		),
		RemoveHost: key.NewBinding(
			key.WithKeys("H"),
			key.WithHelp("H", "remove host"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "dismiss change"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Activity: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "activity log"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "submit"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close overlay"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
