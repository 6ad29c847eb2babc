package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all dashboard key bindings with built-in help text.
type KeyMap struct {
	Quit   key.Binding
	Help   key.Binding
	Escape key.Binding

	NextSection key.Binding
	Up          key.Binding
	Down        key.Binding
	Latest      key.Binding

	ToggleHost key.Binding
	AllHosts   key.Binding
	Window     key.Binding
	Apply      key.Binding
	Reload     key.Binding
	PrevDay    key.Binding
	NextDay    key.Binding
	Today      key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		NextSection: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next section"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Latest: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("G", "latest sample"),
		),
		ToggleHost: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "toggle host"),
		),
		AllHosts: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "all hosts"),
		),
		Window: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "time window"),
		),
		Apply: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "apply"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		PrevDay: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "previous day"),
		),
		NextDay: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next day"),
		),
		Today: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "today"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ToggleHost, k.AllHosts, k.Window, k.Reload, k.PrevDay, k.NextDay, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextSection, k.Up, k.Down, k.Latest},
		{k.ToggleHost, k.AllHosts, k.Window, k.Apply, k.Escape},
		{k.Reload, k.PrevDay, k.NextDay, k.Today},
		{k.Help, k.Quit},
	}
}
