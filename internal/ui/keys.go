package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit   key.Binding
	Up     key.Binding
	Down   key.Binding
	Expand key.Binding
	Search key.Binding
	Clear  key.Binding
	Source key.Binding
	Kind   key.Binding
	Age    key.Binding
	Close  key.Binding
	Debug  key.Binding
	Help   key.Binding
	Accept key.Binding
	Escape key.Binding
}

var keys = keyMap{
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Up:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("↓/j", "down")),
	Expand: key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "show more")),
	Search: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Clear:  key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "clear filters")),
	Source: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "source")),
	Kind:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "kind")),
	Age:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "age")),
	Close:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss")),
	Debug:  key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "debug")),
	Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Accept: key.NewBinding(key.WithKeys("enter")),
	Escape: key.NewBinding(key.WithKeys("esc")),
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Expand, k.Search, k.Clear, k.Debug, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Expand, k.Close},
		{k.Search, k.Source, k.Kind, k.Age, k.Clear},
		{k.Debug, k.Help, k.Quit},
	}
}
