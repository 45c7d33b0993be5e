package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up     key.Binding
	down   key.Binding
	search key.Binding
	submit key.Binding
	play   key.Binding
	toggle key.Binding
	focus  key.Binding
	back   key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		search: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "search")),
		play:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		toggle: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		focus:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch focus")),
		back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "results")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.search, k.play, k.toggle, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.play},
		{k.search, k.submit, k.back},
		{k.toggle, k.focus, k.quit},
	}
}
