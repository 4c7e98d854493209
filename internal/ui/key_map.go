package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	sync   key.Binding
	rotate key.Binding
	skip   key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		sync:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sync now")),
		rotate: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rotate 90°")),
		skip:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next item")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.sync, k.skip, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.sync, k.rotate},
		{k.skip, k.quit},
	}
}
