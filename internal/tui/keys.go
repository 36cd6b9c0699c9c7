package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/mattjoyce/farmctl/internal/command"
)

type keyMap struct {
	Start   key.Binding
	Stop    key.Binding
	Refresh key.Binding
	Up      key.Binding
	Down    key.Binding
	Input   key.Binding
	Submit  key.Binding
	Cancel  key.Binding
	Copy    key.Binding
	Clear   key.Binding
	Help    key.Binding
	Quit    key.Binding

	// Verbs holds one binding per command.Verbs entry, in table order.
	Verbs []key.Binding
}

func newKeyMap() keyMap {
	km := keyMap{
		Start: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh bots"),
		),
		Up: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "prev bot"),
		),
		Down: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "next bot"),
		),
		Input: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "edit payload"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "done"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "leave input"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy result"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear log"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
	for _, v := range command.Verbs {
		km.Verbs = append(km.Verbs, key.NewBinding(
			key.WithKeys(v.Key),
			key.WithHelp(v.Key, v.Name),
		))
	}
	return km
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Stop, k.Refresh, k.Input, k.Copy, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	cols := [][]key.Binding{
		{k.Start, k.Stop, k.Refresh, k.Up, k.Down},
		{k.Input, k.Submit, k.Cancel, k.Copy, k.Clear, k.Help, k.Quit},
	}
	const perColumn = 8
	for i := 0; i < len(k.Verbs); i += perColumn {
		end := min(i+perColumn, len(k.Verbs))
		cols = append(cols, k.Verbs[i:end])
	}
	return cols
}
