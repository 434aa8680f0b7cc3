package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Balances  key.Binding
	Receive   key.Binding
	History   key.Binding
	Keys      key.Binding
	NextTab   key.Binding
	PrevTab   key.Binding
	Up        key.Binding
	Down      key.Binding
	Refresh   key.Binding
	Copy      key.Binding
	Send      key.Binding
	Preferred key.Binding
	Reveal    key.Binding
	Privacy   key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Balances:  key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "balances")),
		Receive:   key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "receive")),
		History:   key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "history")),
		Keys:      key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "keys")),
		NextTab:   key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("tab", "next tab")),
		PrevTab:   key.NewBinding(key.WithKeys("shift+tab", "left", "h"), key.WithHelp("shift+tab", "prev tab")),
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Copy:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy")),
		Send:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "send")),
		Preferred: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "preferred currency")),
		Reveal:    key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "reveal key")),
		Privacy:   key.NewBinding(key.WithKeys("p", "P"), key.WithHelp("p", "privacy")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextTab, k.Refresh, k.Send, k.Copy, k.Privacy, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Balances, k.Receive, k.History, k.Keys, k.NextTab, k.PrevTab},
		{k.Up, k.Down, k.Refresh, k.Copy, k.Send},
		{k.Preferred, k.Reveal, k.Privacy, k.Help, k.Quit},
	}
}
