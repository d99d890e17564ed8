package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit    key.Binding
	Up      key.Binding
	Down    key.Binding
	Top     key.Binding
	Bottom  key.Binding
	NextTab key.Binding
	PrevTab key.Binding
	Open    key.Binding
	Back    key.Binding
	Reload  key.Binding
	Debug   key.Binding
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("j/k", "nav")),
	Down:    key.NewBinding(key.WithKeys("j", "down")),
	Top:     key.NewBinding(key.WithKeys("g", "home")),
	Bottom:  key.NewBinding(key.WithKeys("G", "end")),
	NextTab: key.NewBinding(key.WithKeys("tab", "l", "right"), key.WithHelp("tab", "tier")),
	PrevTab: key.NewBinding(key.WithKeys("shift+tab", "h", "left")),
	Open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("Enter", "open")),
	Back:    key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("Esc", "back")),
	Reload:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Debug:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "debug")),
}

// hint renders a binding as "key:desc" for the status bar.
func hint(b key.Binding) string {
	h := b.Help()
	return StatusBarKey.Render(h.Key) + StatusBarText.Render(":"+h.Desc)
}
