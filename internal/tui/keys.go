package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines key bindings used across the TUI.
type KeyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Quit     key.Binding
	Refresh  key.Binding

	Up   key.Binding
	Down key.Binding

	// Strategy analysis
	Analyze      key.Binding
	ForceAnalyze key.Binding

	// Optimizer
	ToggleView  key.Binding
	RunOptimize key.Binding
}

// DefaultKeyMap provides the default key bindings for the TUI.
var DefaultKeyMap = KeyMap{
	Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
	ShiftTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Refresh:  key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "refresh")),

	Up:   key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
	Down: key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),

	Analyze:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "analyze")),
	ForceAnalyze: key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "force analyze")),

	ToggleView:  key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "toggle view")),
	RunOptimize: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "run optimizer")),
}
