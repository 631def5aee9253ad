package ui

import "github.com/rivo/tview"

// MenuHint describes a keyboard shortcut for display in the menu bar.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // 0-9 shortcuts, drawn in a different color
}

// Component is the lifecycle interface for all TUI views.
type Component interface {
	Name() string
	Init()
	Start()
	Stop()
	Hints() []MenuHint
	// FocusTarget returns the widget that takes input when the page is on top.
	FocusTarget() tview.Primitive
}

// Page is a component that can be stacked in Pages.
type Page interface {
	Component
	tview.Primitive
}
