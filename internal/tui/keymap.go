package tui

import (
	"fmt"

	"charm.land/bubbles/v2/key"
)

// keyMap groups bindings by where they apply: everywhere, in lists, on a
// selected pipeline, or in the chat input.
type keyMap struct {
	Quit       key.Binding
	FocusNext  key.Binding
	FocusPrev  key.Binding
	Refresh    key.Binding
	ToggleHelp key.Binding
	// Views follows the order of allViews.
	Views []key.Binding

	Up       key.Binding
	Down     key.Binding
	Activate key.Binding

	Retry    key.Binding
	Rollback key.Binding
	Escalate key.Binding
	Logs     key.Binding

	Send   key.Binding
	Scroll key.Binding
}

func bind(help, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

func newKeyMap() keyMap {
	views := allViews()
	viewKeys := make([]key.Binding, 0, len(views))
	for index, view := range views {
		digit := fmt.Sprintf("%d", index+1)
		viewKeys = append(viewKeys, bind(digit, string(view), digit))
	}

	return keyMap{
		Quit:       bind("q", "quit", "q", "ctrl+c"),
		FocusNext:  bind("tab", "next pane", "tab"),
		FocusPrev:  bind("shift+tab", "prev pane", "shift+tab"),
		Refresh:    bind("ctrl+r", "refresh", "ctrl+r", "f5"),
		ToggleHelp: bind("?", "more keys", "?"),
		Views:      viewKeys,

		Up:       bind("↑/k", "up", "up", "k"),
		Down:     bind("↓/j", "down", "down", "j"),
		Activate: bind("enter", "open", "enter"),

		Retry:    bind("r", "retry", "r"),
		Rollback: bind("b", "rollback", "b"),
		Escalate: bind("e", "escalate", "e"),
		Logs:     bind("l", "logs", "l"),

		Send:   bind("enter", "send", "enter"),
		Scroll: bind("pgup/pgdn", "scroll transcript", "pgup", "pgdown"),
	}
}

// viewFor reports which view a digit key selects.
func (k keyMap) viewFor(msg fmt.Stringer) (viewID, bool) {
	views := allViews()
	for index, binding := range k.Views {
		for _, candidate := range binding.Keys() {
			if candidate == msg.String() && index < len(views) {
				return views[index], true
			}
		}
	}
	return "", false
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.FocusNext, k.Up, k.Down, k.Retry, k.Rollback, k.Escalate, k.Refresh, k.ToggleHelp, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.FocusNext, k.FocusPrev, k.Refresh, k.ToggleHelp, k.Quit},
		k.Views,
		{k.Up, k.Down, k.Activate, k.Retry, k.Rollback, k.Escalate, k.Logs},
		{k.Send, k.Scroll},
	}
}
