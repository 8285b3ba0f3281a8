package progress

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines keyboard shortcuts of the progress view.
type KeyMap struct {
	Quit key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q/ctrl+c", "abort"),
		),
	}
}
