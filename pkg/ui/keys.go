package ui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/topictree/pkg/keynav"
)

// keyMap holds the panel bindings. It implements help.KeyMap.
type keyMap struct {
	Up                key.Binding
	Down              key.Binding
	First             key.Binding
	Last              key.Binding
	Expand            key.Binding
	Collapse          key.Binding
	ToggleExpanded    key.Binding
	ToggleChecked     key.Binding
	ToggleDescendants key.Binding
	ToggleAncestors   key.Binding
	NextColumn        key.Binding

	Filter      key.Binding
	Jump        key.Binding
	DisplayMode key.Binding
	ExpandAll   key.Binding
	CollapseAll key.Binding
	Settings    key.Binding
	ClearSet    key.Binding
	Copy        key.Binding
	Details     key.Binding
	Reload      key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:                key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("↑/k", "up")),
		Down:              key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("↓/j", "down")),
		First:             key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "first")),
		Last:              key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "last")),
		Expand:            key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("→/l", "expand")),
		Collapse:          key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("←/h", "collapse")),
		ToggleExpanded:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open/close")),
		ToggleChecked:     key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "check")),
		ToggleDescendants: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "check subtree")),
		ToggleAncestors:   key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "check path")),
		NextColumn:        key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "column")),

		Filter:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Jump:        key.NewBinding(key.WithKeys("f", "ctrl+f"), key.WithHelp("f", "jump")),
		DisplayMode: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "show all/available/selected")),
		ExpandAll:   key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "expand all")),
		CollapseAll: key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "collapse all")),
		Settings:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "override color")),
		ClearSet:    key.NewBinding(key.WithKeys("O"), key.WithHelp("O", "clear override")),
		Copy:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy topic")),
		Details:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "details")),
		Reload:      key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "reload")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ToggleChecked, k.NextColumn, k.Filter, k.Jump, k.DisplayMode, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.First, k.Last, k.Expand, k.Collapse},
		{k.ToggleExpanded, k.ToggleChecked, k.ToggleDescendants, k.ToggleAncestors, k.NextColumn},
		{k.Filter, k.Jump, k.DisplayMode, k.ExpandAll, k.CollapseAll},
		{k.Settings, k.ClearSet, k.Copy, k.Details, k.Reload, k.Help, k.Quit},
	}
}

// operation maps a key press to a keyboard navigation operation.
func (k keyMap) operation(msg tea.KeyMsg) (keynav.Operation, bool) {
	table := []struct {
		binding key.Binding
		op      keynav.Operation
	}{
		{k.Up, keynav.MoveUp},
		{k.Down, keynav.MoveDown},
		{k.First, keynav.First},
		{k.Last, keynav.Last},
		{k.Expand, keynav.Expand},
		{k.Collapse, keynav.Collapse},
		{k.ToggleExpanded, keynav.ToggleExpanded},
		{k.ToggleChecked, keynav.ToggleChecked},
		{k.ToggleDescendants, keynav.ToggleDescendants},
		{k.ToggleAncestors, keynav.ToggleAncestors},
		{k.NextColumn, keynav.NextColumn},
	}
	for _, entry := range table {
		if key.Matches(msg, entry.binding) {
			return entry.op, true
		}
	}
	return 0, false
}
