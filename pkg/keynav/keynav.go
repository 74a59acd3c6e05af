// Package keynav applies keyboard operations to the rendered rows of a topic
// tree panel. Rows are addressed by their stable IDs, never by position, so
// a focus survives regenerations as long as its row still exists.
package keynav

import (
	"errors"
	"fmt"
	"slices"

	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/nodekey"
	"github.com/vanderheijden86/topictree/pkg/topictree"
)

var (
	// ErrFocusNotFound reports a focus whose row no longer exists.
	ErrFocusNotFound = errors.New("focused row not found")
	// ErrUnknownFocusType reports a focus type Dispatch does not handle.
	ErrUnknownFocusType = errors.New("unknown focus type")
	// ErrUnknownOperation reports an operation Dispatch does not handle.
	ErrUnknownOperation = errors.New("unknown operation")
)

// FocusType tells tree node focus from namespace focus.
type FocusType int

const (
	FocusTreeNode FocusType = iota
	FocusNamespace
)

func (t FocusType) String() string {
	switch t {
	case FocusTreeNode:
		return "tree-node"
	case FocusNamespace:
		return "namespace"
	default:
		return fmt.Sprintf("FocusType(%d)", int(t))
	}
}

// Focus is the keyboard cursor. Key is the row ID (a base key); Namespace
// is set for namespace rows; Column selects the checkbox column.
type Focus struct {
	Type      FocusType
	Key       string
	Namespace string
	Column    int
}

// ID returns the row ID the focus points at.
func (f Focus) ID() string {
	return nodekey.BaseKey(f.Key)
}

// Operation is one keyboard action.
type Operation int

const (
	MoveUp Operation = iota
	MoveDown
	First
	Last
	Expand
	Collapse
	ToggleExpanded
	ToggleChecked
	ToggleDescendants
	ToggleAncestors
	NextColumn
)

var operationNames = map[Operation]string{
	MoveUp:            "move-up",
	MoveDown:          "move-down",
	First:             "first",
	Last:              "last",
	Expand:            "expand",
	Collapse:          "collapse",
	ToggleExpanded:    "toggle-expanded",
	ToggleChecked:     "toggle-checked",
	ToggleDescendants: "toggle-descendants",
	ToggleAncestors:   "toggle-ancestors",
	NextColumn:        "next-column",
}

func (op Operation) String() string {
	if name, ok := operationNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Operation(%d)", int(op))
}

// ParseOperation resolves an operation by name.
func ParseOperation(name string) (Operation, error) {
	for op, n := range operationNames {
		if n == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
}

// Env carries what a mutating operation needs.
type Env struct {
	Editor  *topictree.Editor
	State   model.PanelState
	Columns int
}

// Result is the outcome of one operation. State is always set; Changed
// reports whether it differs from the input state.
type Result struct {
	Focus   Focus
	State   model.PanelState
	Changed bool
}

// Navigator indexes a row slice by row ID.
type Navigator struct {
	rows  []topictree.Row
	index map[string]int
}

// NewNavigator indexes rows.
func NewNavigator(rows []topictree.Row) *Navigator {
	n := &Navigator{rows: rows, index: make(map[string]int, len(rows))}
	for i, r := range rows {
		n.index[r.ID] = i
	}
	return n
}

// Len returns the number of rows.
func (n *Navigator) Len() int { return len(n.rows) }

// Row returns the row at i.
func (n *Navigator) Row(i int) topictree.Row { return n.rows[i] }

// Index returns the position of the focused row.
func (n *Navigator) Index(f Focus) (int, error) {
	switch f.Type {
	case FocusTreeNode, FocusNamespace:
	default:
		return -1, fmt.Errorf("%w: %v", ErrUnknownFocusType, f.Type)
	}
	i, ok := n.index[f.ID()]
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrFocusNotFound, f.ID())
	}
	if want := rowFocusType(n.rows[i]); want != f.Type {
		return -1, fmt.Errorf("%w: %s is a %v row", ErrFocusNotFound, f.ID(), want)
	}
	return i, nil
}

// FocusAt returns a focus on row i keeping column.
func (n *Navigator) FocusAt(i, column int) Focus {
	r := n.rows[i]
	f := Focus{Type: rowFocusType(r), Key: r.ID, Column: column}
	if r.Namespace != nil {
		f.Namespace = r.Namespace.Namespace
	}
	return f
}

// Refocus keeps f when its row still exists. Otherwise it returns the row
// nearest to the previous position lastIndex, or the zero focus when there
// are no rows.
func (n *Navigator) Refocus(f Focus, lastIndex int) Focus {
	if _, err := n.Index(f); err == nil {
		return f
	}
	if len(n.rows) == 0 {
		return Focus{Column: f.Column}
	}
	return n.FocusAt(max(0, min(lastIndex, len(n.rows)-1)), f.Column)
}

func rowFocusType(r topictree.Row) FocusType {
	if r.Kind == topictree.RowNamespace {
		return FocusNamespace
	}
	return FocusTreeNode
}

// Dispatch applies op at focus. Movement never changes the state; the other
// operations go through env.Editor.
func (n *Navigator) Dispatch(op Operation, f Focus, env Env) (Result, error) {
	res := Result{Focus: f, State: env.State}
	if _, known := operationNames[op]; !known {
		return res, fmt.Errorf("%w: %v", ErrUnknownOperation, op)
	}
	if len(n.rows) == 0 {
		return res, nil
	}
	i, err := n.Index(f)
	if err != nil {
		return res, err
	}
	row := n.rows[i]
	columns := max(env.Columns, 1)
	column := min(max(f.Column, 0), columns-1)
	res.Focus.Column = column

	switch op {
	case MoveUp:
		if i > 0 {
			res.Focus = n.FocusAt(i-1, column)
		}
	case MoveDown:
		if i < len(n.rows)-1 {
			res.Focus = n.FocusAt(i+1, column)
		}
	case First:
		res.Focus = n.FocusAt(0, column)
	case Last:
		res.Focus = n.FocusAt(len(n.rows)-1, column)
	case NextColumn:
		res.Focus.Column = (column + 1) % columns
	case Expand:
		if row.Kind != topictree.RowNode || !row.HasChildren {
			break
		}
		if !row.Expanded {
			return n.mutate(res, env, func(e *topictree.Editor) model.PanelState {
				return e.SetExpanded(env.State, row.ID, true)
			})
		}
		if i+1 < len(n.rows) && n.rows[i+1].ParentID == row.ID {
			res.Focus = n.FocusAt(i+1, column)
		}
	case Collapse:
		if row.Kind == topictree.RowNode && row.Expanded && slices.Contains(env.State.ExpandedKeys, row.ID) {
			return n.mutate(res, env, func(e *topictree.Editor) model.PanelState {
				return e.SetExpanded(env.State, row.ID, false)
			})
		}
		if p, ok := n.index[row.ParentID]; ok && row.ParentID != "" {
			res.Focus = n.FocusAt(p, column)
		}
	case ToggleExpanded:
		if row.Kind != topictree.RowNode || !row.HasChildren {
			break
		}
		return n.mutate(res, env, func(e *topictree.Editor) model.PanelState {
			return e.ToggleExpanded(env.State, row.ID)
		})
	case ToggleChecked:
		return n.mutate(res, env, func(e *topictree.Editor) model.PanelState {
			if row.Kind == topictree.RowNamespace {
				return e.ToggleNamespaceChecked(env.State, namespaceToggle(row, column))
			}
			return e.ToggleNodeChecked(env.State, row.ID, column)
		})
	case ToggleDescendants:
		return n.mutate(res, env, func(e *topictree.Editor) model.PanelState {
			if row.Kind == topictree.RowNamespace {
				return e.ToggleNamespaceChecked(env.State, namespaceToggle(row, column))
			}
			return e.ToggleCheckAllDescendants(env.State, row.ID, column)
		})
	case ToggleAncestors:
		return n.mutate(res, env, func(e *topictree.Editor) model.PanelState {
			if row.Kind == topictree.RowNamespace {
				return e.ToggleCheckAllAncestors(env.State, row.ID, column, row.Node.TopicName)
			}
			return e.ToggleCheckAllAncestors(env.State, row.ID, column, "")
		})
	}
	return res, nil
}

func (n *Navigator) mutate(res Result, env Env, apply func(*topictree.Editor) model.PanelState) (Result, error) {
	if env.Editor == nil {
		return res, errors.New("keynav: editor required for state changes")
	}
	res.State = apply(env.Editor)
	res.Changed = !statesEqual(env.State, res.State)
	return res, nil
}

func namespaceToggle(row topictree.Row, column int) topictree.NamespaceToggle {
	return topictree.NamespaceToggle{
		Topic:     row.Node.TopicName,
		Namespace: row.Namespace.Namespace,
		Column:    column,
	}
}

func statesEqual(a, b model.PanelState) bool {
	return slices.Equal(a.CheckedKeys, b.CheckedKeys) &&
		slices.Equal(a.ExpandedKeys, b.ExpandedKeys) &&
		slices.Equal(a.ModifiedNamespaceTopics, b.ModifiedNamespaceTopics) &&
		a.TopicDisplayMode == b.TopicDisplayMode
}
