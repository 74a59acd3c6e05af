package topictree

import (
	"strings"

	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/nodekey"
)

// Editor computes new panel states for single user actions. Every method
// takes a state and returns a fresh one; the input is never modified.
// Unknown keys leave the state unchanged.
type Editor struct {
	tree       *Tree
	namespaces map[string][]string
}

// NamespaceToggle addresses one namespace checkbox.
type NamespaceToggle struct {
	Topic     string
	Namespace string
	Column    int
}

// NewEditor creates an editor. availableNamespacesByTopic is keyed by column
// topic name, as for NewResolver.
func NewEditor(tree *Tree, availableNamespacesByTopic map[string][]string) *Editor {
	return &Editor{tree: tree, namespaces: availableNamespacesByTopic}
}

// keyList is an order-preserving set over a checked or expanded key slice.
type keyList struct {
	keys []string
	set  map[string]struct{}
}

func newKeyList(keys []string) *keyList {
	l := &keyList{keys: make([]string, 0, len(keys)), set: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		l.add(k)
	}
	return l
}

func (l *keyList) has(key string) bool {
	_, ok := l.set[key]
	return ok
}

func (l *keyList) add(key string) bool {
	if l.has(key) {
		return false
	}
	l.set[key] = struct{}{}
	l.keys = append(l.keys, key)
	return true
}

func (l *keyList) remove(key string) bool {
	if !l.has(key) {
		return false
	}
	delete(l.set, key)
	for i, k := range l.keys {
		if k == key {
			l.keys = append(l.keys[:i], l.keys[i+1:]...)
			break
		}
	}
	return true
}

func (l *keyList) removePrefix(prefix string) bool {
	kept := l.keys[:0]
	removed := false
	for _, k := range l.keys {
		if strings.HasPrefix(k, prefix) {
			delete(l.set, k)
			removed = true
			continue
		}
		kept = append(kept, k)
	}
	l.keys = kept
	return removed
}

func (l *keyList) assign(key string, on bool) {
	if on {
		l.add(key)
	} else {
		l.remove(key)
	}
}

func (l *keyList) toggle(key string) {
	if !l.remove(key) {
		l.add(key)
	}
}

// ToggleNodeChecked flips the column key of one node.
func (e *Editor) ToggleNodeChecked(state model.PanelState, key string, column int) model.PanelState {
	next := state.Clone()
	checked := newKeyList(next.CheckedKeys)
	checked.toggle(nodekey.ColumnKey(key, column))
	next.CheckedKeys = checked.keys
	return next
}

// ToggleCheckAllDescendants applies the negation of the node's checked state
// to the node, every descendant and every descendant topic's namespaces.
// Topics whose namespace keys changed are recorded as modified.
func (e *Editor) ToggleCheckAllDescendants(state model.PanelState, key string, column int) model.PanelState {
	next := state.Clone()
	node, ok := e.tree.Node(key)
	if !ok {
		return next
	}
	checked := newKeyList(next.CheckedKeys)
	modified := newKeyList(next.ModifiedNamespaceTopics)
	on := !checked.has(node.ColumnKey(column))

	for _, n := range e.tree.Flatten(node) {
		checked.assign(n.ColumnKey(column), on)
		if !n.IsTopic() {
			continue
		}
		topic := nodekey.ColumnTopic(n.TopicName, column)
		touched := false
		if on {
			for _, ns := range e.namespaces[topic] {
				checked.add(nodekey.NamespaceKey(n.TopicName, ns, column))
				touched = true
			}
		} else {
			touched = checked.removePrefix(nodekey.NamespacePrefix(n.TopicName, column))
		}
		if touched {
			modified.add(topic)
		}
	}

	next.CheckedKeys = checked.keys
	next.ModifiedNamespaceTopics = modified.keys
	return next
}

// ToggleCheckAllAncestors applies the negation of the node's checked state
// to the node and every ancestor below root, top-level ancestor first.
//
// With namespaceParentTopic set, key is a namespace key of that topic. A
// namespace still in default mode first has all of its available siblings
// materialized as explicit keys; the new state then goes to the namespace,
// the topic node and its ancestors.
func (e *Editor) ToggleCheckAllAncestors(state model.PanelState, key string, column int, namespaceParentTopic string) model.PanelState {
	next := state.Clone()
	checked := newKeyList(next.CheckedKeys)

	var node *model.TreeNode
	var on bool
	if namespaceParentTopic == "" {
		n, ok := e.tree.Node(key)
		if !ok {
			return next
		}
		node = n
		on = !checked.has(node.ColumnKey(column))
	} else {
		parsed, err := nodekey.Parse(key)
		if err != nil || parsed.Kind != nodekey.KindNamespace {
			return next
		}
		n, ok := e.tree.TopicNode(namespaceParentTopic)
		if !ok {
			return next
		}
		node = n
		topic := nodekey.ColumnTopic(node.TopicName, column)
		nsKey := nodekey.NamespaceKey(node.TopicName, parsed.Namespace, column)
		modified := newKeyList(next.ModifiedNamespaceTopics)
		byDefault := !modified.has(topic)
		on = !(byDefault || checked.has(nsKey))
		if byDefault {
			for _, ns := range e.namespaces[topic] {
				checked.add(nodekey.NamespaceKey(node.TopicName, ns, column))
			}
			modified.add(topic)
			next.ModifiedNamespaceTopics = modified.keys
		}
		checked.assign(nsKey, on)
	}

	ancestors := e.tree.Ancestors(node)
	for i := len(ancestors) - 1; i >= 0; i-- {
		checked.assign(ancestors[i].ColumnKey(column), on)
	}
	checked.assign(node.ColumnKey(column), on)

	next.CheckedKeys = checked.keys
	return next
}

// ToggleNamespaceChecked flips one namespace. A topic in default mode first
// expands to every available namespace except the toggled one. The topic is
// always recorded as modified.
func (e *Editor) ToggleNamespaceChecked(state model.PanelState, t NamespaceToggle) model.PanelState {
	next := state.Clone()
	base, _ := nodekey.BaseTopic(t.Topic)
	topic := nodekey.ColumnTopic(base, t.Column)
	nsKey := nodekey.NamespaceKey(base, t.Namespace, t.Column)

	checked := newKeyList(next.CheckedKeys)
	modified := newKeyList(next.ModifiedNamespaceTopics)
	if !modified.has(topic) {
		for _, ns := range e.namespaces[topic] {
			if ns != t.Namespace {
				checked.add(nodekey.NamespaceKey(base, ns, t.Column))
			}
		}
		checked.remove(nsKey)
	} else {
		checked.toggle(nsKey)
	}
	modified.add(topic)

	next.CheckedKeys = checked.keys
	next.ModifiedNamespaceTopics = modified.keys
	return next
}

// ToggleExpanded opens or closes one node.
func (e *Editor) ToggleExpanded(state model.PanelState, key string) model.PanelState {
	next := state.Clone()
	expanded := newKeyList(next.ExpandedKeys)
	expanded.toggle(nodekey.BaseKey(key))
	next.ExpandedKeys = expanded.keys
	return next
}

// SetExpanded opens or closes one node explicitly.
func (e *Editor) SetExpanded(state model.PanelState, key string, open bool) model.PanelState {
	next := state.Clone()
	expanded := newKeyList(next.ExpandedKeys)
	expanded.assign(nodekey.BaseKey(key), open)
	next.ExpandedKeys = expanded.keys
	return next
}

// ExpandAll opens every group below root.
func (e *Editor) ExpandAll(state model.PanelState) model.PanelState {
	next := state.Clone()
	expanded := newKeyList(next.ExpandedKeys)
	for _, n := range e.tree.Flatten(e.tree.Root()) {
		if n.IsGroup() && n.Key != nodekey.RootKey {
			expanded.add(n.Key)
		}
	}
	next.ExpandedKeys = expanded.keys
	return next
}

// CollapseAll closes every node.
func (e *Editor) CollapseAll(state model.PanelState) model.PanelState {
	next := state.Clone()
	next.ExpandedKeys = []string{}
	return next
}

// ExpandToNode opens every ancestor of key so its row is rendered.
func (e *Editor) ExpandToNode(state model.PanelState, key string) model.PanelState {
	next := state.Clone()
	node, ok := e.tree.Node(key)
	if !ok {
		return next
	}
	expanded := newKeyList(next.ExpandedKeys)
	ancestors := e.tree.Ancestors(node)
	for i := len(ancestors) - 1; i >= 0; i-- {
		expanded.add(ancestors[i].Key)
	}
	next.ExpandedKeys = expanded.keys
	return next
}

// SetNodeSettings stores settings for a column key. Zero settings clear it.
func (e *Editor) SetNodeSettings(state model.PanelState, key string, settings model.TopicSettings) model.PanelState {
	if settings.IsZero() {
		return e.ClearNodeSettings(state, key)
	}
	next := state.Clone()
	if next.SettingsByKey == nil {
		next.SettingsByKey = make(map[string]model.TopicSettings)
	}
	next.SettingsByKey[key] = settings
	return next
}

// ClearNodeSettings removes stored settings for a column key.
func (e *Editor) ClearNodeSettings(state model.PanelState, key string) model.PanelState {
	next := state.Clone()
	delete(next.SettingsByKey, key)
	return next
}

// SetDisplayMode changes the topic display mode.
func (e *Editor) SetDisplayMode(state model.PanelState, mode model.DisplayMode) model.PanelState {
	next := state.Clone()
	next.TopicDisplayMode = mode
	return next
}

// DefaultState is the state of a panel that was never configured: only the
// uncategorized group is checked, so uncategorized topics follow their own
// checkbox.
func DefaultState(uncategorizedGroupName string) model.PanelState {
	if uncategorizedGroupName == "" {
		uncategorizedGroupName = DefaultUncategorizedGroupName
	}
	return model.PanelState{
		CheckedKeys:             []string{nodekey.MustGenerate(nodekey.Params{Name: uncategorizedGroupName})},
		ExpandedKeys:            []string{},
		ModifiedNamespaceTopics: []string{},
		TopicDisplayMode:        model.DisplayShowAll,
	}
}
