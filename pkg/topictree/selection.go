package topictree

import (
	"sort"

	"github.com/vanderheijden86/topictree/pkg/metrics"
	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/nodekey"
)

// Resolver answers selection and scene-visibility questions for one
// snapshot of tree, panel state and namespaces. Results are memoized for
// the resolver's lifetime; build a new one when any input changes.
type Resolver struct {
	tree       *Tree
	state      model.PanelState
	namespaces map[string][]string

	checked  map[string]struct{}
	modified map[string]struct{}
	// explicit holds checked namespaces per column topic, in checked order.
	explicit map[string][]string

	selected   map[string]bool
	selectedNs map[string]map[string]struct{}
}

// NewResolver builds a resolver. availableNamespacesByTopic is keyed by
// column topic name (feature topics carry the prefix).
func NewResolver(tree *Tree, state model.PanelState, availableNamespacesByTopic map[string][]string) *Resolver {
	r := &Resolver{
		tree:       tree,
		state:      state,
		namespaces: availableNamespacesByTopic,
		checked:    make(map[string]struct{}, len(state.CheckedKeys)),
		modified:   make(map[string]struct{}, len(state.ModifiedNamespaceTopics)),
		explicit:   make(map[string][]string),
		selected:   make(map[string]bool),
	}
	for _, key := range state.CheckedKeys {
		r.checked[key] = struct{}{}
		parsed, err := nodekey.Parse(key)
		if err != nil || parsed.Kind != nodekey.KindNamespace {
			continue
		}
		column := model.BaseColumn
		if parsed.Feature {
			column = model.FeatureColumn
		}
		topic := nodekey.ColumnTopic(parsed.TopicName, column)
		r.explicit[topic] = append(r.explicit[topic], parsed.Namespace)
	}
	for _, topic := range state.ModifiedNamespaceTopics {
		r.modified[topic] = struct{}{}
	}
	return r
}

// Tree returns the tree the resolver was built for.
func (r *Resolver) Tree() *Tree { return r.tree }

// State returns the panel state the resolver was built for.
func (r *Resolver) State() model.PanelState { return r.state }

// IsChecked reports whether key is literally present in the checked keys.
func (r *Resolver) IsChecked(key string) bool {
	_, ok := r.checked[key]
	return ok
}

// IsSelected reports whether the node's column key is checked and its parent
// is selected. Nodes without a parent are selected by their own key alone;
// unknown keys are never selected.
func (r *Resolver) IsSelected(key string, feature bool) bool {
	column := model.BaseColumn
	if feature {
		column = model.FeatureColumn
	}
	colKey := nodekey.ColumnKey(key, column)
	if v, ok := r.selected[colKey]; ok {
		return v
	}
	node, ok := r.tree.Node(key)
	result := ok && r.IsChecked(colKey)
	if result && node.ParentKey != "" {
		result = r.IsSelected(node.ParentKey, feature)
	}
	r.selected[colKey] = result
	return result
}

// IsSelectedInColumn is IsSelected addressed by column index.
func (r *Resolver) IsSelectedInColumn(key string, column int) bool {
	return r.IsSelected(key, column == model.FeatureColumn)
}

// IsNamespaceCheckedByDefault reports whether the topic's namespaces in the
// column still follow the all-selected default.
func (r *Resolver) IsNamespaceCheckedByDefault(topic string, column int) bool {
	base, _ := nodekey.BaseTopic(topic)
	_, touched := r.modified[nodekey.ColumnTopic(base, column)]
	return !touched
}

// AvailableNamespaces returns the namespaces the scene reports for a column
// topic name.
func (r *Resolver) AvailableNamespaces(columnTopic string) []string {
	return r.namespaces[columnTopic]
}

// SelectedNamespacesByTopic returns, per column topic name of each selected
// topic, every available namespace while the topic is in default mode and
// the explicitly checked namespaces otherwise.
func (r *Resolver) SelectedNamespacesByTopic() map[string][]string {
	defer metrics.Timer(metrics.SelectionSolve)()

	out := make(map[string][]string)
	for _, node := range r.tree.TopicNodes() {
		for _, column := range r.tree.Columns() {
			if !r.IsSelectedInColumn(node.Key, column) {
				continue
			}
			topic := nodekey.ColumnTopic(node.TopicName, column)
			if r.IsNamespaceCheckedByDefault(node.TopicName, column) {
				out[topic] = append([]string(nil), r.namespaces[topic]...)
			} else {
				out[topic] = append([]string(nil), r.explicit[topic]...)
			}
		}
	}
	return out
}

func (r *Resolver) selectedNamespaceSet(columnTopic string) map[string]struct{} {
	if r.selectedNs == nil {
		r.selectedNs = make(map[string]map[string]struct{})
		for topic, list := range r.SelectedNamespacesByTopic() {
			set := make(map[string]struct{}, len(list))
			for _, ns := range list {
				set[ns] = struct{}{}
			}
			r.selectedNs[topic] = set
		}
	}
	return r.selectedNs[columnTopic]
}

// IsTreeNodeVisibleInScene reports whether the node (or one of a topic's
// namespaces when namespace is set) is rendered in the column's scene.
func (r *Resolver) IsTreeNodeVisibleInScene(node *model.TreeNode, column int, namespace string) bool {
	if node == nil || !node.AvailableInColumn(column) || !r.IsSelectedInColumn(node.Key, column) {
		return false
	}
	if namespace == "" {
		return true
	}
	if !node.IsTopic() {
		return false
	}
	_, ok := r.selectedNamespaceSet(nodekey.ColumnTopic(node.TopicName, column))[namespace]
	return ok
}

// IsNamespaceChecked reports the checkbox state of one namespace. Default
// mode reads as checked.
func (r *Resolver) IsNamespaceChecked(topic, namespace string, column int) bool {
	if r.IsNamespaceCheckedByDefault(topic, column) {
		return true
	}
	base, _ := nodekey.BaseTopic(topic)
	return r.IsChecked(nodekey.NamespaceKey(base, namespace, column))
}

// NamespaceNodes derives the namespace rows of a topic node: the union of
// namespaces available in any column and namespaces explicitly checked,
// sorted by name.
func (r *Resolver) NamespaceNodes(topicNode *model.TreeNode) []model.NamespaceNode {
	if !topicNode.IsTopic() {
		return nil
	}
	columns := r.tree.Columns()

	available := make([]map[string]struct{}, len(columns))
	seen := make(map[string]struct{})
	var names []string
	add := func(ns string) {
		if _, ok := seen[ns]; !ok {
			seen[ns] = struct{}{}
			names = append(names, ns)
		}
	}
	for _, column := range columns {
		topic := nodekey.ColumnTopic(topicNode.TopicName, column)
		available[column] = make(map[string]struct{})
		for _, ns := range r.namespaces[topic] {
			available[column][ns] = struct{}{}
			add(ns)
		}
		for _, ns := range r.explicit[topic] {
			add(ns)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	out := make([]model.NamespaceNode, 0, len(names))
	for _, ns := range names {
		n := model.NamespaceNode{
			Key:                    nodekey.NamespaceKey(topicNode.TopicName, ns, model.BaseColumn),
			FeatureKey:             nodekey.NamespaceKey(topicNode.TopicName, ns, model.FeatureColumn),
			TopicName:              topicNode.TopicName,
			Namespace:              ns,
			AvailableByColumn:      make([]bool, len(columns)),
			CheckedByColumn:        make([]bool, len(columns)),
			VisibleInSceneByColumn: make([]bool, len(columns)),
			OverrideColorByColumn:  make([]string, len(columns)),
		}
		for _, column := range columns {
			_, n.AvailableByColumn[column] = available[column][ns]
			n.CheckedByColumn[column] = r.IsNamespaceChecked(topicNode.TopicName, ns, column)
			n.VisibleInSceneByColumn[column] = n.AvailableByColumn[column] &&
				r.IsTreeNodeVisibleInScene(topicNode, column, ns)
			if s, ok := r.state.SettingsByKey[nodekey.NamespaceKey(topicNode.TopicName, ns, column)]; ok {
				n.OverrideColorByColumn[column] = s.OverrideColor
			}
		}
		out = append(out, n)
	}
	return out
}

// SelectedTopicNames returns the column topic names visible in the scene,
// in tree order. This is the subscription list a scene builder needs.
func (r *Resolver) SelectedTopicNames() []string {
	var out []string
	for _, node := range r.tree.TopicNodes() {
		for _, column := range r.tree.Columns() {
			if r.IsTreeNodeVisibleInScene(node, column, "") {
				out = append(out, nodekey.ColumnTopic(node.TopicName, column))
			}
		}
	}
	return out
}

// HasCustomSettings reports whether any column of key has stored settings.
func (r *Resolver) HasCustomSettings(key string) bool {
	for _, column := range r.tree.Columns() {
		if s, ok := r.state.SettingsByKey[nodekey.ColumnKey(key, column)]; ok && !s.IsZero() {
			return true
		}
	}
	return false
}
