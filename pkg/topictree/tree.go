// Package topictree turns an authored topic tree configuration, the live
// topic list and the persisted panel state into a render-ready tree: node
// generation, selection resolution, pure state mutations, filtering and row
// flattening.
package topictree

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/topictree/pkg/debug"
	"github.com/vanderheijden86/topictree/pkg/metrics"
	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/nodekey"
)

// Input is everything Build needs.
type Input struct {
	Config                 *model.ConfigNode
	ProviderTopics         []model.Topic
	UncategorizedGroupName string
}

// Tree is a generated tree plus a key index. It is immutable once built;
// regenerate it whenever the configuration or topic list changes.
type Tree struct {
	root             *model.TreeNode
	nodes            map[string]*model.TreeNode
	topics           []*model.TreeNode
	topicsByName     map[string]*model.TreeNode
	hasFeature       bool
	uncategorizedKey string
}

// Build generates the tree for in.
func Build(in Input) (*Tree, error) {
	defer metrics.Timer(metrics.TreeBuild)()

	groupName := in.UncategorizedGroupName
	if groupName == "" {
		groupName = DefaultUncategorizedGroupName
	}

	available := make(map[string]struct{}, len(in.ProviderTopics))
	datatypes := make(map[string]string, len(in.ProviderTopics))
	hasFeature := false
	for _, topic := range in.ProviderTopics {
		available[topic.Name] = struct{}{}
		base, feature := nodekey.BaseTopic(topic.Name)
		if feature {
			hasFeature = true
		}
		// Base source datatypes win over feature source ones.
		if _, seen := datatypes[base]; !seen || !feature {
			datatypes[base] = topic.Datatype
		}
	}

	cfg := WithUncategorized(in.Config, in.ProviderTopics, groupName)
	root, err := GenerateTreeNode(cfg, GenerateOptions{
		AvailableTopicNames: available,
		DatatypesByTopic:    datatypes,
		HasFeatureColumn:    hasFeature,
	})
	if err != nil {
		return nil, fmt.Errorf("generating topic tree: %w", err)
	}

	t := &Tree{
		root:         root,
		nodes:        make(map[string]*model.TreeNode),
		topicsByName: make(map[string]*model.TreeNode),
		hasFeature:   hasFeature,
	}
	if err := t.index(root); err != nil {
		return nil, err
	}
	if len(cfg.TopicNames()) > len(in.Config.TopicNames()) {
		t.uncategorizedKey = nodekey.MustGenerate(nodekey.Params{Name: groupName})
	}
	debug.Log("topictree: built %d nodes (%d topics, feature column %v)", len(t.nodes), len(t.topics), hasFeature)
	return t, nil
}

func (t *Tree) index(node *model.TreeNode) error {
	if _, dup := t.nodes[node.Key]; dup {
		return fmt.Errorf("%w: duplicate key %q", ErrInvalidConfigNode, node.Key)
	}
	t.nodes[node.Key] = node
	switch node.Type {
	case model.NodeTypeTopic:
		t.topics = append(t.topics, node)
		t.topicsByName[node.TopicName] = node
	case model.NodeTypeGroup:
		for _, child := range node.Children {
			if err := t.index(child); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownNodeType, node.Type)
	}
	return nil
}

// Root returns the root node.
func (t *Tree) Root() *model.TreeNode { return t.root }

// Node looks up a node by base or feature key.
func (t *Tree) Node(key string) (*model.TreeNode, bool) {
	n, ok := t.nodes[nodekey.BaseKey(key)]
	return n, ok
}

// TopicNode looks up a topic node by base or feature topic name.
func (t *Tree) TopicNode(topicName string) (*model.TreeNode, bool) {
	base, _ := nodekey.BaseTopic(topicName)
	n, ok := t.topicsByName[base]
	return n, ok
}

// Len returns the number of nodes, root included.
func (t *Tree) Len() int { return len(t.nodes) }

// TopicNodes returns every topic node in preorder.
func (t *Tree) TopicNodes() []*model.TreeNode { return t.topics }

// HasFeatureColumn reports whether any provider topic came from the feature
// source.
func (t *Tree) HasFeatureColumn() bool { return t.hasFeature }

// ColumnCount is 2 with a feature column, 1 otherwise.
func (t *Tree) ColumnCount() int {
	if t.hasFeature {
		return model.MaxColumns
	}
	return 1
}

// Columns lists the column indexes in use.
func (t *Tree) Columns() []int {
	cols := make([]int, t.ColumnCount())
	for i := range cols {
		cols[i] = i
	}
	return cols
}

// UncategorizedKey returns the key of the synthetic group, or "" when the
// tree has none.
func (t *Tree) UncategorizedKey() string { return t.uncategorizedKey }

// Flatten returns node and its descendants in preorder.
func (t *Tree) Flatten(node *model.TreeNode) []*model.TreeNode {
	var out []*model.TreeNode
	var walk func(n *model.TreeNode)
	walk = func(n *model.TreeNode) {
		out = append(out, n)
		for _, child := range n.Children {
			walk(child)
		}
	}
	if node != nil {
		walk(node)
	}
	return out
}

// Ancestors returns the ancestors of node, nearest first. Root is never
// included.
func (t *Tree) Ancestors(node *model.TreeNode) []*model.TreeNode {
	var out []*model.TreeNode
	for node != nil && node.ParentKey != "" {
		parent, ok := t.nodes[node.ParentKey]
		if !ok {
			break
		}
		out = append(out, parent)
		node = parent
	}
	return out
}

// Parent returns the parent of node, or nil for root and its direct children.
func (t *Tree) Parent(node *model.TreeNode) *model.TreeNode {
	if node == nil || node.ParentKey == "" {
		return nil
	}
	return t.nodes[node.ParentKey]
}

// Path returns display names from the top-level ancestor down to node.
func (t *Tree) Path(node *model.TreeNode) string {
	ancestors := t.Ancestors(node)
	parts := make([]string, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		parts = append(parts, ancestors[i].DisplayName())
	}
	parts = append(parts, node.DisplayName())
	return strings.Join(parts, " / ")
}
