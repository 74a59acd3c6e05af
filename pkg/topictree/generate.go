package topictree

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/nodekey"
)

var (
	// ErrInvalidConfigNode is returned for configuration nodes that are
	// neither a named group nor a topic leaf.
	ErrInvalidConfigNode = errors.New("invalid topic tree config node")

	// ErrUnknownNodeType is returned by switches over model.NodeType when a
	// value outside the known set shows up.
	ErrUnknownNodeType = errors.New("unknown tree node type")
)

// DefaultUncategorizedGroupName names the synthetic group holding topics
// missing from the configuration.
const DefaultUncategorizedGroupName = "(Uncategorized)"

// GenerateOptions carries the dynamic inputs of tree generation.
type GenerateOptions struct {
	// AvailableTopicNames holds topic names exactly as the sources report
	// them, feature topics included with their prefix.
	AvailableTopicNames map[string]struct{}
	// DatatypesByTopic is keyed by base topic name.
	DatatypesByTopic map[string]string
	HasFeatureColumn bool
	ParentKey        string
}

func (o GenerateOptions) columnCount() int {
	if o.HasFeatureColumn {
		return model.MaxColumns
	}
	return 1
}

// GenerateTreeNode converts a configuration subtree into annotated tree
// nodes. Group availability is the OR of its children, computed bottom-up.
func GenerateTreeNode(cfg *model.ConfigNode, opts GenerateOptions) (*model.TreeNode, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil node", ErrInvalidConfigNode)
	}
	providerAvailable := len(opts.AvailableTopicNames) > 0
	columns := opts.columnCount()

	if cfg.TopicName != "" {
		if len(cfg.Children) > 0 {
			return nil, fmt.Errorf("%w: topic %q has children", ErrInvalidConfigNode, cfg.TopicName)
		}
		node := &model.TreeNode{
			Type:              model.NodeTypeTopic,
			Key:               nodekey.TopicKey(cfg.TopicName, model.BaseColumn),
			FeatureKey:        nodekey.TopicKey(cfg.TopicName, model.FeatureColumn),
			Name:              cfg.Name,
			TopicName:         cfg.TopicName,
			Datatype:          opts.DatatypesByTopic[cfg.TopicName],
			Description:       cfg.Description,
			AvailableByColumn: make([]bool, columns),
			ProviderAvailable: providerAvailable,
			ParentKey:         opts.ParentKey,
		}
		for c := 0; c < columns; c++ {
			_, node.AvailableByColumn[c] = opts.AvailableTopicNames[nodekey.ColumnTopic(cfg.TopicName, c)]
		}
		return node, nil
	}

	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: node has neither name nor topicName", ErrInvalidConfigNode)
	}
	node := &model.TreeNode{
		Type:              model.NodeTypeGroup,
		Key:               nodekey.MustGenerate(nodekey.Params{Name: cfg.Name}),
		FeatureKey:        nodekey.MustGenerate(nodekey.Params{Name: cfg.Name, Feature: true}),
		Name:              cfg.Name,
		Description:       cfg.Description,
		AvailableByColumn: make([]bool, columns),
		ProviderAvailable: providerAvailable,
		ParentKey:         opts.ParentKey,
	}

	// Root's children get no parent so root never joins ancestor walks.
	childOpts := opts
	childOpts.ParentKey = node.Key
	if node.Key == nodekey.RootKey {
		childOpts.ParentKey = ""
	}

	node.Children = make([]*model.TreeNode, 0, len(cfg.Children))
	for _, childCfg := range cfg.Children {
		child, err := GenerateTreeNode(childCfg, childOpts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Name, err)
		}
		for c := 0; c < columns; c++ {
			node.AvailableByColumn[c] = node.AvailableByColumn[c] || child.AvailableByColumn[c]
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// WithUncategorized returns a copy of root with a synthetic last top-level
// group holding every provider topic the configuration does not mention.
// Feature-prefixed topics count under their base name. The group is omitted
// when there is nothing to put in it. When the configuration already has a
// group of that name, the topics are appended to it instead.
func WithUncategorized(root *model.ConfigNode, providerTopics []model.Topic, groupName string) *model.ConfigNode {
	out := root.Clone()
	if out == nil {
		out = &model.ConfigNode{Name: nodekey.RootName}
	}
	if groupName == "" {
		groupName = DefaultUncategorizedGroupName
	}

	configured := make(map[string]struct{})
	for _, name := range out.TopicNames() {
		configured[name] = struct{}{}
	}

	var missing []string
	for _, topic := range providerTopics {
		name, _ := nodekey.BaseTopic(topic.Name)
		if name == "" {
			continue
		}
		if _, ok := configured[name]; ok {
			continue
		}
		configured[name] = struct{}{}
		missing = append(missing, name)
	}
	if len(missing) == 0 {
		return out
	}
	sort.Strings(missing)

	group := findGroup(out, groupName)
	if group == nil {
		group = &model.ConfigNode{Name: groupName, Children: make([]*model.ConfigNode, 0, len(missing))}
		out.Children = append(out.Children, group)
	}
	for _, name := range missing {
		group.Children = append(group.Children, &model.ConfigNode{TopicName: name})
	}
	return out
}

// findGroup returns the first group named name below root, in preorder.
func findGroup(root *model.ConfigNode, name string) *model.ConfigNode {
	for _, child := range root.Children {
		if child.TopicName != "" {
			continue
		}
		if child.Name == name {
			return child
		}
		if g := findGroup(child, name); g != nil {
			return g
		}
	}
	return nil
}
