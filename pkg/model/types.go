package model

import (
	"fmt"
	"strings"
)

// Column indexes. Column 0 is the base data source; column 1 is the optional
// feature (secondary) source whose topics carry the feature prefix.
const (
	BaseColumn    = 0
	FeatureColumn = 1
	MaxColumns    = 2
)

// ConfigNode is one node of the authored topic tree configuration.
// A node is either a group (Name, optional Children) or a leaf (TopicName,
// optional Name used as display name, optional Description).
type ConfigNode struct {
	Name        string        `yaml:"name,omitempty" json:"name,omitempty"`
	TopicName   string        `yaml:"topicName,omitempty" json:"topicName,omitempty"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Children    []*ConfigNode `yaml:"children,omitempty" json:"children,omitempty"`
}

// IsLeaf reports whether the node references a topic.
func (c *ConfigNode) IsLeaf() bool {
	return c != nil && c.TopicName != ""
}

// Clone creates a deep copy of the configuration subtree.
func (c *ConfigNode) Clone() *ConfigNode {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Children != nil {
		clone.Children = make([]*ConfigNode, len(c.Children))
		for i, child := range c.Children {
			clone.Children[i] = child.Clone()
		}
	}
	return &clone
}

// TopicNames returns every topic name referenced by the subtree, in preorder.
func (c *ConfigNode) TopicNames() []string {
	var names []string
	var walk func(n *ConfigNode)
	walk = func(n *ConfigNode) {
		if n == nil {
			return
		}
		if n.TopicName != "" {
			names = append(names, n.TopicName)
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(c)
	return names
}

// Topic is a live data stream exposed by the data-source layer.
type Topic struct {
	Name     string `json:"name"`
	Datatype string `json:"datatype"`
}

// NodeType tags the two variants of a TreeNode.
type NodeType string

const (
	NodeTypeGroup NodeType = "group"
	NodeTypeTopic NodeType = "topic"
)

// IsValid returns true for the known node types.
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeGroup, NodeTypeTopic:
		return true
	}
	return false
}

// TreeNode is a derived, render-ready node. Group nodes carry Children;
// topic nodes carry TopicName and Datatype.
type TreeNode struct {
	Type              NodeType
	Key               string
	FeatureKey        string
	Name              string
	TopicName         string
	Datatype          string
	Description       string
	Children          []*TreeNode
	AvailableByColumn []bool
	ProviderAvailable bool
	ParentKey         string // empty for root and for root's direct children
}

// DisplayName returns the text shown for the node.
func (n *TreeNode) DisplayName() string {
	if n == nil {
		return ""
	}
	if n.Type == NodeTypeTopic && n.Name == "" {
		return n.TopicName
	}
	return n.Name
}

// IsGroup reports whether the node is a group node.
func (n *TreeNode) IsGroup() bool { return n != nil && n.Type == NodeTypeGroup }

// IsTopic reports whether the node is a topic node.
func (n *TreeNode) IsTopic() bool { return n != nil && n.Type == NodeTypeTopic }

// AvailableInColumn is a bounds-checked read of AvailableByColumn.
func (n *TreeNode) AvailableInColumn(column int) bool {
	if n == nil || column < 0 || column >= len(n.AvailableByColumn) {
		return false
	}
	return n.AvailableByColumn[column]
}

// AvailableInAnyColumn reports whether any column exposes the node.
func (n *TreeNode) AvailableInAnyColumn() bool {
	if n == nil {
		return false
	}
	for _, available := range n.AvailableByColumn {
		if available {
			return true
		}
	}
	return false
}

// ColumnKey returns Key for the base column and FeatureKey otherwise.
func (n *TreeNode) ColumnKey(column int) string {
	if column == FeatureColumn {
		return n.FeatureKey
	}
	return n.Key
}

// NamespaceNode is derived per topic during rendering and never persisted.
type NamespaceNode struct {
	Key                    string
	FeatureKey             string
	TopicName              string
	Namespace              string
	AvailableByColumn      []bool
	CheckedByColumn        []bool
	VisibleInSceneByColumn []bool
	OverrideColorByColumn  []string
}

// DisplayMode controls which nodes the topic tree shows.
type DisplayMode string

const (
	DisplayShowAll       DisplayMode = "SHOW_ALL"
	DisplayShowAvailable DisplayMode = "SHOW_AVAILABLE"
	DisplayShowSelected  DisplayMode = "SHOW_SELECTED"
)

// IsValid returns true for the known display modes.
func (m DisplayMode) IsValid() bool {
	switch m {
	case DisplayShowAll, DisplayShowAvailable, DisplayShowSelected:
		return true
	}
	return false
}

// Next cycles SHOW_ALL -> SHOW_AVAILABLE -> SHOW_SELECTED -> SHOW_ALL.
func (m DisplayMode) Next() DisplayMode {
	switch m {
	case DisplayShowAll:
		return DisplayShowAvailable
	case DisplayShowAvailable:
		return DisplayShowSelected
	default:
		return DisplayShowAll
	}
}

// Label is a short human-readable name.
func (m DisplayMode) Label() string {
	switch m {
	case DisplayShowAvailable:
		return "available"
	case DisplayShowSelected:
		return "selected"
	default:
		return "all"
	}
}

// ParseDisplayMode accepts the enum value or its label, case-insensitively.
// An empty string yields SHOW_ALL.
func ParseDisplayMode(s string) (DisplayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "show_all":
		return DisplayShowAll, nil
	case "available", "show_available":
		return DisplayShowAvailable, nil
	case "selected", "show_selected":
		return DisplayShowSelected, nil
	}
	return "", fmt.Errorf("invalid display mode: %q", s)
}

// TopicSettings holds per-key visual overrides.
type TopicSettings struct {
	OverrideColor string            `json:"overrideColor,omitempty"`
	Options       map[string]string `json:"options,omitempty"`
}

// IsZero reports whether no override is set.
func (s TopicSettings) IsZero() bool {
	return s.OverrideColor == "" && len(s.Options) == 0
}

// PanelState is the persisted panel configuration owned by the state store
// and mutated only through the topictree editor.
type PanelState struct {
	CheckedKeys             []string                 `json:"checkedKeys"`
	ExpandedKeys            []string                 `json:"expandedKeys"`
	ModifiedNamespaceTopics []string                 `json:"modifiedNamespaceTopics"`
	SettingsByKey           map[string]TopicSettings `json:"settingsByKey,omitempty"`
	TopicDisplayMode        DisplayMode              `json:"topicDisplayMode,omitempty"`
}

// Clone returns a copy that shares no slices or maps with s.
func (s PanelState) Clone() PanelState {
	clone := PanelState{
		CheckedKeys:             cloneStrings(s.CheckedKeys),
		ExpandedKeys:            cloneStrings(s.ExpandedKeys),
		ModifiedNamespaceTopics: cloneStrings(s.ModifiedNamespaceTopics),
		TopicDisplayMode:        s.TopicDisplayMode,
	}
	if s.SettingsByKey != nil {
		clone.SettingsByKey = make(map[string]TopicSettings, len(s.SettingsByKey))
		for k, v := range s.SettingsByKey {
			if v.Options != nil {
				opts := make(map[string]string, len(v.Options))
				for ok, ov := range v.Options {
					opts[ok] = ov
				}
				v.Options = opts
			}
			clone.SettingsByKey[k] = v
		}
	}
	return clone
}

// DisplayModeOrDefault returns the stored display mode or SHOW_ALL.
func (s PanelState) DisplayModeOrDefault() DisplayMode {
	if s.TopicDisplayMode.IsValid() {
		return s.TopicDisplayMode
	}
	return DisplayShowAll
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// SourceSnapshot is everything a topic source supplies to the panel.
// NamespacesByTopic is keyed by column topic name. SceneErrorsByTopicKey is
// keyed by topic key of either column.
type SourceSnapshot struct {
	Topics                []Topic
	NamespacesByTopic     map[string][]string
	SceneErrorsByTopicKey map[string][]string
}

// TopicCount returns the number of topics.
func (s *SourceSnapshot) TopicCount() int {
	if s == nil {
		return 0
	}
	return len(s.Topics)
}
