// Package testutil provides topic tree fixtures for tests. The seeded
// Generator produces deterministic trees; the rapid generators feed property
// tests.
package testutil

import (
	"fmt"
	"math/rand"
	"sort"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/nodekey"
)

// GeneratorConfig controls fixture generation.
type GeneratorConfig struct {
	Seed               int64   // Random seed (0 = 42)
	Depth              int     // Group nesting below root (default 2)
	Breadth            int     // Children per group (default 3)
	NamespacesPerTopic int     // Namespaces reported per available topic
	AvailableShare     float64 // Share of configured topics that are live (default 1)
	FeatureShare       float64 // Share of live topics also served by the feature source
	ExtraTopics        int     // Live topics absent from the configuration
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:               42,
		Depth:              2,
		Breadth:            3,
		NamespacesPerTopic: 2,
		AvailableShare:     1,
	}
}

// Generator creates deterministic topic tree fixtures.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.Depth <= 0 {
		cfg.Depth = 2
	}
	if cfg.Breadth <= 0 {
		cfg.Breadth = 3
	}
	if cfg.AvailableShare == 0 {
		cfg.AvailableShare = 1
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a Generator with DefaultConfig.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// Fixture bundles one generated scenario.
type Fixture struct {
	Config                     *model.ConfigNode
	Topics                     []model.Topic
	AvailableNamespacesByTopic map[string][]string
}

// Fixture builds a tree of Depth group levels with Breadth children each.
// Leaves are topics named /g<path>/t<i>.
func (g *Generator) Fixture() Fixture {
	root := &model.ConfigNode{Name: nodekey.RootName}
	g.fill(root, "", g.cfg.Depth)

	f := Fixture{Config: root, AvailableNamespacesByTopic: make(map[string][]string)}
	for _, name := range root.TopicNames() {
		if g.rng.Float64() >= g.cfg.AvailableShare {
			continue
		}
		g.addLive(&f, name)
	}
	for i := 0; i < g.cfg.ExtraTopics; i++ {
		g.addLive(&f, fmt.Sprintf("/extra/t%d", i))
	}
	return f
}

func (g *Generator) addLive(f *Fixture, name string) {
	f.Topics = append(f.Topics, model.Topic{Name: name, Datatype: "visualization_msgs/MarkerArray"})
	f.AvailableNamespacesByTopic[name] = g.namespaces()
	if g.rng.Float64() < g.cfg.FeatureShare {
		feature := nodekey.ColumnTopic(name, model.FeatureColumn)
		f.Topics = append(f.Topics, model.Topic{Name: feature, Datatype: "visualization_msgs/MarkerArray"})
		f.AvailableNamespacesByTopic[feature] = g.namespaces()
	}
}

func (g *Generator) namespaces() []string {
	out := make([]string, g.cfg.NamespacesPerTopic)
	for i := range out {
		out[i] = fmt.Sprintf("ns%d", i+1)
	}
	return out
}

func (g *Generator) fill(node *model.ConfigNode, path string, depth int) {
	for i := 0; i < g.cfg.Breadth; i++ {
		childPath := fmt.Sprintf("%s%d", path, i)
		if depth == 0 {
			node.Children = append(node.Children, &model.ConfigNode{TopicName: fmt.Sprintf("/g%s/t%d", path, i)})
			continue
		}
		child := &model.ConfigNode{Name: "Group" + childPath}
		g.fill(child, childPath, depth-1)
		node.Children = append(node.Children, child)
	}
}

// ExampleConfig is the small tree used across package tests:
//
//	root
//	  Group1
//	    /foo
//	    Nested
//	      /bar
//	  /baz
func ExampleConfig() *model.ConfigNode {
	return &model.ConfigNode{Name: nodekey.RootName, Children: []*model.ConfigNode{
		{Name: "Group1", Children: []*model.ConfigNode{
			{TopicName: "/foo", Name: "Foo", Description: "Front camera markers"},
			{Name: "Nested", Children: []*model.ConfigNode{{TopicName: "/bar"}}},
		}},
		{TopicName: "/baz"},
	}}
}

// Topics builds a topic list from names, all with the same datatype.
func Topics(names ...string) []model.Topic {
	out := make([]model.Topic, len(names))
	for i, name := range names {
		out[i] = model.Topic{Name: name, Datatype: "std_msgs/String"}
	}
	return out
}

// TopicNameGen draws topic names that never carry the feature prefix and
// never contain ':'.
func TopicNameGen() *rapid.Generator[string] {
	return rapid.StringMatching(`/(cam|lidar|map|odom|tf)[a-z0-9_]{0,6}`)
}

// ConfigTreeGen draws configuration trees with unique group names and
// unique topic names. Returned topics are the configured leaves.
func ConfigTreeGen() *rapid.Generator[*model.ConfigNode] {
	return rapid.Custom(func(t *rapid.T) *model.ConfigNode {
		topics := rapid.SliceOfNDistinct(TopicNameGen(), 1, 12, rapid.ID[string]).Draw(t, "configTopics")
		groupCount := rapid.IntRange(1, 5).Draw(t, "groups")

		root := &model.ConfigNode{Name: nodekey.RootName}
		groups := []*model.ConfigNode{root}
		for i := 0; i < groupCount; i++ {
			parent := groups[rapid.IntRange(0, len(groups)-1).Draw(t, "parent")]
			group := &model.ConfigNode{Name: fmt.Sprintf("Group%d", i)}
			parent.Children = append(parent.Children, group)
			groups = append(groups, group)
		}
		for _, topic := range topics {
			parent := groups[rapid.IntRange(0, len(groups)-1).Draw(t, "leafParent")]
			parent.Children = append(parent.Children, &model.ConfigNode{TopicName: topic})
		}
		return root
	})
}

// ProviderTopicsGen draws a live topic list mixing configured names, new
// names and feature-prefixed copies.
func ProviderTopicsGen(configured []string) *rapid.Generator[[]model.Topic] {
	return rapid.Custom(func(t *rapid.T) []model.Topic {
		seen := make(map[string]struct{})
		var out []model.Topic
		add := func(name string) {
			if _, ok := seen[name]; ok {
				return
			}
			seen[name] = struct{}{}
			out = append(out, model.Topic{Name: name, Datatype: "std_msgs/String"})
		}
		for _, name := range configured {
			if rapid.Bool().Draw(t, "live") {
				add(name)
			}
		}
		for _, name := range rapid.SliceOfN(TopicNameGen(), 0, 6).Draw(t, "extra") {
			add(name)
			if rapid.Bool().Draw(t, "feature") {
				add(nodekey.ColumnTopic(name, model.FeatureColumn))
			}
		}
		return out
	})
}

// BaseTopicNames returns the distinct base names of topics, sorted.
func BaseTopicNames(topics []model.Topic) []string {
	set := make(map[string]struct{})
	for _, topic := range topics {
		base, _ := nodekey.BaseTopic(topic.Name)
		set[base] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
