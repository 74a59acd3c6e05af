package topictree

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/nodekey"
	"github.com/vanderheijden86/topictree/pkg/testutil"
)

func drawTree(t *rapid.T) (*Tree, []model.Topic) {
	cfg := testutil.ConfigTreeGen().Draw(t, "config")
	topics := testutil.ProviderTopicsGen(cfg.TopicNames()).Draw(t, "topics")
	// Group0 is always configured, so it exercises a name collision.
	groupName := rapid.SampledFrom([]string{"", "Misc", "Group0"}).Draw(t, "uncategorizedGroup")
	tree, err := Build(Input{Config: cfg, ProviderTopics: topics, UncategorizedGroupName: groupName})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return tree, topics
}

func drawNode(t *rapid.T, tree *Tree) *model.TreeNode {
	nodes := tree.Flatten(tree.Root())[1:]
	if len(nodes) == 0 {
		t.Skip("tree without nodes")
	}
	return rapid.SampledFrom(nodes).Draw(t, "node")
}

func drawColumn(t *rapid.T, tree *Tree) int {
	return rapid.IntRange(0, tree.ColumnCount()-1).Draw(t, "column")
}

func TestProperty_UncategorizedCompleteness(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tree, topics := drawTree(t)

		leaves := make(map[string]int)
		for _, n := range tree.TopicNodes() {
			leaves[n.TopicName]++
		}
		for _, name := range testutil.BaseTopicNames(topics) {
			if leaves[name] != 1 {
				t.Fatalf("topic %q appears in %d leaves", name, leaves[name])
			}
			n, _ := tree.TopicNode(name)
			if !n.AvailableInAnyColumn() {
				t.Fatalf("live topic %q is not available in any column", name)
			}
		}
	})
}

func TestProperty_ToggleNodeCheckedInvolution(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tree, _ := drawTree(t)
		e := NewEditor(tree, nil)
		node := drawNode(t, tree)
		column := drawColumn(t, tree)

		var initial []string
		for _, n := range tree.Flatten(tree.Root())[1:] {
			if rapid.Bool().Draw(t, "checked") {
				initial = append(initial, n.ColumnKey(column))
			}
		}
		in := model.PanelState{CheckedKeys: initial}
		snapshot := strings.Join(initial, ",")

		out := e.ToggleNodeChecked(e.ToggleNodeChecked(in, node.Key, column), node.Key, column)
		if strings.Join(in.CheckedKeys, ",") != snapshot {
			t.Fatalf("input mutated")
		}
		if !sameSet(out.CheckedKeys, initial) {
			t.Fatalf("double toggle changed keys: %v -> %v", initial, out.CheckedKeys)
		}
	})
}

func TestProperty_AncestorMonotonicity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tree, _ := drawTree(t)
		e := NewEditor(tree, nil)
		node := drawNode(t, tree)
		column := drawColumn(t, tree)
		feature := column == model.FeatureColumn

		state := e.ToggleCheckAllAncestors(model.PanelState{}, node.Key, column, "")
		r := NewResolver(tree, state, nil)
		if !r.IsSelected(node.Key, feature) {
			t.Fatalf("%s not selected after toggling ancestors", node.Key)
		}
		checked := make(map[string]bool)
		for _, k := range state.CheckedKeys {
			checked[k] = true
		}
		for _, a := range append(tree.Ancestors(node), node) {
			if !checked[a.ColumnKey(column)] {
				t.Fatalf("ancestor %s missing from %v", a.ColumnKey(column), state.CheckedKeys)
			}
		}
		if checked[nodekey.ColumnKey(nodekey.RootKey, column)] {
			t.Fatalf("root must never be checked by ancestor toggles")
		}
	})
}

func TestProperty_DescendantsToggleIsUniform(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tree, _ := drawTree(t)
		e := NewEditor(tree, nil)
		node := drawNode(t, tree)
		column := drawColumn(t, tree)

		state := e.ToggleCheckAllDescendants(model.PanelState{}, node.Key, column)
		r := NewResolver(tree, state, nil)
		for _, n := range tree.Flatten(node) {
			if !r.IsChecked(n.ColumnKey(column)) {
				t.Fatalf("descendant %s not checked", n.Key)
			}
		}
		state = e.ToggleCheckAllDescendants(state, node.Key, column)
		if len(state.CheckedKeys) != 0 {
			t.Fatalf("expected all keys cleared, got %v", state.CheckedKeys)
		}
	})
}

func TestProperty_FilterMonotonicity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tree, _ := drawTree(t)
		target := drawNode(t, tree)
		name := strings.ToLower(target.DisplayName())
		start := rapid.IntRange(0, len(name)-1).Draw(t, "start")
		end := rapid.IntRange(start+1, len(name)).Draw(t, "end")
		filter := name[start:end]

		v := CalculateVisibility(FilterInput{Tree: tree, FilterText: filter})
		for _, n := range tree.Flatten(tree.Root())[1:] {
			if !v.Matched(n.Key) {
				continue
			}
			if !v.IsTreeNodeVisibleInTree(n.Key) {
				t.Fatalf("matched node %s not visible", n.Key)
			}
			for _, a := range tree.Ancestors(n) {
				if !v.IsTreeNodeVisibleInTree(a.Key) {
					t.Fatalf("ancestor %s of matched %s not visible", a.Key, n.Key)
				}
			}
		}
		if strings.TrimSpace(filter) != "" && !v.IsTreeNodeVisibleInTree(target.Key) {
			t.Fatalf("target %s not visible for filter %q", target.Key, filter)
		}
	})
}

func sameSet(a, b []string) bool {
	set := make(map[string]int)
	for _, k := range a {
		set[k]++
	}
	for _, k := range b {
		set[k]--
	}
	for _, v := range set {
		if v != 0 {
			return false
		}
	}
	return true
}
