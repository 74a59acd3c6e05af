package topictree

import (
	"testing"

	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/testutil"
)

func exampleSnapshot() *model.SourceSnapshot {
	return &model.SourceSnapshot{
		Topics:                testutil.Topics("/foo", "/bar", "/baz", "/stray"),
		NamespacesByTopic:     exampleNamespaces,
		SceneErrorsByTopicKey: map[string][]string{"t:/bar": {"no transform"}},
	}
}

func TestNewView(t *testing.T) {
	v, err := NewView(ViewInput{
		Config:   testutil.ExampleConfig(),
		Snapshot: exampleSnapshot(),
		State:    DefaultState(""),
	})
	if err != nil {
		t.Fatalf("NewView failed: %v", err)
	}
	testutil.AssertKeys(t, rowIDs(v.Rows), []string{"name:Group1", "t:/baz", "name:(Uncategorized)"})
	if v.Visibility.MatchCount() != 0 {
		t.Errorf("expected no matches without filter, got %d", v.Visibility.MatchCount())
	}
	if !v.Resolver.IsSelected("name:(Uncategorized)", false) {
		t.Error("uncategorized group should be selected by default")
	}
}

func TestView_WithStateReusesTree(t *testing.T) {
	v, err := NewView(ViewInput{Config: testutil.ExampleConfig(), Snapshot: exampleSnapshot()})
	if err != nil {
		t.Fatalf("NewView failed: %v", err)
	}
	state := v.Editor.ExpandAll(v.State)
	next, err := v.WithState(state, "peds")
	if err != nil {
		t.Fatalf("WithState failed: %v", err)
	}
	if next.Tree != v.Tree {
		t.Error("expected the generated tree to be reused")
	}
	testutil.AssertKeys(t, rowIDs(next.Rows), []string{"name:Group1", "t:/foo", "ns:/foo:peds"})
	if next.Visibility.MatchCount() != 1 {
		t.Errorf("expected 1 match, got %d", next.Visibility.MatchCount())
	}
}

func TestNewView_NilSnapshot(t *testing.T) {
	v, err := NewView(ViewInput{Config: testutil.ExampleConfig()})
	if err != nil {
		t.Fatalf("NewView failed: %v", err)
	}
	if len(v.Rows) == 0 {
		t.Error("authored groups should render without a topic source")
	}
}
