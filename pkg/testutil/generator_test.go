package testutil

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/topictree/pkg/nodekey"
)

func TestGenerator_Deterministic(t *testing.T) {
	a := New(GeneratorConfig{Seed: 7, FeatureShare: 0.5, AvailableShare: 0.7, NamespacesPerTopic: 1}).Fixture()
	b := New(GeneratorConfig{Seed: 7, FeatureShare: 0.5, AvailableShare: 0.7, NamespacesPerTopic: 1}).Fixture()

	if len(a.Topics) != len(b.Topics) {
		t.Fatalf("expected same topic count, got %d and %d", len(a.Topics), len(b.Topics))
	}
	for i := range a.Topics {
		if a.Topics[i] != b.Topics[i] {
			t.Errorf("topic %d differs: %v vs %v", i, a.Topics[i], b.Topics[i])
		}
	}
}

func TestGenerator_Shape(t *testing.T) {
	f := New(GeneratorConfig{Depth: 2, Breadth: 2, ExtraTopics: 3}).Fixture()

	// 2 top-level groups x 2 subgroups x 2 leaves.
	if got := len(f.Config.TopicNames()); got != 8 {
		t.Errorf("expected 8 configured topics, got %d", got)
	}
	if got := len(f.Topics); got != 11 {
		t.Errorf("expected 11 live topics, got %d", got)
	}
	if f.Config.Name != nodekey.RootName {
		t.Errorf("expected root name %q, got %q", nodekey.RootName, f.Config.Name)
	}
}

func TestExampleConfig(t *testing.T) {
	AssertKeys(t, ExampleConfig().TopicNames(), []string{"/foo", "/bar", "/baz"})
}

func TestConfigTreeGen_UniqueTopics(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := ConfigTreeGen().Draw(rt, "config")
		seen := make(map[string]struct{})
		for _, name := range cfg.TopicNames() {
			if _, dup := seen[name]; dup {
				rt.Fatalf("duplicate topic %q", name)
			}
			seen[name] = struct{}{}
		}
	})
}

func TestBaseTopicNames(t *testing.T) {
	got := BaseTopicNames(Topics("/b", "/source_2/b", "/a"))
	AssertKeys(t, got, []string{"/a", "/b"})
}
