//go:build ignore

// generate_testdata.go creates sample topic trees for manual testing and
// profiling the panel.
// Usage: go run scripts/generate_testdata.go
//
// Creates, for each dataset:
//
//	testdata/sample/<name>/tree.yaml     (tree configuration)
//	testdata/sample/<name>/topics.jsonl  (topic snapshot)
package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/topictree/pkg/loader"
	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/testutil"
)

type datasetSpec struct {
	name string
	desc string
	cfg  testutil.GeneratorConfig
}

var datasets = []datasetSpec{
	{"small", "3x3 groups, every topic live", testutil.GeneratorConfig{
		Seed: 1, Depth: 1, Breadth: 3, NamespacesPerTopic: 2, AvailableShare: 1,
	}},
	{"medium", "3 levels of 5, 80% live, some feature topics", testutil.GeneratorConfig{
		Seed: 2, Depth: 2, Breadth: 5, NamespacesPerTopic: 4, AvailableShare: 0.8, FeatureShare: 0.3, ExtraTopics: 10,
	}},
	{"large", "4 levels of 6, 60% live, half with feature topics", testutil.GeneratorConfig{
		Seed: 3, Depth: 3, Breadth: 6, NamespacesPerTopic: 8, AvailableShare: 0.6, FeatureShare: 0.5, ExtraTopics: 50,
	}},
}

func main() {
	outputDir := filepath.Join("testdata", "sample")
	for _, ds := range datasets {
		dir := filepath.Join(outputDir, ds.name)
		topics, err := write(dir, ds.cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate %s: %v\n", ds.name, err)
			os.Exit(1)
		}
		fmt.Printf("Generated %s (%d topics): %s\n", dir, topics, ds.desc)
	}
}

func write(dir string, cfg testutil.GeneratorConfig) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	f := testutil.New(cfg).Fixture()

	tree, err := yaml.Marshal(f.Config)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(filepath.Join(dir, "tree.yaml"), tree, 0o644); err != nil {
		return 0, err
	}

	snap := &model.SourceSnapshot{Topics: f.Topics, NamespacesByTopic: f.AvailableNamespacesByTopic}
	var buf bytes.Buffer
	if err := loader.WriteSnapshot(&buf, snap); err != nil {
		return 0, err
	}
	if err := os.WriteFile(filepath.Join(dir, "topics.jsonl"), buf.Bytes(), 0o644); err != nil {
		return 0, err
	}
	return len(f.Topics), nil
}
