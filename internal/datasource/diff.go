package datasource

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/vanderheijden86/topictree/pkg/model"
)

// SourceDiff represents differences between two topic sources
type SourceDiff struct {
	// SourceA is the path of the first source
	SourceA string
	// SourceB is the path of the second source
	SourceB string
	// MissingInA contains topics present in B but not in A
	MissingInA []string
	// MissingInB contains topics present in A but not in B
	MissingInB []string
	// DatatypeMismatch contains topics whose datatype differs
	DatatypeMismatch []DatatypeDifference
	// NamespaceMismatch contains topics whose namespace sets differ
	NamespaceMismatch []NamespaceDifference
	// CountA is the number of topics in source A
	CountA int
	// CountB is the number of topics in source B
	CountB int
}

// DatatypeDifference is a datatype mismatch for a single topic
type DatatypeDifference struct {
	Topic     string `json:"topic"`
	DatatypeA string `json:"datatype_a"`
	DatatypeB string `json:"datatype_b"`
}

// NamespaceDifference lists namespaces only one source reports for a topic
type NamespaceDifference struct {
	Topic string   `json:"topic"`
	OnlyA []string `json:"only_a,omitempty"`
	OnlyB []string `json:"only_b,omitempty"`
}

// HasInconsistencies returns true if there are any differences between sources
func (d SourceDiff) HasInconsistencies() bool {
	return len(d.MissingInA) > 0 || len(d.MissingInB) > 0 ||
		len(d.DatatypeMismatch) > 0 || len(d.NamespaceMismatch) > 0
}

// Summary returns a human-readable summary of the differences
func (d SourceDiff) Summary() string {
	if !d.HasInconsistencies() {
		return fmt.Sprintf("Sources match (%d topics each)", d.CountA)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Inconsistencies found between %s and %s:\n", d.SourceA, d.SourceB)
	if d.CountA != d.CountB {
		fmt.Fprintf(&sb, "  - Count mismatch: %d vs %d\n", d.CountA, d.CountB)
	}
	listed := func(header string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&sb, "  - %s\n", header)
		if len(items) <= 5 {
			for _, item := range items {
				fmt.Fprintf(&sb, "    - %s\n", item)
			}
		}
	}
	listed(fmt.Sprintf("%d topics in %s but not %s", len(d.MissingInA), d.SourceB, d.SourceA), d.MissingInA)
	listed(fmt.Sprintf("%d topics in %s but not %s", len(d.MissingInB), d.SourceA, d.SourceB), d.MissingInB)

	var datatypes []string
	for _, m := range d.DatatypeMismatch {
		datatypes = append(datatypes, fmt.Sprintf("%s: %s vs %s", m.Topic, m.DatatypeA, m.DatatypeB))
	}
	listed(fmt.Sprintf("%d topics with different datatype", len(d.DatatypeMismatch)), datatypes)

	var namespaces []string
	for _, m := range d.NamespaceMismatch {
		namespaces = append(namespaces, fmt.Sprintf("%s: [%s] vs [%s]", m.Topic,
			strings.Join(m.OnlyA, ", "), strings.Join(m.OnlyB, ", ")))
	}
	listed(fmt.Sprintf("%d topics with different namespaces", len(d.NamespaceMismatch)), namespaces)

	return sb.String()
}

// DiffOptions configures the diff operation
type DiffOptions struct {
	// CompareNamespaces also compares namespace sets per topic
	CompareNamespaces bool
	// MaxDifferences limits the number of differences tracked per kind (0 = unlimited)
	MaxDifferences int
}

// DefaultDiffOptions returns sensible default diff options
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{
		CompareNamespaces: true,
		MaxDifferences:    100,
	}
}

// DetectInconsistencies compares two snapshots. Result lists are sorted.
func DetectInconsistencies(a, b *model.SourceSnapshot, sourceA, sourceB string, opts DiffOptions) SourceDiff {
	diff := SourceDiff{SourceA: sourceA, SourceB: sourceB}
	room := func(n int) bool { return opts.MaxDifferences == 0 || n < opts.MaxDifferences }

	typesA := datatypes(a)
	typesB := datatypes(b)
	diff.CountA = len(typesA)
	diff.CountB = len(typesB)

	for _, name := range sortedNames(typesA) {
		if _, ok := typesB[name]; !ok && room(len(diff.MissingInB)) {
			diff.MissingInB = append(diff.MissingInB, name)
		}
	}
	for _, name := range sortedNames(typesB) {
		typeA, ok := typesA[name]
		if !ok {
			if room(len(diff.MissingInA)) {
				diff.MissingInA = append(diff.MissingInA, name)
			}
			continue
		}
		if typeA != typesB[name] && room(len(diff.DatatypeMismatch)) {
			diff.DatatypeMismatch = append(diff.DatatypeMismatch, DatatypeDifference{
				Topic: name, DatatypeA: typeA, DatatypeB: typesB[name],
			})
		}
	}

	if opts.CompareNamespaces {
		topics := make(map[string]struct{})
		for t := range a.NamespacesByTopic {
			topics[t] = struct{}{}
		}
		for t := range b.NamespacesByTopic {
			topics[t] = struct{}{}
		}
		for _, topic := range sortedNames(topics) {
			onlyA := subtract(a.NamespacesByTopic[topic], b.NamespacesByTopic[topic])
			onlyB := subtract(b.NamespacesByTopic[topic], a.NamespacesByTopic[topic])
			if (len(onlyA) > 0 || len(onlyB) > 0) && room(len(diff.NamespaceMismatch)) {
				diff.NamespaceMismatch = append(diff.NamespaceMismatch, NamespaceDifference{
					Topic: topic, OnlyA: onlyA, OnlyB: onlyB,
				})
			}
		}
	}
	return diff
}

func datatypes(snap *model.SourceSnapshot) map[string]string {
	out := make(map[string]string)
	if snap == nil {
		return out
	}
	for _, t := range snap.Topics {
		out[t.Name] = t.Datatype
	}
	return out
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func subtract(a, b []string) []string {
	var out []string
	for _, s := range a {
		if !slices.Contains(b, s) {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}

// CompareSources loads and compares two topic sources
func CompareSources(ctx context.Context, sourceA, sourceB DataSource, opts DiffOptions) (*SourceDiff, error) {
	snapA, err := LoadFromSource(ctx, sourceA)
	if err != nil {
		return nil, fmt.Errorf("failed to load source A (%s): %w", sourceA.Path, err)
	}
	snapB, err := LoadFromSource(ctx, sourceB)
	if err != nil {
		return nil, fmt.Errorf("failed to load source B (%s): %w", sourceB.Path, err)
	}
	diff := DetectInconsistencies(snapA, snapB, sourceA.Path, sourceB.Path, opts)
	return &diff, nil
}

// CheckAllSourcesConsistent compares every pair of valid sources and
// returns the pairs that differ. Unloadable sources are skipped.
func CheckAllSourcesConsistent(ctx context.Context, sources []DataSource, opts DiffOptions) []SourceDiff {
	var diffs []SourceDiff
	for i := 0; i < len(sources); i++ {
		if !sources[i].Valid {
			continue
		}
		for j := i + 1; j < len(sources); j++ {
			if !sources[j].Valid {
				continue
			}
			diff, err := CompareSources(ctx, sources[i], sources[j], opts)
			if err != nil {
				logger().Warn().Err(err).Msg("comparing sources")
				continue
			}
			if diff.HasInconsistencies() {
				diffs = append(diffs, *diff)
			}
		}
	}
	return diffs
}
