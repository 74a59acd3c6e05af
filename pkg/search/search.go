// Package search ranks tree nodes and namespaces against a query for the
// panel's jump-to prompt and the `tt search` command.
package search

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/nodekey"
	"github.com/vanderheijden86/topictree/pkg/topictree"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvSearchMode  = "TT_SEARCH_MODE"
	EnvSearchLimit = "TT_SEARCH_LIMIT"
)

// DefaultLimit caps results when no limit is configured.
const DefaultLimit = 20

// Mode selects the ranking algorithm.
type Mode string

const (
	// ModeFuzzy ranks subsequence matches by sahilm/fuzzy score.
	ModeFuzzy Mode = "fuzzy"
	// ModeSubstring keeps case-insensitive substring matches in tree order,
	// the same rule the panel filter uses.
	ModeSubstring Mode = "substring"
)

// Config controls Find.
type Config struct {
	Mode  Mode
	Limit int
}

// ConfigFromEnv reads TT_SEARCH_MODE and TT_SEARCH_LIMIT.
func ConfigFromEnv() (Config, error) {
	cfg := Config{Mode: ModeFuzzy, Limit: DefaultLimit}
	if raw := strings.ToLower(strings.TrimSpace(os.Getenv(EnvSearchMode))); raw != "" {
		mode, err := ParseMode(raw)
		if err != nil {
			return cfg, err
		}
		cfg.Mode = mode
	}
	if raw := strings.TrimSpace(os.Getenv(EnvSearchLimit)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("invalid %s %q", EnvSearchLimit, raw)
		}
		cfg.Limit = n
	}
	return cfg, nil
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFuzzy, ModeSubstring:
		return Mode(s), nil
	}
	return "", fmt.Errorf("invalid search mode %q (expected %q or %q)", s, ModeFuzzy, ModeSubstring)
}

// Kind is the kind of a searchable entry.
type Kind int

const (
	KindGroup Kind = iota
	KindTopic
	KindNamespace
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindTopic:
		return "topic"
	case KindNamespace:
		return "namespace"
	}
	return "unknown"
}

// Candidate is one searchable entry. Text is what the query is matched
// against; Key is the base key of the node or namespace.
type Candidate struct {
	Key  string
	Kind Kind
	Text string
	Path string
}

// Match is a ranked candidate. MatchedIndexes are rune offsets into Text.
type Match struct {
	Candidate
	Score          int
	MatchedIndexes []int
}

// Candidates lists every node below root in preorder, followed by the
// namespaces of each topic directly after it. namespacesByTopic is keyed by
// column topic name; namespaces of both columns are merged.
func Candidates(tree *topictree.Tree, namespacesByTopic map[string][]string) []Candidate {
	var out []Candidate
	for _, node := range tree.Flatten(tree.Root()) {
		if nodekey.IsRoot(node.Key) {
			continue
		}
		path := tree.Path(node)
		if node.IsGroup() {
			out = append(out, Candidate{Key: node.Key, Kind: KindGroup, Text: node.DisplayName(), Path: path})
			continue
		}
		text := node.TopicName
		if node.Name != "" && node.Name != node.TopicName {
			text = node.Name + " " + node.TopicName
		}
		out = append(out, Candidate{Key: node.Key, Kind: KindTopic, Text: text, Path: path})

		for _, ns := range topicNamespaces(node, namespacesByTopic) {
			out = append(out, Candidate{
				Key:  nodekey.NamespaceKey(node.TopicName, ns, model.BaseColumn),
				Kind: KindNamespace,
				Text: ns,
				Path: path,
			})
		}
	}
	return out
}

func topicNamespaces(node *model.TreeNode, namespacesByTopic map[string][]string) []string {
	set := make(map[string]struct{})
	for column := 0; column < model.MaxColumns; column++ {
		for _, ns := range namespacesByTopic[nodekey.ColumnTopic(node.TopicName, column)] {
			set[ns] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for ns := range set {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

type candidateSource []Candidate

func (s candidateSource) String(i int) string { return s[i].Text }
func (s candidateSource) Len() int            { return len(s) }

// Find ranks the tree's candidates against query in fuzzy mode and returns
// at most limit matches (all when limit <= 0). An empty query yields nil.
func Find(tree *topictree.Tree, namespacesByTopic map[string][]string, query string, limit int) []Match {
	return FindWith(tree, namespacesByTopic, query, Config{Mode: ModeFuzzy, Limit: limit})
}

// FindWith is Find with an explicit mode.
func FindWith(tree *topictree.Tree, namespacesByTopic map[string][]string, query string, cfg Config) []Match {
	query = strings.TrimSpace(query)
	if query == "" || tree == nil {
		return nil
	}
	candidates := Candidates(tree, namespacesByTopic)

	var out []Match
	switch cfg.Mode {
	case ModeSubstring:
		out = substringMatches(candidates, query)
	default:
		for _, m := range fuzzy.FindFrom(query, candidateSource(candidates)) {
			out = append(out, Match{
				Candidate:      candidates[m.Index],
				Score:          m.Score,
				MatchedIndexes: m.MatchedIndexes,
			})
		}
	}
	if cfg.Limit > 0 && len(out) > cfg.Limit {
		out = out[:cfg.Limit]
	}
	return out
}

func substringMatches(candidates []Candidate, query string) []Match {
	needle := []rune(strings.ToLower(query))
	var out []Match
	for _, c := range candidates {
		hay := []rune(strings.ToLower(c.Text))
		at := runeIndex(hay, needle)
		if at < 0 {
			continue
		}
		idx := make([]int, len(needle))
		for i := range needle {
			idx[i] = at + i
		}
		out = append(out, Match{Candidate: c, MatchedIndexes: idx})
	}
	return out
}

func runeIndex(hay, needle []rune) int {
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j := range needle {
			if hay[i+j] != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
