package topictree

import (
	"strings"

	"github.com/vanderheijden86/topictree/pkg/metrics"
	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/nodekey"
)

// FilterInput is the input of one visibility pass.
type FilterInput struct {
	Tree        *Tree
	FilterText  string
	DisplayMode model.DisplayMode
	// Resolver is required for SHOW_SELECTED pruning and supplies namespace
	// rows. Without it namespaces come from AvailableNamespacesByTopic.
	Resolver                   *Resolver
	AvailableNamespacesByTopic map[string][]string
}

// Visibility is the result of a filter pass, indexed by base and feature
// keys of nodes and namespaces.
type Visibility struct {
	filterText string
	visible    map[string]bool
	matched    map[string]bool
	matchCount int
}

// CalculateVisibility runs one depth-first pass over the tree. A node is
// visible when it matches, when an ancestor matched, or when a descendant
// or one of its namespaces matched. Root never matches. SHOW_AVAILABLE and
// SHOW_SELECTED prune subtrees that the mode would hide anyway.
func CalculateVisibility(in FilterInput) *Visibility {
	defer metrics.Timer(metrics.VisibilityPass)()

	v := &Visibility{
		filterText: strings.ToLower(strings.TrimSpace(in.FilterText)),
		visible:    make(map[string]bool),
		matched:    make(map[string]bool),
	}
	if in.Tree == nil || in.Tree.Root() == nil {
		return v
	}
	p := &filterPass{in: in, v: v}
	root := in.Tree.Root()
	anyChild := false
	for _, child := range root.Children {
		if p.visit(child, false) {
			anyChild = true
		}
	}
	v.mark(root.Key, root.FeatureKey, anyChild)
	return v
}

type filterPass struct {
	in FilterInput
	v  *Visibility
}

func (p *filterPass) matches(text string) bool {
	if p.v.filterText == "" {
		return true
	}
	return text != "" && strings.Contains(strings.ToLower(text), p.v.filterText)
}

func (p *filterPass) pruned(node *model.TreeNode) bool {
	switch p.in.DisplayMode {
	case model.DisplayShowAvailable:
		return !node.AvailableInAnyColumn()
	case model.DisplayShowSelected:
		if p.in.Resolver == nil {
			return false
		}
		for _, column := range p.in.Tree.Columns() {
			if p.in.Resolver.IsTreeNodeVisibleInScene(node, column, "") {
				return false
			}
		}
		return true
	}
	return false
}

func (p *filterPass) visit(node *model.TreeNode, ancestorMatched bool) bool {
	if p.pruned(node) {
		return false
	}
	self := p.matches(node.DisplayName()) || (node.IsTopic() && p.matches(node.TopicName))
	if self && p.v.filterText != "" {
		p.v.matched[node.Key] = true
		p.v.matched[node.FeatureKey] = true
		p.v.matchCount++
	}
	lit := self || ancestorMatched

	anyChild := false
	if node.IsTopic() {
		for _, ns := range p.namespaces(node) {
			if p.prunedNamespace(ns) {
				continue
			}
			nsSelf := p.matches(ns.Namespace)
			if nsSelf && p.v.filterText != "" {
				p.v.matched[ns.Key] = true
				p.v.matched[ns.FeatureKey] = true
				p.v.matchCount++
			}
			nsVisible := nsSelf || lit
			p.v.mark(ns.Key, ns.FeatureKey, nsVisible)
			if nsSelf {
				anyChild = true
			}
		}
	}
	for _, child := range node.Children {
		if p.visit(child, lit) {
			anyChild = true
		}
	}

	visible := lit || anyChild
	p.v.mark(node.Key, node.FeatureKey, visible)
	return visible
}

func (p *filterPass) namespaces(node *model.TreeNode) []model.NamespaceNode {
	if p.in.Resolver != nil {
		return p.in.Resolver.NamespaceNodes(node)
	}
	seen := make(map[string]struct{})
	var out []model.NamespaceNode
	columns := []int{model.BaseColumn}
	if p.in.Tree.HasFeatureColumn() {
		columns = append(columns, model.FeatureColumn)
	}
	for _, column := range columns {
		for _, ns := range p.in.AvailableNamespacesByTopic[nodekey.ColumnTopic(node.TopicName, column)] {
			if _, ok := seen[ns]; ok {
				continue
			}
			seen[ns] = struct{}{}
			out = append(out, model.NamespaceNode{
				Key:        nodekey.NamespaceKey(node.TopicName, ns, model.BaseColumn),
				FeatureKey: nodekey.NamespaceKey(node.TopicName, ns, model.FeatureColumn),
				TopicName:  node.TopicName,
				Namespace:  ns,
			})
		}
	}
	return out
}

func (p *filterPass) prunedNamespace(ns model.NamespaceNode) bool {
	switch p.in.DisplayMode {
	case model.DisplayShowAvailable:
		return ns.AvailableByColumn != nil && !anyTrue(ns.AvailableByColumn)
	case model.DisplayShowSelected:
		return ns.VisibleInSceneByColumn != nil && !anyTrue(ns.VisibleInSceneByColumn)
	}
	return false
}

func anyTrue(values []bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}

func (v *Visibility) mark(key, featureKey string, visible bool) {
	v.visible[key] = visible
	v.visible[featureKey] = visible
}

// IsTreeNodeVisibleInTree reports whether the node or namespace key survives
// the filter. Keys outside the pass are not visible.
func (v *Visibility) IsTreeNodeVisibleInTree(key string) bool {
	if v == nil {
		return true
	}
	return v.visible[key]
}

// Matched reports whether key matched the filter text directly.
func (v *Visibility) Matched(key string) bool {
	return v != nil && v.matched[key]
}

// MatchCount is the number of nodes and namespaces that matched directly.
// It is zero without filter text.
func (v *Visibility) MatchCount() int {
	if v == nil {
		return 0
	}
	return v.matchCount
}

// FilterText returns the normalized filter text of the pass.
func (v *Visibility) FilterText() string {
	if v == nil {
		return ""
	}
	return v.filterText
}
