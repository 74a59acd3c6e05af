package topictree

import (
	"fmt"

	"github.com/vanderheijden86/topictree/pkg/metrics"
	"github.com/vanderheijden86/topictree/pkg/model"
)

// RowKind tells node rows from namespace rows.
type RowKind int

const (
	RowNode RowKind = iota
	RowNamespace
)

// Row is one rendered line of the panel. ID is the base key of the node or
// namespace and stays stable across regenerations.
type Row struct {
	ID          string
	Kind        RowKind
	Depth       int
	ParentID    string
	Node        *model.TreeNode
	Namespace   *model.NamespaceNode
	Expanded    bool
	HasChildren bool
	Matched     bool

	AvailableByColumn      []bool
	CheckedByColumn        []bool
	VisibleInSceneByColumn []bool

	SceneErrors       []string
	HasCustomSettings bool
}

// Label returns the text shown for the row.
func (r Row) Label() string {
	if r.Kind == RowNamespace && r.Namespace != nil {
		return r.Namespace.Namespace
	}
	return r.Node.DisplayName()
}

// RowsInput is the input of BuildRows.
type RowsInput struct {
	Tree       *Tree
	State      model.PanelState
	Resolver   *Resolver
	Visibility *Visibility
	// FilterActive renders every group open so matches are never hidden
	// behind collapsed parents.
	FilterActive bool
	// SceneErrorsByTopicKey holds scene builder errors per topic key.
	SceneErrorsByTopicKey map[string][]string
}

// BuildRows flattens the tree into render rows. Root's children sit at depth
// zero. Rows obey ExpandedKeys, the display mode and the filter visibility.
func BuildRows(in RowsInput) ([]Row, error) {
	defer metrics.Timer(metrics.RowBuild)()

	if in.Tree == nil || in.Resolver == nil {
		return nil, fmt.Errorf("building rows: tree and resolver are required")
	}
	b := &rowBuilder{
		in:       in,
		expanded: make(map[string]struct{}, len(in.State.ExpandedKeys)),
		errors:   make(map[string][]string),
		mode:     in.State.DisplayModeOrDefault(),
	}
	for _, key := range in.State.ExpandedKeys {
		b.expanded[key] = struct{}{}
	}
	b.collectErrors(in.Tree.Root())

	for _, child := range in.Tree.Root().Children {
		if err := b.visit(child, 0, ""); err != nil {
			return nil, err
		}
	}
	return b.rows, nil
}

type rowBuilder struct {
	in       RowsInput
	expanded map[string]struct{}
	errors   map[string][]string
	mode     model.DisplayMode
	rows     []Row
}

// collectErrors sums scene errors bottom-up so each group carries the
// errors of all descendant topics.
func (b *rowBuilder) collectErrors(node *model.TreeNode) []string {
	var errs []string
	if node.IsTopic() {
		errs = append(errs, b.in.SceneErrorsByTopicKey[node.Key]...)
		errs = append(errs, b.in.SceneErrorsByTopicKey[node.FeatureKey]...)
	}
	for _, child := range node.Children {
		errs = append(errs, b.collectErrors(child)...)
	}
	if len(errs) > 0 {
		b.errors[node.Key] = errs
	}
	return errs
}

func (b *rowBuilder) shownByMode(available, inScene []bool) bool {
	switch b.mode {
	case model.DisplayShowAvailable:
		return anyTrue(available)
	case model.DisplayShowSelected:
		return anyTrue(inScene)
	}
	return true
}

func (b *rowBuilder) visit(node *model.TreeNode, depth int, parentID string) error {
	r := b.in.Resolver
	columns := b.in.Tree.Columns()

	inScene := make([]bool, len(columns))
	checked := make([]bool, len(columns))
	for _, column := range columns {
		inScene[column] = r.IsTreeNodeVisibleInScene(node, column, "")
		checked[column] = r.IsChecked(node.ColumnKey(column))
	}
	if !b.shownByMode(node.AvailableByColumn, inScene) {
		return nil
	}
	if b.in.Visibility != nil && !b.in.Visibility.IsTreeNodeVisibleInTree(node.Key) {
		return nil
	}

	var namespaces []model.NamespaceNode
	switch node.Type {
	case model.NodeTypeTopic:
		namespaces = r.NamespaceNodes(node)
	case model.NodeTypeGroup:
	default:
		return fmt.Errorf("%w: %q at %s", ErrUnknownNodeType, node.Type, node.Key)
	}

	_, open := b.expanded[node.Key]
	if b.in.FilterActive && node.IsGroup() {
		open = true
	}
	if b.in.FilterActive && node.IsTopic() && b.anyNamespaceMatched(namespaces) {
		open = true
	}

	b.rows = append(b.rows, Row{
		ID:                     node.Key,
		Kind:                   RowNode,
		Depth:                  depth,
		ParentID:               parentID,
		Node:                   node,
		Expanded:               open,
		HasChildren:            len(node.Children) > 0 || len(namespaces) > 0,
		Matched:                b.in.Visibility.Matched(node.Key),
		AvailableByColumn:      node.AvailableByColumn,
		CheckedByColumn:        checked,
		VisibleInSceneByColumn: inScene,
		SceneErrors:            b.errors[node.Key],
		HasCustomSettings:      r.HasCustomSettings(node.Key),
	})
	if !open {
		return nil
	}

	for i := range namespaces {
		ns := &namespaces[i]
		if !b.shownByMode(ns.AvailableByColumn, ns.VisibleInSceneByColumn) {
			continue
		}
		if b.in.Visibility != nil && !b.in.Visibility.IsTreeNodeVisibleInTree(ns.Key) {
			continue
		}
		b.rows = append(b.rows, Row{
			ID:                     ns.Key,
			Kind:                   RowNamespace,
			Depth:                  depth + 1,
			ParentID:               node.Key,
			Node:                   node,
			Namespace:              ns,
			Matched:                b.in.Visibility.Matched(ns.Key),
			AvailableByColumn:      ns.AvailableByColumn,
			CheckedByColumn:        ns.CheckedByColumn,
			VisibleInSceneByColumn: ns.VisibleInSceneByColumn,
			HasCustomSettings:      r.HasCustomSettings(ns.Key),
		})
	}
	for _, child := range node.Children {
		if err := b.visit(child, depth+1, node.Key); err != nil {
			return err
		}
	}
	return nil
}

func (b *rowBuilder) anyNamespaceMatched(namespaces []model.NamespaceNode) bool {
	for _, ns := range namespaces {
		if b.in.Visibility.Matched(ns.Key) {
			return true
		}
	}
	return false
}
