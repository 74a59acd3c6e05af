package topictree

import (
	"strings"

	"github.com/vanderheijden86/topictree/pkg/model"
)

// ViewInput gathers the panel inputs that change independently: the
// authored configuration, the topic source snapshot, the panel state and
// the filter text.
type ViewInput struct {
	Config             *model.ConfigNode
	Snapshot           *model.SourceSnapshot
	State              model.PanelState
	FilterText         string
	UncategorizedGroup string
}

// View is one fully derived rendering of a panel.
type View struct {
	Tree       *Tree
	Resolver   *Resolver
	Visibility *Visibility
	Editor     *Editor
	Rows       []Row
	State      model.PanelState
	Snapshot   *model.SourceSnapshot
}

// NewView generates the tree and derives selection, visibility and rows.
func NewView(in ViewInput) (*View, error) {
	snap := in.Snapshot
	if snap == nil {
		snap = &model.SourceSnapshot{}
	}
	tree, err := Build(Input{
		Config:                 in.Config,
		ProviderTopics:         snap.Topics,
		UncategorizedGroupName: in.UncategorizedGroup,
	})
	if err != nil {
		return nil, err
	}
	v := &View{
		Tree:     tree,
		Editor:   NewEditor(tree, snap.NamespacesByTopic),
		Snapshot: snap,
	}
	if err := v.derive(in.State, in.FilterText); err != nil {
		return nil, err
	}
	return v, nil
}

// WithState re-derives the view for a new state and filter text, reusing
// the generated tree.
func (v *View) WithState(state model.PanelState, filterText string) (*View, error) {
	next := &View{Tree: v.Tree, Editor: v.Editor, Snapshot: v.Snapshot}
	if err := next.derive(state, filterText); err != nil {
		return nil, err
	}
	return next, nil
}

func (v *View) derive(state model.PanelState, filterText string) error {
	v.State = state
	v.Resolver = NewResolver(v.Tree, state, v.Snapshot.NamespacesByTopic)
	v.Visibility = CalculateVisibility(FilterInput{
		Tree:                       v.Tree,
		FilterText:                 filterText,
		DisplayMode:                state.DisplayModeOrDefault(),
		Resolver:                   v.Resolver,
		AvailableNamespacesByTopic: v.Snapshot.NamespacesByTopic,
	})
	rows, err := BuildRows(RowsInput{
		Tree:                  v.Tree,
		State:                 state,
		Resolver:              v.Resolver,
		Visibility:            v.Visibility,
		FilterActive:          strings.TrimSpace(filterText) != "",
		SceneErrorsByTopicKey: v.Snapshot.SceneErrorsByTopicKey,
	})
	if err != nil {
		return err
	}
	v.Rows = rows
	return nil
}
