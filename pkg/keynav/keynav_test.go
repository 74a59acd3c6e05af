package keynav

import (
	"errors"
	"testing"

	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/testutil"
	"github.com/vanderheijden86/topictree/pkg/topictree"
)

var namespaces = map[string][]string{"/foo": {"cars", "peds"}}

type fixture struct {
	tree   *topictree.Tree
	editor *topictree.Editor
	state  model.PanelState
	nav    *Navigator
}

// newFixture renders:
//
//	Group1
//	  /foo
//	    cars
//	    peds
//	  Nested
//	/baz
func newFixture(t *testing.T) *fixture {
	t.Helper()
	tree, err := topictree.Build(topictree.Input{
		Config:         testutil.ExampleConfig(),
		ProviderTopics: testutil.Topics("/foo", "/bar", "/baz"),
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	f := &fixture{
		tree:   tree,
		editor: topictree.NewEditor(tree, namespaces),
		state:  model.PanelState{ExpandedKeys: []string{"name:Group1", "t:/foo"}},
	}
	f.render(t)
	return f
}

func (f *fixture) render(t *testing.T) {
	t.Helper()
	rows, err := topictree.BuildRows(topictree.RowsInput{
		Tree:     f.tree,
		State:    f.state,
		Resolver: topictree.NewResolver(f.tree, f.state, namespaces),
	})
	if err != nil {
		t.Fatalf("BuildRows failed: %v", err)
	}
	f.nav = NewNavigator(rows)
}

func (f *fixture) env() Env {
	return Env{Editor: f.editor, State: f.state, Columns: f.tree.ColumnCount()}
}

func (f *fixture) dispatch(t *testing.T, op Operation, focus Focus) Result {
	t.Helper()
	res, err := f.nav.Dispatch(op, focus, f.env())
	if err != nil {
		t.Fatalf("Dispatch(%v) failed: %v", op, err)
	}
	return res
}

func node(key string) Focus { return Focus{Type: FocusTreeNode, Key: key} }

func namespace(key, ns string) Focus {
	return Focus{Type: FocusNamespace, Key: key, Namespace: ns}
}

func TestIndex(t *testing.T) {
	f := newFixture(t)

	if i, err := f.nav.Index(node("name:Nested")); err != nil || i != 4 {
		t.Errorf("expected index 4, got %d (%v)", i, err)
	}
	if i, err := f.nav.Index(namespace("ns:/foo:peds", "peds")); err != nil || i != 3 {
		t.Errorf("expected index 3, got %d (%v)", i, err)
	}
	if _, err := f.nav.Index(node("t:/bar")); !errors.Is(err, ErrFocusNotFound) {
		t.Errorf("expected ErrFocusNotFound for a hidden row, got %v", err)
	}
	if _, err := f.nav.Index(node("ns:/foo:cars")); !errors.Is(err, ErrFocusNotFound) {
		t.Errorf("expected ErrFocusNotFound for a mismatched focus type, got %v", err)
	}
	if _, err := f.nav.Index(Focus{Type: FocusType(7), Key: "t:/foo"}); !errors.Is(err, ErrUnknownFocusType) {
		t.Errorf("expected ErrUnknownFocusType, got %v", err)
	}
}

func TestIndex_FeatureKeyResolvesToBaseRow(t *testing.T) {
	f := newFixture(t)
	if i, err := f.nav.Index(node("t:/source_2/foo")); err != nil || i != 1 {
		t.Errorf("expected feature key to resolve to row 1, got %d (%v)", i, err)
	}
}

func TestDispatch_Movement(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		op   Operation
		from Focus
		want Focus
	}{
		{"down", MoveDown, node("name:Group1"), node("t:/foo")},
		{"down into namespace", MoveDown, node("t:/foo"), namespace("ns:/foo:cars", "cars")},
		{"down at bottom", MoveDown, node("t:/baz"), node("t:/baz")},
		{"up", MoveUp, node("name:Nested"), namespace("ns:/foo:peds", "peds")},
		{"up at top", MoveUp, node("name:Group1"), node("name:Group1")},
		{"first", First, node("t:/baz"), node("name:Group1")},
		{"last", Last, node("name:Group1"), node("t:/baz")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.dispatch(t, tt.op, tt.from)
			if res.Focus != tt.want {
				t.Errorf("expected focus %+v, got %+v", tt.want, res.Focus)
			}
			if res.Changed {
				t.Error("movement must not change state")
			}
		})
	}
}

func TestDispatch_ExpandAndCollapse(t *testing.T) {
	f := newFixture(t)

	res := f.dispatch(t, Expand, node("name:Nested"))
	if !res.Changed {
		t.Fatal("expected expanding a collapsed group to change state")
	}
	testutil.AssertKeys(t, res.State.ExpandedKeys, []string{"name:Group1", "t:/foo", "name:Nested"})

	res = f.dispatch(t, Expand, node("t:/foo"))
	if res.Changed || res.Focus != namespace("ns:/foo:cars", "cars") {
		t.Errorf("expected move to first child, got %+v", res)
	}

	res = f.dispatch(t, Expand, node("t:/baz"))
	if res.Changed || res.Focus != node("t:/baz") {
		t.Errorf("expected leaf expand to be a no-op, got %+v", res)
	}

	res = f.dispatch(t, Collapse, node("t:/foo"))
	testutil.AssertKeys(t, res.State.ExpandedKeys, []string{"name:Group1"})

	res = f.dispatch(t, Collapse, namespace("ns:/foo:peds", "peds"))
	if res.Changed || res.Focus != node("t:/foo") {
		t.Errorf("expected jump to parent topic, got %+v", res)
	}

	res = f.dispatch(t, Collapse, node("name:Nested"))
	if res.Focus != node("name:Group1") {
		t.Errorf("expected collapsed group to jump to parent, got %+v", res.Focus)
	}

	res = f.dispatch(t, Collapse, node("t:/baz"))
	if res.Changed || res.Focus != node("t:/baz") {
		t.Errorf("expected top-level leaf collapse to be a no-op, got %+v", res)
	}
}

func TestDispatch_ToggleExpanded(t *testing.T) {
	f := newFixture(t)

	res := f.dispatch(t, ToggleExpanded, node("name:Group1"))
	testutil.AssertKeys(t, res.State.ExpandedKeys, []string{"t:/foo"})

	res = f.dispatch(t, ToggleExpanded, namespace("ns:/foo:cars", "cars"))
	if res.Changed {
		t.Error("namespace rows cannot expand")
	}
}

func TestDispatch_ToggleChecked(t *testing.T) {
	f := newFixture(t)

	res := f.dispatch(t, ToggleChecked, node("t:/foo"))
	testutil.AssertKeys(t, res.State.CheckedKeys, []string{"t:/foo"})
	if !res.Changed {
		t.Error("expected Changed")
	}

	res = f.dispatch(t, ToggleChecked, namespace("ns:/foo:cars", "cars"))
	testutil.AssertKeys(t, res.State.CheckedKeys, []string{"ns:/foo:peds"})
	testutil.AssertKeys(t, res.State.ModifiedNamespaceTopics, []string{"/foo"})
}

func TestDispatch_ToggleDescendantsAndAncestors(t *testing.T) {
	f := newFixture(t)

	res := f.dispatch(t, ToggleDescendants, node("name:Group1"))
	testutil.AssertKeySet(t, res.State.CheckedKeys, []string{
		"name:Group1", "t:/foo", "ns:/foo:cars", "ns:/foo:peds", "name:Nested", "t:/bar",
	})

	res = f.dispatch(t, ToggleAncestors, node("t:/foo"))
	testutil.AssertKeys(t, res.State.CheckedKeys, []string{"name:Group1", "t:/foo"})

	// peds is checked by default, so the toggle unchecks it and its chain.
	res = f.dispatch(t, ToggleAncestors, namespace("ns:/foo:peds", "peds"))
	testutil.AssertKeys(t, res.State.CheckedKeys, []string{"ns:/foo:cars"})
	testutil.AssertKeys(t, res.State.ModifiedNamespaceTopics, []string{"/foo"})
}

func TestDispatch_FeatureColumn(t *testing.T) {
	tree, err := topictree.Build(topictree.Input{
		Config:         testutil.ExampleConfig(),
		ProviderTopics: testutil.Topics("/foo", "/source_2/foo"),
	})
	if err != nil {
		t.Fatal(err)
	}
	state := model.PanelState{ExpandedKeys: []string{"name:Group1"}}
	rows, err := topictree.BuildRows(topictree.RowsInput{
		Tree:     tree,
		State:    state,
		Resolver: topictree.NewResolver(tree, state, nil),
	})
	if err != nil {
		t.Fatal(err)
	}
	nav := NewNavigator(rows)
	env := Env{Editor: topictree.NewEditor(tree, nil), State: state, Columns: tree.ColumnCount()}

	res, err := nav.Dispatch(NextColumn, node("t:/foo"), env)
	if err != nil || res.Focus.Column != model.FeatureColumn {
		t.Fatalf("expected feature column focus, got %+v (%v)", res.Focus, err)
	}
	res, err = nav.Dispatch(ToggleChecked, res.Focus, env)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertKeys(t, res.State.CheckedKeys, []string{"t:/source_2/foo"})

	res, err = nav.Dispatch(NextColumn, res.Focus, env)
	if err != nil || res.Focus.Column != model.BaseColumn {
		t.Errorf("expected column to wrap to base, got %+v (%v)", res.Focus, err)
	}
}

func TestDispatch_ColumnClampedToAvailable(t *testing.T) {
	f := newFixture(t)
	focus := node("t:/foo")
	focus.Column = model.FeatureColumn

	res := f.dispatch(t, ToggleChecked, focus)
	testutil.AssertKeys(t, res.State.CheckedKeys, []string{"t:/foo"})
	if res.Focus.Column != model.BaseColumn {
		t.Errorf("expected focus column clamped to base, got %d", res.Focus.Column)
	}
}

func TestDispatch_Errors(t *testing.T) {
	f := newFixture(t)

	if _, err := f.nav.Dispatch(Operation(99), node("t:/foo"), f.env()); !errors.Is(err, ErrUnknownOperation) {
		t.Errorf("expected ErrUnknownOperation, got %v", err)
	}
	if _, err := f.nav.Dispatch(MoveDown, node("t:/gone"), f.env()); !errors.Is(err, ErrFocusNotFound) {
		t.Errorf("expected ErrFocusNotFound, got %v", err)
	}
	if _, err := f.nav.Dispatch(MoveDown, Focus{Type: FocusType(3), Key: "t:/foo"}, f.env()); !errors.Is(err, ErrUnknownFocusType) {
		t.Errorf("expected ErrUnknownFocusType, got %v", err)
	}
	if _, err := f.nav.Dispatch(ToggleChecked, node("t:/foo"), Env{State: f.state}); err == nil {
		t.Error("expected an error without an editor")
	}

	empty := NewNavigator(nil)
	res, err := empty.Dispatch(MoveDown, node("t:/foo"), f.env())
	if err != nil || res.Changed {
		t.Errorf("expected empty navigator to ignore input, got %+v (%v)", res, err)
	}
}

func TestRefocus(t *testing.T) {
	f := newFixture(t)

	keep := node("name:Nested")
	if got := f.nav.Refocus(keep, 0); got != keep {
		t.Errorf("expected existing focus kept, got %+v", got)
	}
	if got := f.nav.Refocus(node("t:/gone"), 99); got != node("t:/baz") {
		t.Errorf("expected nearest row, got %+v", got)
	}
	if got := NewNavigator(nil).Refocus(node("t:/foo"), 2); got.Key != "" {
		t.Errorf("expected zero focus for no rows, got %+v", got)
	}
}

func TestParseOperation(t *testing.T) {
	for op, name := range operationNames {
		got, err := ParseOperation(name)
		if err != nil || got != op {
			t.Errorf("ParseOperation(%q) = %v, %v", name, got, err)
		}
		if op.String() != name {
			t.Errorf("%d.String() = %q, expected %q", op, op.String(), name)
		}
	}
	if _, err := ParseOperation("jump"); !errors.Is(err, ErrUnknownOperation) {
		t.Errorf("expected ErrUnknownOperation, got %v", err)
	}
}
