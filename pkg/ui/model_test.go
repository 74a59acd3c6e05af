package ui

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/topictree/pkg/keynav"
	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/panelstate"
	"github.com/vanderheijden86/topictree/pkg/testutil"
	"github.com/vanderheijden86/topictree/pkg/topictree"
)

type memStore struct {
	mu    sync.Mutex
	saved map[string]model.PanelState
}

func newMemStore() *memStore {
	return &memStore{saved: make(map[string]model.PanelState)}
}

func (s *memStore) Load(_ context.Context, panelID string) (model.PanelState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.saved[panelID]
	if !ok {
		return model.PanelState{}, panelstate.ErrNotFound
	}
	return state, nil
}

func (s *memStore) Save(_ context.Context, panelID string, state model.PanelState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[panelID] = state
	return nil
}

func (s *memStore) Delete(_ context.Context, panelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saved, panelID)
	return nil
}

func (s *memStore) List(context.Context) ([]string, error) { return nil, nil }
func (s *memStore) Close() error                           { return nil }

func exampleSnapshot() *model.SourceSnapshot {
	return &model.SourceSnapshot{
		Topics:                testutil.Topics("/foo", "/bar", "/baz", "/stray"),
		NamespacesByTopic:     map[string][]string{"/foo": {"cars", "peds"}},
		SceneErrorsByTopicKey: map[string][]string{"t:/bar": {"no transform"}},
	}
}

func newTestModel(t *testing.T, mutate func(*Options)) Model {
	t.Helper()
	opts := Options{
		Config:   testutil.ExampleConfig(),
		Snapshot: exampleSnapshot(),
		State:    topictree.DefaultState(""),
		PanelID:  "test",
		Renderer: lipgloss.NewRenderer(io.Discard),
	}
	if mutate != nil {
		mutate(&opts)
	}
	m, err := NewModel(opts)
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return updated.(Model)
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// press sends keys and returns the model and the command of the last key.
func press(m Model, keys ...string) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var updated tea.Model
		updated, cmd = m.Update(keyMsg(k))
		m = updated.(Model)
	}
	return m, cmd
}

func rowIDs(m Model) []string {
	ids := make([]string, 0, len(m.PanelView().Rows))
	for _, r := range m.PanelView().Rows {
		ids = append(ids, r.ID)
	}
	return ids
}

func focusOn(t *testing.T, m Model, id string) Model {
	t.Helper()
	m, _ = press(m, "g")
	for i := 0; i < len(m.PanelView().Rows); i++ {
		if m.Focus().ID() == id {
			return m
		}
		m, _ = press(m, "j")
	}
	t.Fatalf("row %s not reachable; rows %v", id, rowIDs(m))
	return m
}

func TestNewModel_InitialRows(t *testing.T) {
	m := newTestModel(t, nil)
	testutil.AssertKeys(t, rowIDs(m), []string{"name:Group1", "t:/baz", "name:(Uncategorized)"})
	if got := m.Focus(); got.Key != "name:Group1" || got.Type != keynav.FocusTreeNode {
		t.Errorf("expected focus on first row, got %+v", got)
	}
}

func TestMovementKeys(t *testing.T) {
	m := newTestModel(t, nil)

	m, _ = press(m, "j")
	if m.Focus().Key != "t:/baz" {
		t.Fatalf("j should move down, focus %s", m.Focus().Key)
	}
	m, _ = press(m, "up")
	if m.Focus().Key != "name:Group1" {
		t.Fatalf("up should move back, focus %s", m.Focus().Key)
	}
	m, _ = press(m, "G")
	if m.Focus().Key != "name:(Uncategorized)" {
		t.Fatalf("G should jump to last, focus %s", m.Focus().Key)
	}
	m, _ = press(m, "g")
	if m.Focus().Key != "name:Group1" {
		t.Fatalf("g should jump to first, focus %s", m.Focus().Key)
	}
}

func TestExpandPersistsState(t *testing.T) {
	store := newMemStore()
	m := newTestModel(t, func(o *Options) { o.Store = store })

	m, cmd := press(m, "right")
	if !slices.Contains(m.State().ExpandedKeys, "name:Group1") {
		t.Fatalf("expected Group1 expanded, got %v", m.State().ExpandedKeys)
	}
	testutil.AssertKeys(t, rowIDs(m), []string{"name:Group1", "t:/foo", "name:Nested", "t:/baz", "name:(Uncategorized)"})
	if cmd == nil {
		t.Fatal("expected a save command after a state change")
	}
	if msg, ok := cmd().(stateSavedMsg); !ok || msg.err != nil {
		t.Fatalf("expected successful stateSavedMsg, got %#v", msg)
	}
	saved, err := store.Load(context.Background(), "test")
	if err != nil {
		t.Fatalf("state not saved: %v", err)
	}
	if !slices.Contains(saved.ExpandedKeys, "name:Group1") {
		t.Errorf("saved state misses expansion: %v", saved.ExpandedKeys)
	}

	// Right on an expanded group moves to its first child.
	m, _ = press(m, "right")
	if m.Focus().Key != "t:/foo" {
		t.Errorf("expected focus on first child, got %s", m.Focus().Key)
	}
	// Left on a leaf jumps to the parent.
	m, _ = press(m, "left")
	if m.Focus().Key != "name:Group1" {
		t.Errorf("expected focus on parent, got %s", m.Focus().Key)
	}
}

func TestToggleChecked(t *testing.T) {
	m := newTestModel(t, nil)
	m = focusOn(t, m, "t:/baz")

	m, _ = press(m, " ")
	if !slices.Contains(m.State().CheckedKeys, "t:/baz") {
		t.Fatalf("space should check /baz, got %v", m.State().CheckedKeys)
	}
	m, _ = press(m, "x")
	if slices.Contains(m.State().CheckedKeys, "t:/baz") {
		t.Fatalf("x should uncheck /baz, got %v", m.State().CheckedKeys)
	}
}

func TestToggleDescendantsKey(t *testing.T) {
	m := newTestModel(t, nil)
	m, _ = press(m, "a")
	testutil.AssertContainsKeys(t, m.State().CheckedKeys, "name:Group1", "t:/foo", "name:Nested", "t:/bar")
}

func TestDisplayModeCycle(t *testing.T) {
	m := newTestModel(t, nil)
	m, _ = press(m, "m")
	if got := m.State().TopicDisplayMode; got != model.DisplayShowAvailable {
		t.Fatalf("expected SHOW_AVAILABLE, got %s", got)
	}
	if m.Status() != "Showing available topics" {
		t.Errorf("unexpected status %q", m.Status())
	}
	m, _ = press(m, "m", "m")
	if got := m.State().TopicDisplayMode; got != model.DisplayShowAll {
		t.Errorf("expected cycle back to SHOW_ALL, got %s", got)
	}
}

func TestFilter_AppliesImmediatelyWithoutDebounce(t *testing.T) {
	m := newTestModel(t, nil)

	m, _ = press(m, "/", "peds")
	if m.FilterText() != "peds" {
		t.Fatalf("expected filter applied, got %q", m.FilterText())
	}
	testutil.AssertKeys(t, rowIDs(m), []string{"name:Group1", "t:/foo", "ns:/foo:peds"})
	if m.Status() != "1 matches" {
		t.Errorf("unexpected status %q", m.Status())
	}

	m, _ = press(m, "enter")
	if m.mode != modeTree || m.FilterText() != "peds" {
		t.Fatalf("enter should keep the filter and leave input mode")
	}
	m, _ = press(m, "esc")
	if m.FilterText() != "" {
		t.Errorf("esc should clear the filter, got %q", m.FilterText())
	}
	testutil.AssertKeys(t, rowIDs(m), []string{"name:Group1", "t:/baz", "name:(Uncategorized)"})
}

func TestFilter_Debounced(t *testing.T) {
	m := newTestModel(t, func(o *Options) { o.FilterDebounce = 50 * time.Millisecond })

	m, _ = press(m, "/", "p", "e", "d", "s")
	if m.FilterText() != "" {
		t.Fatalf("filter should wait for the debounce, got %q", m.FilterText())
	}

	msgs := make(chan tea.Msg, 1)
	go func() { msgs <- waitForFilterCmd(m.filterCh)() }()
	select {
	case msg := <-msgs:
		updated, cmd := m.Update(msg)
		m = updated.(Model)
		if cmd == nil {
			t.Error("expected the filter listener to be re-armed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("debounced filter never fired")
	}
	if m.FilterText() != "peds" {
		t.Errorf("expected latest text applied once, got %q", m.FilterText())
	}
}

func TestJump_ExpandsPathToTopic(t *testing.T) {
	m := newTestModel(t, nil)

	m, _ = press(m, "f", "bar")
	if len(m.jumpMatches) == 0 || m.jumpMatches[0].Key != "t:/bar" {
		t.Fatalf("expected /bar first, got %+v", m.jumpMatches)
	}
	m, _ = press(m, "enter")
	if m.Focus().Key != "t:/bar" {
		t.Fatalf("expected focus on /bar, got %s", m.Focus().Key)
	}
	testutil.AssertContainsKeys(t, m.State().ExpandedKeys, "name:Group1", "name:Nested")
}

func TestJump_Namespace(t *testing.T) {
	m := newTestModel(t, nil)

	m, _ = press(m, "f", "cars", "enter")
	if got := m.Focus(); got.Key != "ns:/foo:cars" || got.Type != keynav.FocusNamespace {
		t.Fatalf("expected namespace focus, got %+v", got)
	}
	testutil.AssertContainsKeys(t, m.State().ExpandedKeys, "name:Group1", "t:/foo")
}

func TestJump_EscapeCancels(t *testing.T) {
	m := newTestModel(t, nil)
	m, _ = press(m, "f", "baz", "esc")
	if m.mode != modeTree || m.Focus().Key != "name:Group1" {
		t.Errorf("esc should leave jump mode without moving, focus %s", m.Focus().Key)
	}
}

func TestCopyTopic(t *testing.T) {
	var copied string
	orig := writeClipboard
	writeClipboard = func(s string) error { copied = s; return nil }
	defer func() { writeClipboard = orig }()

	m := newTestModel(t, func(o *Options) {
		o.Snapshot = &model.SourceSnapshot{Topics: testutil.Topics("/baz", "/source_2/baz")}
	})
	m = focusOn(t, m, "t:/baz")

	m, _ = press(m, "y")
	if copied != "/baz" {
		t.Errorf("expected /baz copied, got %q", copied)
	}
	m, _ = press(m, "tab", "y")
	if copied != "/source_2/baz" {
		t.Errorf("expected feature topic copied, got %q", copied)
	}
	if !strings.Contains(m.Status(), "Copied /source_2/baz") {
		t.Errorf("unexpected status %q", m.Status())
	}

	writeClipboard = func(string) error { return errors.New("no display") }
	m, _ = press(m, "y")
	if !m.statusIsError || !strings.Contains(m.Status(), "Clipboard error") {
		t.Errorf("expected clipboard error status, got %q", m.Status())
	}
}

func TestCopyTopic_GroupHasNoName(t *testing.T) {
	m := newTestModel(t, nil)
	m, _ = press(m, "y")
	if !m.statusIsError {
		t.Errorf("copying a group should report an error, got %q", m.Status())
	}
}

func TestSettingsForm(t *testing.T) {
	m := newTestModel(t, nil)
	m = focusOn(t, m, "t:/baz")

	m, cmd := press(m, "o")
	if m.mode != modeForm || m.form == nil {
		t.Fatal("o should open the settings form")
	}
	if cmd == nil {
		t.Error("expected the form init command")
	}
	if m.form.key != "t:/baz" {
		t.Errorf("unexpected settings key %q", m.form.key)
	}

	*m.form.color = "FF8800"
	updated, _ := m.applyForm()
	m = updated.(Model)
	if got := m.State().SettingsByKey["t:/baz"].OverrideColor; got != "#ff8800" {
		t.Fatalf("expected normalized color, got %q", got)
	}
	if m.mode != modeTree {
		t.Error("form should close after submit")
	}
	if !strings.Contains(m.View(), swatchMark) {
		t.Error("expected color swatch in the row")
	}

	m, _ = press(m, "O")
	if _, ok := m.State().SettingsByKey["t:/baz"]; ok {
		t.Error("O should clear the override")
	}
}

func TestSettingsForm_EscapeCancels(t *testing.T) {
	m := newTestModel(t, nil)
	m = focusOn(t, m, "t:/baz")
	m, _ = press(m, "o", "esc")
	if m.mode != modeTree || m.form != nil {
		t.Fatal("esc should close the form")
	}
	if len(m.State().SettingsByKey) != 0 {
		t.Errorf("cancel must not change settings: %v", m.State().SettingsByKey)
	}
}

func TestReloadedMsg(t *testing.T) {
	m := newTestModel(t, nil)
	m = focusOn(t, m, "t:/baz")

	updated, _ := m.Update(ReloadedMsg{Snapshot: &model.SourceSnapshot{Topics: testutil.Topics("/baz", "/new")}})
	m = updated.(Model)
	if m.Status() != "Reloaded 2 topics" {
		t.Errorf("unexpected status %q", m.Status())
	}
	if m.Focus().Key != "t:/baz" {
		t.Errorf("focus should survive a reload, got %s", m.Focus().Key)
	}

	updated, _ = m.Update(ReloadedMsg{Err: errors.New("boom")})
	m = updated.(Model)
	if !m.statusIsError || !strings.Contains(m.Status(), "boom") {
		t.Errorf("expected reload error status, got %q", m.Status())
	}
}

func TestFileChangedTriggersReload(t *testing.T) {
	calls := 0
	reload := func(context.Context) (*model.ConfigNode, *model.SourceSnapshot, error) {
		calls++
		return testutil.ExampleConfig(), exampleSnapshot(), nil
	}
	m := newTestModel(t, func(o *Options) { o.Reload = reload })

	_, cmd := m.Update(FileChangedMsg{Paths: []string{"topics.jsonl"}})
	if cmd == nil {
		t.Fatal("expected a reload command")
	}
	msg := ReloadCmd(reload)()
	if _, ok := msg.(ReloadedMsg); !ok || calls != 1 {
		t.Errorf("expected one reload, got %d calls and %T", calls, msg)
	}
}

func TestStateSaveErrorShown(t *testing.T) {
	m := newTestModel(t, nil)
	updated, _ := m.Update(stateSavedMsg{err: errors.New("disk full")})
	m = updated.(Model)
	if !m.statusIsError || !strings.Contains(m.Status(), "disk full") {
		t.Errorf("expected save error status, got %q", m.Status())
	}
}

func TestHelpAndQuit(t *testing.T) {
	m := newTestModel(t, nil)
	m, _ = press(m, "?")
	if !m.showHelp {
		t.Fatal("? should show help")
	}
	m, _ = press(m, "j")
	if m.showHelp || m.Focus().Key != "name:Group1" {
		t.Fatal("any key should dismiss help without acting")
	}
	_, cmd := press(m, "q")
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestView_Renders(t *testing.T) {
	m := newTestModel(t, nil)
	out := m.View()
	for _, want := range []string{"Topics", "showing all", "Group1", "/baz", "(Uncategorized)", checkedBox, "src"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}

	m, _ = press(m, "/", "zzz")
	if out := m.View(); !strings.Contains(out, `No topics match "zzz"`) {
		t.Errorf("expected empty filter message:\n%s", out)
	}
}

func TestView_DetailsPane(t *testing.T) {
	m := newTestModel(t, func(o *Options) { o.ShowDetails = true })
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 30})
	m = updated.(Model)
	m, _ = press(m, "right", "j")
	if out := m.View(); !strings.Contains(out, "Front camera markers") {
		t.Errorf("expected topic description in details pane:\n%s", out)
	}
}
