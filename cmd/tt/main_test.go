package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/testutil"
	"github.com/vanderheijden86/topictree/pkg/version"
)

const testTree = `
name: root
children:
  - name: Group1
    children:
      - topicName: /foo
        name: Foo
        description: Front camera markers
      - name: Nested
        children:
          - topicName: /bar
  - topicName: /baz
`

const testTopics = `{"name":"/foo","datatype":"visualization_msgs/MarkerArray","namespaces":["cars","peds"]}
{"name":"/bar","datatype":"std_msgs/String"}
{"name":"/stray","datatype":"std_msgs/String"}
{"kind":"scene_error","topic":"/bar","message":"missing transform"}
`

type fixture struct {
	dir    string
	tree   string
	source string
	state  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("TT_SOURCE_DIR", "")
	sourceDir := filepath.Join(dir, "source")
	if err := os.MkdirAll(sourceDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return fixture{
		dir:    dir,
		tree:   testutil.WriteFile(t, dir, "tree.yaml", testTree),
		source: testutil.WriteFile(t, sourceDir, "topics.jsonl", testTopics),
		state:  filepath.Join(dir, "panels.json"),
	}
}

func (f fixture) args(args ...string) []string {
	return append([]string{
		"--tree-config", f.tree,
		"--topic-source", f.source,
		"--state", f.state,
		"--log-level", "error",
	}, args...)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("tt %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func lineWith(out, needle string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, needle) {
			return line
		}
	}
	return ""
}

func loadKeys(t *testing.T, f fixture) model.PanelState {
	t.Helper()
	var state model.PanelState
	if err := json.Unmarshal([]byte(mustRun(t, f.args("--json", "keys")...)), &state); err != nil {
		t.Fatalf("decoding keys output: %v", err)
	}
	return state
}

func TestTree_DefaultState(t *testing.T) {
	f := newFixture(t)
	out := mustRun(t, f.args("tree")...)

	for _, want := range []string{"Group1", "/baz", "(Uncategorized)"} {
		if !strings.Contains(out, want) {
			t.Errorf("tree output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Foo") {
		t.Errorf("collapsed group should hide its children:\n%s", out)
	}
	if line := lineWith(out, "(Uncategorized)"); !strings.Contains(line, "[x]") {
		t.Errorf("uncategorized group should be checked by default: %q", line)
	}
	if line := lineWith(out, "/baz"); !strings.Contains(line, "unavailable") {
		t.Errorf("/baz is not published and should be marked: %q", line)
	}
}

func TestTree_AllAndFilter(t *testing.T) {
	f := newFixture(t)
	out := mustRun(t, f.args("tree", "--all")...)
	for _, want := range []string{"Foo", "Nested", "/bar", "/stray", "⚠ 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expanded tree missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, f.args("tree", "--filter", "peds")...)
	if !strings.Contains(out, "peds") || strings.Contains(out, "/stray") {
		t.Errorf("filter should keep only the match and its ancestors:\n%s", out)
	}

	// --all does not persist expansion.
	if state := loadKeys(t, f); len(state.ExpandedKeys) != 0 {
		t.Errorf("tree --all should not save state, got %v", state.ExpandedKeys)
	}
}

func TestTree_JSON(t *testing.T) {
	f := newFixture(t)
	var rows []treeRow
	if err := json.Unmarshal([]byte(mustRun(t, f.args("--json", "tree")...)), &rows); err != nil {
		t.Fatalf("decoding tree output: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 top-level rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].Key != "name:Group1" || rows[0].Kind != "group" {
		t.Errorf("unexpected first row %+v", rows[0])
	}
	if rows[1].Topic != "/baz" || rows[1].Available[0] {
		t.Errorf("unexpected /baz row %+v", rows[1])
	}
}

func TestTree_DisplayModeFlag(t *testing.T) {
	f := newFixture(t)
	out := mustRun(t, f.args("--display-mode", "available", "tree")...)
	if strings.Contains(out, "/baz") {
		t.Errorf("unavailable topic shown in available mode:\n%s", out)
	}
	if !strings.Contains(out, "Group1") {
		t.Errorf("available group hidden:\n%s", out)
	}
}

func TestRoot_PrintsTreeWithoutTerminal(t *testing.T) {
	f := newFixture(t)
	var out bytes.Buffer
	a := newApp(&out, io.Discard)
	a.isTTY = func() bool { return false }
	cmd := a.command()
	cmd.SetArgs(f.args())
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Group1") {
		t.Errorf("bare command should print the tree when not on a terminal:\n%s", out.String())
	}
}

func TestToggle_PersistsAndFlips(t *testing.T) {
	f := newFixture(t)

	if out := mustRun(t, f.args("toggle", "/foo")...); strings.TrimSpace(out) != "t:/foo checked" {
		t.Errorf("unexpected toggle output %q", out)
	}
	testutil.AssertContainsKeys(t, loadKeys(t, f).CheckedKeys, "t:/foo")

	if out := mustRun(t, f.args("toggle", "t:/foo")...); strings.TrimSpace(out) != "t:/foo unchecked" {
		t.Errorf("unexpected second toggle output %q", out)
	}
	for _, k := range loadKeys(t, f).CheckedKeys {
		if k == "t:/foo" {
			t.Error("t:/foo should be unchecked after the second toggle")
		}
	}
}

func TestToggle_Errors(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown topic", []string{"toggle", "/nope"}, "no topic"},
		{"unknown group", []string{"toggle", "Nobody"}, "no group"},
		{"unknown key", []string{"toggle", "t:/nope"}, "no node"},
		{"feature column missing", []string{"toggle", "--column", "1", "/foo"}, "out of range"},
		{"namespace on group", []string{"toggle-namespace", "Group1", "cars"}, "not a topic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, f.args(tt.args...)...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestToggleNamespace_LeavesDefaultMode(t *testing.T) {
	f := newFixture(t)
	out := mustRun(t, f.args("toggle-namespace", "/foo", "cars")...)
	if strings.TrimSpace(out) != "ns:/foo:cars unchecked" {
		t.Errorf("unexpected output %q", out)
	}
	state := loadKeys(t, f)
	testutil.AssertKeys(t, state.ModifiedNamespaceTopics, []string{"/foo"})
	testutil.AssertContainsKeys(t, state.CheckedKeys, "ns:/foo:peds")
	for _, k := range state.CheckedKeys {
		if k == "ns:/foo:cars" {
			t.Error("cars should be unchecked")
		}
	}
}

func TestToggleDescendants_Group(t *testing.T) {
	f := newFixture(t)
	mustRun(t, f.args("toggle-descendants", "Group1")...)
	testutil.AssertContainsKeys(t, loadKeys(t, f).CheckedKeys,
		"name:Group1", "t:/foo", "name:Nested", "t:/bar", "ns:/foo:cars", "ns:/foo:peds")

	out := mustRun(t, f.args("keys", "--selected")...)
	for _, want := range []string{"/foo", "/bar"} {
		if !strings.Contains(out, want) {
			t.Errorf("selected topics missing %q:\n%s", want, out)
		}
	}
}

func TestToggleAncestors_Topic(t *testing.T) {
	f := newFixture(t)
	mustRun(t, f.args("toggle-ancestors", "/bar")...)
	testutil.AssertContainsKeys(t, loadKeys(t, f).CheckedKeys, "name:Group1", "name:Nested", "t:/bar")
}

func TestKeys_Text(t *testing.T) {
	f := newFixture(t)
	out := mustRun(t, f.args("keys")...)
	for _, want := range []string{"Panel default, display mode all", "Checked (1):", "name:(Uncategorized)", "Expanded (0):"} {
		if !strings.Contains(out, want) {
			t.Errorf("keys output missing %q:\n%s", want, out)
		}
	}
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	out := mustRun(t, f.args("search", "peds")...)
	if line := lineWith(out, "peds"); !strings.Contains(line, "namespace") {
		t.Errorf("expected a namespace match for peds:\n%s", out)
	}

	var results []searchResult
	if err := json.Unmarshal([]byte(mustRun(t, f.args("--json", "search", "--mode", "substring", "ba")...)), &results); err != nil {
		t.Fatalf("decoding search output: %v", err)
	}
	var texts []string
	for _, r := range results {
		texts = append(texts, r.Text)
	}
	testutil.AssertContainsKeys(t, texts, "/bar", "/baz")

	if _, err := run(t, f.args("search", "--mode", "regex", "x")...); err == nil {
		t.Error("expected an error for an unknown search mode")
	}
}

func TestExport_Markdown(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.dir, "out", "topics.md")
	out := mustRun(t, f.args("export", "--all", "-o", path)...)
	if !strings.Contains(out, "(md)") {
		t.Errorf("unexpected export output %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("export file missing: %v", err)
	}
	for _, want := range []string{"Group1", "Foo", "[x]"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("markdown export missing %q", want)
		}
	}

	if _, err := run(t, f.args("export", "--format", "gif")...); err == nil {
		t.Error("expected an error for an unsupported format")
	}
}

func TestSources_List(t *testing.T) {
	f := newFixture(t)
	out := mustRun(t, f.args("sources", "list")...)
	line := lineWith(out, "topics.jsonl")
	if !strings.Contains(line, "jsonl") || !strings.Contains(line, "valid") {
		t.Errorf("unexpected sources listing:\n%s", out)
	}
	out = mustRun(t, f.args("sources", "diff")...)
	if !strings.Contains(out, "All 1 sources agree.") {
		t.Errorf("unexpected diff output %q", out)
	}
}

func TestConfig_FlagOverridesFile(t *testing.T) {
	f := newFixture(t)
	cfgPath := testutil.WriteFile(t, f.dir, "config.yaml", "panel_id: from-file\n")

	out := mustRun(t, f.args("--config", cfgPath, "keys")...)
	if !strings.Contains(out, "Panel from-file") {
		t.Errorf("config file panel ignored:\n%s", out)
	}
	out = mustRun(t, f.args("--config", cfgPath, "--panel", "from-flag", "keys")...)
	if !strings.Contains(out, "Panel from-flag") {
		t.Errorf("flag should override the config file:\n%s", out)
	}

	if _, err := run(t, f.args("--display-mode", "sideways", "tree")...); err == nil {
		t.Error("expected a validation error for a bad display mode")
	}
}

func TestPanelsAreIndependent(t *testing.T) {
	f := newFixture(t)
	mustRun(t, f.args("--panel", "a", "toggle", "/foo")...)
	out := mustRun(t, f.args("--panel", "b", "keys")...)
	if strings.Contains(out, "t:/foo") {
		t.Errorf("panel b should not see panel a's selection:\n%s", out)
	}
}

func TestVersion(t *testing.T) {
	out := mustRun(t, "--version")
	if !strings.Contains(out, version.Version) {
		t.Errorf("version output %q missing %s", out, version.Version)
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	err := writeTable(&buf, []string{"KIND", "NAME"}, [][]string{{"topic", "/foo"}, {"namespace", "日本"}})
	if err != nil {
		t.Fatal(err)
	}
	want := "KIND       NAME\ntopic      /foo\nnamespace  日本\n"
	if buf.String() != want {
		t.Errorf("writeTable =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestExport_Hooks(t *testing.T) {
	f := newFixture(t)
	marker := filepath.Join(f.dir, "marker")
	testutil.WriteFile(t, filepath.Dir(f.source), "hooks.yaml", `
hooks:
  post-export:
    - name: record
      command: echo "$TT_EXPORT_FORMAT $TT_PANEL_ID" > "$MARKER"
      env:
        MARKER: `+marker+`
`)
	mustRun(t, f.args("export", "-o", filepath.Join(f.dir, "topics.svg"))...)
	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("post-export hook did not run: %v", err)
	}
	if strings.TrimSpace(string(data)) != "svg default" {
		t.Errorf("hook saw %q", data)
	}

	blocker := testutil.WriteFile(t, f.dir, "block.yaml", "hooks:\n  pre-export:\n    - name: gate\n      command: exit 1\n")
	out := filepath.Join(f.dir, "blocked.svg")
	if _, err := run(t, f.args("export", "--hooks", blocker, "-o", out)...); err == nil || !strings.Contains(err.Error(), "export cancelled") {
		t.Fatalf("failing pre-export hook should cancel the export, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("cancelled export should not write the file")
	}
	mustRun(t, f.args("export", "--hooks", blocker, "--no-hooks", "-o", out)...)
}
