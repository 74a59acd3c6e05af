// Package ui is the terminal topic tree panel built on bubbletea.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/vanderheijden86/topictree/pkg/debounce"
	"github.com/vanderheijden86/topictree/pkg/keynav"
	"github.com/vanderheijden86/topictree/pkg/logging"
	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/nodekey"
	"github.com/vanderheijden86/topictree/pkg/panelstate"
	"github.com/vanderheijden86/topictree/pkg/search"
	"github.com/vanderheijden86/topictree/pkg/topictree"
	"github.com/vanderheijden86/topictree/pkg/watcher"
)

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

func logger() *zerolog.Logger {
	l := logging.Component("ui")
	return &l
}

// inputMode is what receives key presses.
type inputMode int

const (
	modeTree inputMode = iota
	modeFilter
	modeJump
	modeForm
)

// Layout constants.
const (
	detailsMinWidth = 100
	jumpListSize    = 5
	defaultHeight   = 24
)

// Options configures NewModel.
type Options struct {
	Config             *model.ConfigNode
	Snapshot           *model.SourceSnapshot
	State              model.PanelState
	PanelID            string
	Store              panelstate.Store
	UncategorizedGroup string
	FilterDebounce     time.Duration
	Watcher            *watcher.Watcher
	Reload             ReloadFunc
	Theme              string
	ShowDetails        bool
	Search             search.Config
	// Renderer defaults to the lipgloss default renderer.
	Renderer *lipgloss.Renderer
}

// Model is the topic tree panel.
type Model struct {
	opts  Options
	theme Theme
	keys  keyMap
	help  help.Model

	view   *topictree.View
	nav    *keynav.Navigator
	focus  keynav.Focus
	cursor int
	offset int

	width  int
	height int
	ready  bool

	mode        inputMode
	filterInput textinput.Model
	filterText  string
	filterSched *debounce.Scheduler[string]
	filterCh    chan string

	jumpInput   textinput.Model
	jumpMatches []search.Match
	jumpIndex   int

	form        *settingsForm
	md          *glamour.TermRenderer
	mdWidth     int
	showDetails bool
	showHelp    bool

	status        string
	statusIsError bool
}

// NewModel builds the panel from the loaded inputs.
func NewModel(opts Options) (Model, error) {
	if opts.UncategorizedGroup == "" {
		opts.UncategorizedGroup = topictree.DefaultUncategorizedGroupName
	}
	if opts.Search.Mode == "" {
		opts.Search.Mode = search.ModeFuzzy
	}
	if opts.Search.Limit == 0 {
		opts.Search.Limit = search.DefaultLimit
	}
	r := opts.Renderer
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}

	view, err := topictree.NewView(topictree.ViewInput{
		Config:             opts.Config,
		Snapshot:           opts.Snapshot,
		State:              opts.State,
		UncategorizedGroup: opts.UncategorizedGroup,
	})
	if err != nil {
		return Model{}, fmt.Errorf("building panel: %w", err)
	}

	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "filter topics and namespaces"
	filter.CharLimit = 256

	jump := textinput.New()
	jump.Prompt = "jump> "
	jump.Placeholder = "fuzzy find"
	jump.CharLimit = 256

	ch := make(chan string, 1)
	m := Model{
		opts:        opts,
		theme:       ThemeFor(r, opts.Theme),
		keys:        defaultKeyMap(),
		help:        help.New(),
		view:        view,
		filterInput: filter,
		jumpInput:   jump,
		filterCh:    ch,
		showDetails: opts.ShowDetails,
	}
	if opts.FilterDebounce > 0 {
		m.filterSched = debounce.NewScheduler(opts.FilterDebounce, func(text string) {
			offerLatest(ch, text)
		})
	}
	m.rebuildNav()
	return m, nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForFilterCmd(m.filterCh), WatchFileCmd(m.opts.Watcher))
}

// PanelView returns the current derived panel view.
func (m Model) PanelView() *topictree.View { return m.view }

// State returns the current panel state.
func (m Model) State() model.PanelState { return m.view.State }

// Focus returns the keyboard focus.
func (m Model) Focus() keynav.Focus { return m.focus }

// FilterText returns the applied filter.
func (m Model) FilterText() string { return m.filterText }

// Status returns the status line text.
func (m Model) Status() string { return m.status }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		if w := msg.Width - msg.Width*3/5 - 2; msg.Width >= detailsMinWidth && w != m.mdWidth {
			m.mdWidth = w
			m.md = newMarkdownRenderer(w)
		}
		m.ensureCursorVisible()
		if m.form != nil {
			return m.updateForm(msg)
		}
		return m, nil

	case filterAppliedMsg:
		m.applyFilter(msg.text)
		return m, waitForFilterCmd(m.filterCh)

	case FileChangedMsg:
		logger().Debug().Strs("paths", msg.Paths).Msg("files changed")
		m.setStatus("Reloading…", false)
		return m, tea.Batch(ReloadCmd(m.opts.Reload), WatchFileCmd(m.opts.Watcher))

	case ReloadedMsg:
		m.applyReload(msg)
		return m, nil

	case stateSavedMsg:
		if msg.err != nil {
			logger().Error().Err(msg.err).Str("panel", m.opts.PanelID).Msg("saving panel state")
			m.setStatus(fmt.Sprintf("❌ Saving state: %v", msg.err), true)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeForm:
			if msg.String() == "esc" {
				m.closeForm("Cancelled")
				return m, nil
			}
			return m.updateForm(msg)
		case modeFilter:
			return m.updateFilter(msg)
		case modeJump:
			return m.updateJump(msg)
		}
		return m.updateTree(msg)
	}

	if m.mode == modeForm && m.form != nil {
		return m.updateForm(msg)
	}
	return m, nil
}

func (m Model) updateTree(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if op, ok := m.keys.operation(msg); ok {
		return m.dispatch(op)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.filterSched != nil {
			m.filterSched.Cancel()
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.Filter):
		m.mode = modeFilter
		m.filterInput.SetValue(m.filterText)
		m.filterInput.CursorEnd()
		return m, m.filterInput.Focus()
	case key.Matches(msg, m.keys.Jump):
		m.mode = modeJump
		m.jumpInput.SetValue("")
		m.jumpMatches = nil
		m.jumpIndex = 0
		return m, m.jumpInput.Focus()
	case key.Matches(msg, m.keys.DisplayMode):
		next := m.view.State.DisplayModeOrDefault().Next()
		return m.commit(m.view.Editor.SetDisplayMode(m.view.State, next), "Showing "+next.Label()+" topics")
	case key.Matches(msg, m.keys.ExpandAll):
		return m.commit(m.view.Editor.ExpandAll(m.view.State), "")
	case key.Matches(msg, m.keys.CollapseAll):
		return m.commit(m.view.Editor.CollapseAll(m.view.State), "")
	case key.Matches(msg, m.keys.Settings):
		return m.openForm()
	case key.Matches(msg, m.keys.ClearSet):
		row, ok := m.currentRow()
		if !ok {
			return m, nil
		}
		return m.commit(m.view.Editor.ClearNodeSettings(m.view.State, m.settingsKey(row)), "Cleared override")
	case key.Matches(msg, m.keys.Copy):
		m.copyTopic()
	case key.Matches(msg, m.keys.Details):
		m.showDetails = !m.showDetails
	case key.Matches(msg, m.keys.Reload):
		if m.opts.Reload == nil {
			return m, nil
		}
		m.setStatus("Reloading…", false)
		return m, ReloadCmd(m.opts.Reload)
	case msg.String() == "esc":
		if m.filterText != "" {
			m.filterInput.SetValue("")
			m.applyFilter("")
		}
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.mode = modeTree
		m.filterInput.Blur()
		if m.filterSched != nil {
			m.filterSched.Cancel()
		}
		m.applyFilter(m.filterInput.Value())
		return m, nil
	case "esc":
		m.mode = modeTree
		m.filterInput.Blur()
		m.filterInput.SetValue("")
		if m.filterSched != nil {
			m.filterSched.Cancel()
		}
		m.applyFilter("")
		return m, nil
	}

	before := m.filterInput.Value()
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	if text := m.filterInput.Value(); text != before {
		if m.filterSched != nil {
			m.filterSched.Schedule(text)
		} else {
			m.applyFilter(text)
		}
	}
	return m, cmd
}

func (m Model) updateJump(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeTree
		m.jumpInput.Blur()
		m.jumpMatches = nil
		return m, nil
	case "enter":
		m.mode = modeTree
		m.jumpInput.Blur()
		if len(m.jumpMatches) == 0 {
			return m, nil
		}
		match := m.jumpMatches[m.jumpIndex]
		m.jumpMatches = nil
		return m.jumpTo(match)
	case "down", "ctrl+n", "tab":
		if len(m.jumpMatches) > 0 {
			m.jumpIndex = (m.jumpIndex + 1) % len(m.jumpMatches)
		}
		return m, nil
	case "up", "ctrl+p", "shift+tab":
		if len(m.jumpMatches) > 0 {
			m.jumpIndex = (m.jumpIndex - 1 + len(m.jumpMatches)) % len(m.jumpMatches)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.jumpInput, cmd = m.jumpInput.Update(msg)
	m.jumpMatches = search.FindWith(m.view.Tree, m.view.Snapshot.NamespacesByTopic, m.jumpInput.Value(), m.opts.Search)
	m.jumpIndex = 0
	return m, cmd
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.form == nil {
		m.mode = modeTree
		return m, nil
	}
	fm, cmd := m.form.form.Update(msg)
	if f, ok := fm.(*huh.Form); ok {
		m.form.form = f
	}
	switch m.form.form.State {
	case huh.StateCompleted:
		return m.applyForm()
	case huh.StateAborted:
		m.closeForm("Cancelled")
		return m, nil
	}
	return m, cmd
}

// dispatch runs a keyboard operation at the focus.
func (m Model) dispatch(op keynav.Operation) (tea.Model, tea.Cmd) {
	res, err := m.nav.Dispatch(op, m.focus, keynav.Env{
		Editor:  m.view.Editor,
		State:   m.view.State,
		Columns: m.view.Tree.ColumnCount(),
	})
	if err != nil {
		logger().Warn().Err(err).Str("op", op.String()).Str("focus", m.focus.ID()).Msg("keyboard operation failed")
		m.setStatus(err.Error(), true)
		m.rebuildNav()
		return m, nil
	}
	m.focus = res.Focus
	if res.Changed {
		return m.commit(res.State, "")
	}
	m.syncCursor()
	return m, nil
}

// commit re-derives the view for state and persists it.
func (m Model) commit(state model.PanelState, status string) (tea.Model, tea.Cmd) {
	if !m.rederive(state) {
		return m, nil
	}
	if status != "" {
		m.setStatus(status, false)
	}
	return m, saveStateCmd(m.opts.Store, m.opts.PanelID, m.view.State)
}

func (m *Model) rederive(state model.PanelState) bool {
	next, err := m.view.WithState(state, m.filterText)
	if err != nil {
		logger().Error().Err(err).Msg("deriving panel")
		m.setStatus(fmt.Sprintf("❌ %v", err), true)
		return false
	}
	m.view = next
	m.rebuildNav()
	return true
}

func (m *Model) applyFilter(text string) {
	m.filterText = text
	if !m.rederive(m.view.State) {
		return
	}
	if strings.TrimSpace(text) == "" {
		m.setStatus("", false)
		return
	}
	m.setStatus(fmt.Sprintf("%d matches", m.view.Visibility.MatchCount()), false)
}

func (m *Model) applyReload(msg ReloadedMsg) {
	if msg.Err != nil {
		logger().Warn().Err(msg.Err).Msg("reload failed")
		m.setStatus(fmt.Sprintf("❌ Reload failed: %v", msg.Err), true)
		return
	}
	cfg := msg.Config
	if cfg == nil {
		cfg = m.opts.Config
	}
	view, err := topictree.NewView(topictree.ViewInput{
		Config:             cfg,
		Snapshot:           msg.Snapshot,
		State:              m.view.State,
		FilterText:         m.filterText,
		UncategorizedGroup: m.opts.UncategorizedGroup,
	})
	if err != nil {
		logger().Warn().Err(err).Msg("rebuilding tree after reload")
		m.setStatus(fmt.Sprintf("❌ Reload failed: %v", err), true)
		return
	}
	m.opts.Config = cfg
	m.opts.Snapshot = msg.Snapshot
	m.view = view
	m.rebuildNav()
	m.setStatus(fmt.Sprintf("Reloaded %d topics", msg.Snapshot.TopicCount()), false)
}

// jumpTo expands the path to a search match and focuses it.
func (m Model) jumpTo(match search.Match) (tea.Model, tea.Cmd) {
	state := m.view.State
	target := match.Key
	if match.Kind == search.KindNamespace {
		parsed, err := nodekey.Parse(match.Key)
		if err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		topicKey := nodekey.TopicKey(parsed.TopicName, model.BaseColumn)
		state = m.view.Editor.ExpandToNode(state, topicKey)
		state = m.view.Editor.SetExpanded(state, topicKey, true)
	} else {
		state = m.view.Editor.ExpandToNode(state, target)
	}

	next, cmd := m.commit(state, "")
	nm := next.(Model)
	for i := 0; i < nm.nav.Len(); i++ {
		if nm.nav.Row(i).ID == target {
			nm.focus = nm.nav.FocusAt(i, nm.focus.Column)
			nm.syncCursor()
			return nm, cmd
		}
	}
	nm.setStatus(fmt.Sprintf("%s is hidden by the filter or display mode", match.Text), true)
	return nm, cmd
}

func (m Model) openForm() (tea.Model, tea.Cmd) {
	row, ok := m.currentRow()
	if !ok {
		return m, nil
	}
	key := m.settingsKey(row)
	m.form = newSettingsForm(key, row.Label(), m.view.State.SettingsByKey[key])
	m.mode = modeForm
	return m, m.form.form.Init()
}

func (m Model) applyForm() (tea.Model, tea.Cmd) {
	key := m.form.key
	settings := m.form.settings(m.view.State.SettingsByKey[key])
	m.form = nil
	m.mode = modeTree
	return m.commit(m.view.Editor.SetNodeSettings(m.view.State, key, settings), "Updated override")
}

func (m *Model) closeForm(status string) {
	m.form = nil
	m.mode = modeTree
	m.setStatus(status, false)
}

// settingsKey is the column key settings are stored under for row.
func (m Model) settingsKey(row topictree.Row) string {
	return nodekey.ColumnKey(row.ID, m.focus.Column)
}

func (m *Model) copyTopic() {
	row, ok := m.currentRow()
	if !ok {
		return
	}
	var text string
	switch {
	case row.Kind == topictree.RowNamespace:
		text = row.Namespace.Namespace
	case row.Node.IsTopic():
		text = nodekey.ColumnTopic(row.Node.TopicName, m.focus.Column)
	default:
		m.setStatus("Groups have no topic name", true)
		return
	}
	if err := writeClipboard(text); err != nil {
		m.setStatus(fmt.Sprintf("❌ Clipboard error: %v", err), true)
		return
	}
	m.setStatus(fmt.Sprintf("📋 Copied %s to clipboard", text), false)
}

func (m *Model) setStatus(s string, isError bool) {
	m.status = s
	m.statusIsError = isError
}

func (m Model) currentRow() (topictree.Row, bool) {
	if m.nav == nil || m.nav.Len() == 0 {
		return topictree.Row{}, false
	}
	return m.nav.Row(m.cursor), true
}

// rebuildNav re-indexes the rows and keeps the focus on the same row ID, or
// the nearest row when it disappeared.
func (m *Model) rebuildNav() {
	m.nav = keynav.NewNavigator(m.view.Rows)
	m.focus = m.nav.Refocus(m.focus, m.cursor)
	columns := m.view.Tree.ColumnCount()
	if m.focus.Column >= columns {
		m.focus.Column = columns - 1
	}
	m.syncCursor()
}

func (m *Model) syncCursor() {
	if i, err := m.nav.Index(m.focus); err == nil {
		m.cursor = i
	} else {
		m.cursor = 0
	}
	m.ensureCursorVisible()
}

func (m Model) effectiveVisibleCount() int {
	h := m.height
	if h <= 0 {
		h = defaultHeight
	}
	chrome := 4 // title, column header, status, help
	if m.mode == modeFilter || m.mode == modeJump {
		chrome++
	}
	if m.mode == modeJump {
		chrome += min(len(m.jumpMatches), jumpListSize)
	}
	return max(1, h-chrome)
}

func (m *Model) ensureCursorVisible() {
	if m.nav == nil || m.nav.Len() == 0 {
		m.offset = 0
		return
	}
	visible := m.effectiveVisibleCount()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	maxOffset := max(0, m.nav.Len()-visible)
	m.offset = min(max(m.offset, 0), maxOffset)
}

func (m Model) visibleRange() (start, end int) {
	total := m.nav.Len()
	if total == 0 {
		return 0, 0
	}
	visible := m.effectiveVisibleCount()
	start = max(m.offset, 0)
	end = start + visible
	if end > total {
		end = total
		start = max(0, end-visible)
	}
	return start, end
}
