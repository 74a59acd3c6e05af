package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/nodekey"
	"github.com/vanderheijden86/topictree/pkg/topictree"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.mode == modeForm && m.form != nil {
		return m.renderTitle() + "\n\n" + m.form.form.View()
	}

	width := m.width
	if width <= 0 {
		width = 80
	}
	treeWidth := width
	details := ""
	if m.showDetails && width >= detailsMinWidth {
		treeWidth = width * 3 / 5
		details = m.renderDetails(width - treeWidth - 2)
	}

	var sb strings.Builder
	sb.WriteString(m.renderTitle())
	sb.WriteString("\n")
	sb.WriteString(m.renderTree(treeWidth))

	body := sb.String()
	if details != "" {
		detailStyle := m.theme.Renderer.NewStyle().
			Border(lipgloss.RoundedBorder(), false, false, false, true).
			BorderForeground(m.theme.Border).
			PaddingLeft(1)
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, detailStyle.Render(details))
	}

	var footer strings.Builder
	switch m.mode {
	case modeFilter:
		footer.WriteString(m.filterInput.View())
		footer.WriteString("\n")
	case modeJump:
		footer.WriteString(m.jumpInput.View())
		footer.WriteString("\n")
		footer.WriteString(m.renderJumpMatches(width))
	}
	footer.WriteString(m.renderStatus())
	footer.WriteString("\n")
	if m.showHelp {
		m.help.ShowAll = true
	}
	footer.WriteString(m.help.View(m.keys))

	return body + "\n" + footer.String()
}

func (m Model) renderTitle() string {
	t := m.theme
	mode := m.view.State.DisplayModeOrDefault()
	info := fmt.Sprintf("%d topics · showing %s", m.view.Snapshot.TopicCount(), mode.Label())
	if f := strings.TrimSpace(m.filterText); f != "" {
		info += fmt.Sprintf(" · filter %q (%d)", f, m.view.Visibility.MatchCount())
	}
	return t.Header.Render("Topics") + " " + t.MutedText.Render(info)
}

func (m Model) renderTree(width int) string {
	t := m.theme
	if m.nav.Len() == 0 {
		return t.MutedText.Render(m.emptyMessage())
	}

	var sb strings.Builder
	sb.WriteString(renderColumnHeader(t, m.view.Tree.ColumnCount(), 2))
	sb.WriteString("\n")

	prefixes := treePrefixes(m.view.Rows)
	start, end := m.visibleRange()
	for i := start; i < end; i++ {
		row := m.nav.Row(i)
		selected := i == m.cursor
		line := renderRow(row, rowRender{
			theme:       t,
			prefix:      prefixes[i],
			selected:    selected,
			focusColumn: m.focus.Column,
			width:       width - 1,
			settings:    m.rowSettings(row),
		})
		if selected {
			line = t.Selected.Render(line)
		} else {
			line = " " + line
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if total := m.nav.Len(); total > end-start {
		indicator := fmt.Sprintf(" %d-%d of %d", start+1, end, total)
		sb.WriteString(t.MutedText.Render(indicator))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// rowSettings returns the settings shown for row: the base column first,
// then the feature column.
func (m Model) rowSettings(row topictree.Row) model.TopicSettings {
	for _, column := range m.view.Tree.Columns() {
		if s, ok := m.view.State.SettingsByKey[nodekey.ColumnKey(row.ID, column)]; ok {
			return s
		}
	}
	return model.TopicSettings{}
}

func (m Model) emptyMessage() string {
	switch {
	case strings.TrimSpace(m.filterText) != "":
		return fmt.Sprintf("No topics match %q. Press esc to clear the filter.", m.filterText)
	case m.view.State.DisplayModeOrDefault() != model.DisplayShowAll:
		return fmt.Sprintf("No %s topics. Press m to change what is shown.", m.view.State.DisplayModeOrDefault().Label())
	default:
		return "No topics configured or published."
	}
}

func (m Model) renderJumpMatches(width int) string {
	t := m.theme
	var sb strings.Builder
	for i, match := range m.jumpMatches {
		if i >= jumpListSize {
			break
		}
		line := fmt.Sprintf("%-9s %s", match.Kind, match.Text)
		if match.Path != "" {
			line += "  " + t.MutedText.Render(match.Path)
		}
		line = truncateRunesHelper(line, width-2, "…")
		if i == m.jumpIndex {
			sb.WriteString(t.PrimaryBold.Render("> " + line))
		} else {
			sb.WriteString("  " + line)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderStatus() string {
	if m.status == "" {
		return ""
	}
	if m.statusIsError {
		return m.theme.ErrorText.Render(m.status)
	}
	return m.theme.SecondaryText.Render(m.status)
}

func (m Model) renderDetails(width int) string {
	row, ok := m.currentRow()
	if !ok {
		return ""
	}
	md := describeRow(row, m.view.Tree, m.view.State)
	r := m.md
	if r == nil || m.mdWidth != width {
		r = newMarkdownRenderer(width)
	}
	return renderMarkdown(r, md)
}
