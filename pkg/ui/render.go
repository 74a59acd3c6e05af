package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/topictree"
)

// Tree drawing characters.
const (
	branchMid  = "├── "
	branchLast = "└── "
	pipeCont   = "│   "
	pipeNone   = "    "

	indicatorOpen   = "▾"
	indicatorClosed = "▸"
	indicatorLeaf   = "•"

	sceneMarker      = "●"
	settingsMark     = "✎"
	errorMark        = "⚠"
	swatchMark       = "■"
	checkedBox       = "[x]"
	uncheckedBox     = "[ ]"
	columnLabelW     = 3
	minLabelWidth    = 12
	minDatatypeWidth = 8
)

// treePrefixes computes the branch prefix of every row. Root children
// (depth 0) get no prefix.
func treePrefixes(rows []topictree.Row) []string {
	last := make([]bool, len(rows))
	var open []bool
	for i := len(rows) - 1; i >= 0; i-- {
		d := rows[i].Depth
		for len(open) <= d {
			open = append(open, false)
		}
		last[i] = !open[d]
		open[d] = true
		for k := d + 1; k < len(open); k++ {
			open[k] = false
		}
	}

	prefixes := make([]string, len(rows))
	var ancestorLast []bool
	for i, r := range rows {
		d := r.Depth
		for len(ancestorLast) <= d {
			ancestorLast = append(ancestorLast, false)
		}
		var sb strings.Builder
		for a := 1; a < d; a++ {
			if ancestorLast[a] {
				sb.WriteString(pipeNone)
			} else {
				sb.WriteString(pipeCont)
			}
		}
		if d > 0 {
			if last[i] {
				sb.WriteString(branchLast)
			} else {
				sb.WriteString(branchMid)
			}
		}
		ancestorLast[d] = last[i]
		prefixes[i] = sb.String()
	}
	return prefixes
}

func expandIndicator(r topictree.Row) string {
	switch {
	case !r.HasChildren:
		return indicatorLeaf
	case r.Expanded:
		return indicatorOpen
	default:
		return indicatorClosed
	}
}

// rowRender carries what renderRow needs besides the row itself.
type rowRender struct {
	theme       Theme
	prefix      string
	selected    bool
	focusColumn int
	width       int
	settings    model.TopicSettings
}

// renderRow renders one panel line: prefix, indicator, one checkbox per
// column, the in-scene marker, the label, and the datatype on the right.
func renderRow(row topictree.Row, rr rowRender) string {
	t := rr.theme
	width := rr.width
	if width <= 0 {
		width = 80
	}
	// Reduce width by 1 to prevent terminal wrapping on the exact edge
	width--

	var left strings.Builder
	left.WriteString(t.MutedText.Render(rr.prefix))
	left.WriteString(t.SecondaryText.Render(expandIndicator(row)))
	left.WriteString(" ")

	for col := range row.CheckedByColumn {
		box := uncheckedBox
		style := t.Base
		if row.CheckedByColumn[col] {
			box = checkedBox
			style = t.CheckedText
		}
		if col >= len(row.AvailableByColumn) || !row.AvailableByColumn[col] {
			style = t.MutedText
		}
		if rr.selected && col == rr.focusColumn {
			style = t.FocusColumn
		}
		left.WriteString(style.Render(box))
		left.WriteString(" ")
	}

	marker := " "
	if anyTrue(row.VisibleInSceneByColumn) {
		marker = t.InSceneText.Render(sceneMarker)
	}
	left.WriteString(marker)
	left.WriteString(" ")

	var suffix strings.Builder
	if c := rr.settings.OverrideColor; c != "" {
		suffix.WriteString(" ")
		suffix.WriteString(t.SwatchStyle(c).Render(swatchMark))
	}
	if row.HasCustomSettings {
		suffix.WriteString(" ")
		suffix.WriteString(t.SecondaryText.Render(settingsMark))
	}
	if n := len(row.SceneErrors); n > 0 {
		suffix.WriteString(" ")
		suffix.WriteString(t.ErrorText.Render(fmt.Sprintf("%s %d", errorMark, n)))
	}

	fixed := lipgloss.Width(left.String()) + lipgloss.Width(suffix.String())

	// The label shrinks before the datatype does, down to minLabelWidth.
	right := ""
	rightWidth := 0
	if width > 60 && row.Kind == topictree.RowNode && row.Node != nil && row.Node.Datatype != "" {
		budget := width - fixed - min(lipgloss.Width(row.Label()), minLabelWidth) - 1
		if budget >= minDatatypeWidth {
			right = t.MutedText.Render(truncateRunesHelper(row.Node.Datatype, budget, "…"))
			rightWidth = lipgloss.Width(right) + 1
		}
	}

	labelWidth := width - fixed - rightWidth
	if labelWidth < 5 {
		labelWidth = 5
	}
	label := truncateRunesHelper(row.Label(), labelWidth, "…")
	labelStyle := t.Base
	switch {
	case row.Matched:
		labelStyle = t.MatchText
	case !anyTrue(row.AvailableByColumn):
		labelStyle = t.MutedText
	case row.Kind == topictree.RowNamespace:
		labelStyle = t.SecondaryText
	}
	if rr.selected {
		labelStyle = labelStyle.Bold(true)
	}

	line := left.String() + labelStyle.Render(label) + suffix.String()
	if right != "" {
		gap := width - lipgloss.Width(line) - lipgloss.Width(right)
		if gap < 1 {
			gap = 1
		}
		line += strings.Repeat(" ", gap) + right
	}
	return line
}

// renderColumnHeader labels the checkbox columns above the rows.
func renderColumnHeader(t Theme, columns int, indent int) string {
	labels := []string{"src", "ft"}
	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", indent))
	for col := 0; col < columns && col < len(labels); col++ {
		sb.WriteString(padRight(labels[col], columnLabelW))
		sb.WriteString(" ")
	}
	return t.MutedText.Render(sb.String())
}

func anyTrue(values []bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}
