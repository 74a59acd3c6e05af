package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/topictree"
)

// describeRow builds the markdown shown in the details pane.
func describeRow(row topictree.Row, tree *topictree.Tree, state model.PanelState) string {
	var sb strings.Builder
	node := row.Node
	if row.Kind == topictree.RowNamespace && row.Namespace != nil {
		fmt.Fprintf(&sb, "## %s\n\n", row.Namespace.Namespace)
		fmt.Fprintf(&sb, "Namespace of `%s`\n\n", row.Namespace.TopicName)
	} else {
		fmt.Fprintf(&sb, "## %s\n\n", row.Label())
		if node.IsTopic() {
			fmt.Fprintf(&sb, "- **Topic:** `%s`\n", node.TopicName)
			if node.Datatype != "" {
				fmt.Fprintf(&sb, "- **Type:** `%s`\n", node.Datatype)
			}
		} else {
			fmt.Fprintf(&sb, "- **Group:** %d children\n", len(node.Children))
		}
		if tree != nil {
			fmt.Fprintf(&sb, "- **Path:** %s\n", tree.Path(node))
		}
	}
	fmt.Fprintf(&sb, "- **Key:** `%s`\n", row.ID)

	for col := range row.CheckedByColumn {
		fmt.Fprintf(&sb, "- **Column %d:** %s, %s, %s\n", col,
			yesNo(row.CheckedByColumn[col], "checked", "unchecked"),
			yesNo(col < len(row.AvailableByColumn) && row.AvailableByColumn[col], "available", "unavailable"),
			yesNo(col < len(row.VisibleInSceneByColumn) && row.VisibleInSceneByColumn[col], "in scene", "not in scene"))
	}
	if s, ok := state.SettingsByKey[row.ID]; ok && s.OverrideColor != "" {
		fmt.Fprintf(&sb, "- **Color:** `%s`\n", s.OverrideColor)
	}

	if row.Kind == topictree.RowNode && node.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(node.Description)
		sb.WriteString("\n")
	}
	if len(row.SceneErrors) > 0 {
		sb.WriteString("\n### Errors\n\n")
		for _, msg := range row.SceneErrors {
			fmt.Fprintf(&sb, "- %s\n", msg)
		}
	}
	return sb.String()
}

func yesNo(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}

// newMarkdownRenderer creates the details renderer; nil when glamour cannot
// build a style, in which case the raw markdown is shown.
func newMarkdownRenderer(width int) *glamour.TermRenderer {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		logger().Debug().Err(err).Msg("markdown renderer unavailable")
		return nil
	}
	return r
}

func renderMarkdown(r *glamour.TermRenderer, md string) string {
	if r == nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
