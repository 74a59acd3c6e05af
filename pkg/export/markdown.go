package export

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/vanderheijden86/topictree/pkg/topictree"
)

// RenderMarkdown writes the rows as a markdown checklist followed by a
// mermaid diagram of the same hierarchy. With a feature column each row
// carries one box per column.
func RenderMarkdown(w io.Writer, opts SnapshotOptions) error {
	if len(opts.Rows) == 0 {
		return fmt.Errorf("no rows to export")
	}
	layout := buildLayout(opts)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", layout.Summary.Title)
	for _, line := range headerLines(layout.Summary) {
		fmt.Fprintf(&sb, "*%s*  \n", line)
	}
	sb.WriteString("\n")

	for i, r := range opts.Rows {
		lr := layout.Rows[i]
		sb.WriteString(strings.Repeat("  ", r.Depth))
		sb.WriteString("- ")
		for c := 0; c < layout.Columns; c++ {
			switch {
			case lr.Checked[c]:
				sb.WriteString("[x] ")
			default:
				sb.WriteString("[ ] ")
			}
		}
		label := lr.Label
		if lr.Namespace {
			label = "_" + label + "_"
		}
		sb.WriteString(label)
		if lr.Detail != "" {
			fmt.Fprintf(&sb, " `%s`", lr.Detail)
		}
		if !anyBool(lr.Available) {
			sb.WriteString(" (unavailable)")
		}
		if len(r.SceneErrors) > 0 {
			fmt.Fprintf(&sb, " ⚠ %s", strings.Join(r.SceneErrors, "; "))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n```mermaid\n")
	sb.WriteString(GenerateMermaid(opts.Rows))
	sb.WriteString("```\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// GenerateMermaid renders the rows as a top-down mermaid flowchart. Rows in
// the scene are styled as selected.
func GenerateMermaid(rows []topictree.Row) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString("    classDef selected fill:#dbeafe,stroke:#3b82f6\n")
	sb.WriteString("    classDef unavailable fill:#f3f4f6,stroke:#aaaaaa,color:#888888\n")

	ids := make(map[string]string, len(rows))
	used := make(map[string]int, len(rows))
	for _, r := range rows {
		id := sanitizeMermaidID(r.ID)
		if n := used[id]; n > 0 {
			used[id] = n + 1
			id = fmt.Sprintf("%s_%d", id, n)
		} else {
			used[id] = 1
		}
		ids[r.ID] = id
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", id, sanitizeMermaidText(r.Label()))
	}
	for _, r := range rows {
		if parent, ok := ids[r.ParentID]; ok && r.ParentID != "" {
			fmt.Fprintf(&sb, "    %s --> %s\n", parent, ids[r.ID])
		}
	}
	for _, r := range rows {
		switch {
		case !anyBool(r.AvailableByColumn):
			fmt.Fprintf(&sb, "    class %s unavailable\n", ids[r.ID])
		case anyBool(r.VisibleInSceneByColumn):
			fmt.Fprintf(&sb, "    class %s selected\n", ids[r.ID])
		}
	}
	return sb.String()
}

func anyBool(values []bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}

// sanitizeMermaidID keeps letters, digits, hyphens and underscores.
func sanitizeMermaidID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			sb.WriteRune(r)
		case r == ':' || r == '/':
			sb.WriteRune('_')
		}
	}
	result := sb.String()
	if result == "" {
		return "node"
	}
	return result
}

// sanitizeMermaidText prepares text for use in mermaid node labels.
func sanitizeMermaidText(text string) string {
	replacer := strings.NewReplacer(
		"\"", "'",
		"[", "(",
		"]", ")",
		"{", "(",
		"}", ")",
		"<", "&lt;",
		">", "&gt;",
		"|", "/",
		"`", "'",
		"\n", " ",
		"\r", "",
	)
	result := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, replacer.Replace(text))
	return truncate(strings.TrimSpace(result), 40)
}
