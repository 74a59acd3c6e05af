package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/topictree/pkg/topictree"
)

type treeOptions struct {
	all    bool
	filter string
}

func (a *app) newTreeCmd() *cobra.Command {
	var opts treeOptions
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the topic tree with its checkboxes",
		Long: `Print the rows the panel would show: one checkbox per column
(base, then feature), a scene marker for topics visible in the scene and
the error count reported for the topic.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTree(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.all, "all", "a", false, "expand every group without saving it")
	cmd.Flags().StringVarP(&opts.filter, "filter", "f", "", "show only rows matching the filter and their ancestors")
	return cmd
}

// treeRow is the JSON shape of one printed row.
type treeRow struct {
	Key       string   `json:"key"`
	Kind      string   `json:"kind"`
	Depth     int      `json:"depth"`
	Label     string   `json:"label"`
	Topic     string   `json:"topic,omitempty"`
	Datatype  string   `json:"datatype,omitempty"`
	Checked   []bool   `json:"checked"`
	Available []bool   `json:"available"`
	InScene   []bool   `json:"inScene"`
	Errors    []string `json:"errors,omitempty"`
}

func (a *app) runTree(ctx context.Context, opts treeOptions) error {
	in, err := a.load(ctx)
	if err != nil {
		return err
	}
	defer in.Close()

	v, err := a.view(in, in.State, opts.filter)
	if err != nil {
		return err
	}
	if opts.all {
		if v, err = v.WithState(v.Editor.ExpandAll(v.State), opts.filter); err != nil {
			return err
		}
	}

	if a.jsonOutput {
		rows := make([]treeRow, 0, len(v.Rows))
		for _, r := range v.Rows {
			rows = append(rows, newTreeRow(r))
		}
		return writeJSON(a.out, rows)
	}
	return printRows(a.out, v.Rows)
}

func newTreeRow(r topictree.Row) treeRow {
	out := treeRow{
		Key:       r.ID,
		Kind:      rowKind(r),
		Depth:     r.Depth,
		Label:     r.Label(),
		Checked:   r.CheckedByColumn,
		Available: r.AvailableByColumn,
		InScene:   r.VisibleInSceneByColumn,
		Errors:    r.SceneErrors,
	}
	if r.Kind == topictree.RowNode && r.Node.IsTopic() {
		out.Topic = r.Node.TopicName
		out.Datatype = r.Node.Datatype
	}
	return out
}

func rowKind(r topictree.Row) string {
	switch {
	case r.Kind == topictree.RowNamespace:
		return "namespace"
	case r.Node.IsTopic():
		return "topic"
	}
	return "group"
}

// printRows writes one indented line per row.
func printRows(out io.Writer, rows []topictree.Row) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(out, "No topics to show.")
		return err
	}
	var sb strings.Builder
	for _, r := range rows {
		sb.WriteString(strings.Repeat("  ", r.Depth))
		switch {
		case r.HasChildren && r.Expanded:
			sb.WriteString("▾ ")
		case r.HasChildren:
			sb.WriteString("▸ ")
		default:
			sb.WriteString("  ")
		}
		for c, checked := range r.CheckedByColumn {
			switch {
			case checked:
				sb.WriteString("[x]")
			case !r.AvailableByColumn[c]:
				sb.WriteString("[-]")
			default:
				sb.WriteString("[ ]")
			}
			sb.WriteString(" ")
		}
		if anyTrue(r.VisibleInSceneByColumn) {
			sb.WriteString("● ")
		}
		sb.WriteString(r.Label())
		if r.Kind == topictree.RowNode && r.Node.IsTopic() {
			if r.Node.Datatype != "" {
				fmt.Fprintf(&sb, "  (%s)", r.Node.Datatype)
			}
			if !anyTrue(r.AvailableByColumn) {
				sb.WriteString("  unavailable")
			}
		}
		if n := len(r.SceneErrors); n > 0 {
			fmt.Fprintf(&sb, "  ⚠ %d", n)
		}
		sb.WriteString("\n")
	}
	_, err := io.WriteString(out, sb.String())
	return err
}

func anyTrue(values []bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}
