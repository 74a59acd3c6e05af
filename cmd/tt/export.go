package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/topictree/pkg/export"
	"github.com/vanderheijden86/topictree/pkg/hooks"
)

type exportOptions struct {
	output string
	format string
	title  string
	filter string
	all    bool

	hooksFile string
	noHooks   bool
}

func (a *app) newExportCmd() *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Save the visible tree as SVG, PNG or markdown",
		Long: `Render the rows the panel shows, with one checkbox per column and the
scene markers, to a static file. The format follows --format or the
output extension and defaults to SVG.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExport(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "topics.svg", "output file")
	cmd.Flags().StringVar(&opts.format, "format", "", "svg, png or md (default from the output extension)")
	cmd.Flags().StringVar(&opts.title, "title", "", "title shown in the header")
	cmd.Flags().StringVarP(&opts.filter, "filter", "f", "", "export only rows matching the filter")
	cmd.Flags().BoolVarP(&opts.all, "all", "a", false, "expand every group")
	cmd.Flags().StringVar(&opts.hooksFile, "hooks", "", "hooks file (default hooks.yaml in the source directory)")
	cmd.Flags().BoolVar(&opts.noHooks, "no-hooks", false, "skip pre- and post-export hooks")
	return cmd
}

func (a *app) runExport(ctx context.Context, opts exportOptions) error {
	format, err := export.ResolveFormat(opts.format, opts.output)
	if err != nil {
		return err
	}

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

	executor, err := a.exportHooks(opts, hooks.ExportContext{
		ExportPath:   opts.output,
		ExportFormat: format,
		RowCount:     len(v.Rows),
		PanelID:      a.cfg.PanelID,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return err
	}
	if executor != nil {
		if err := executor.RunPreExport(ctx); err != nil {
			return fmt.Errorf("export cancelled: %w", err)
		}
	}

	err = export.SaveSnapshot(export.SnapshotOptions{
		Path:    opts.output,
		Format:  format,
		Title:   opts.title,
		Rows:    v.Rows,
		Columns: v.Tree.ColumnCount(),
		State:   v.State,
		Filter:  opts.filter,
	})
	if err != nil {
		return fmt.Errorf("exporting snapshot: %w", err)
	}
	if _, err := fmt.Fprintf(a.out, "Wrote %d rows to %s (%s)\n", len(v.Rows), opts.output, format); err != nil {
		return err
	}

	if executor == nil {
		return nil
	}
	postErr := executor.RunPostExport(ctx)
	fmt.Fprintln(a.errOut, executor.Summary())
	return postErr
}

func (a *app) exportHooks(opts exportOptions, ectx hooks.ExportContext) (*hooks.Executor, error) {
	if opts.noHooks {
		return nil, nil
	}
	path := opts.hooksFile
	if path == "" {
		dir, err := a.sourceDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, hooks.FileName)
	}
	return hooks.RunHooks(path, ectx, false)
}
