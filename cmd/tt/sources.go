package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/topictree/internal/datasource"
	"github.com/vanderheijden86/topictree/pkg/loader"
)

func (a *app) newSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Inspect topic sources",
		Long: `Inspect the topic snapshot files and topic databases in the source
directory: the one holding --topic-source, else $TT_SOURCE_DIR or
./.topictree.`,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List discovered sources, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSourcesList()
		},
	}

	diff := &cobra.Command{
		Use:   "diff",
		Short: "Report topics that differ between valid sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSourcesDiff(cmd.Context())
		},
	}

	cmd.AddCommand(list, diff)
	return cmd
}

// sourceDir is the configured topic source directory, the directory of a
// configured topic source file, or the default source directory.
func (a *app) sourceDir() (string, error) {
	path := strings.TrimSpace(a.cfg.TopicSource)
	if path == "" {
		return loader.GetSourceDir("")
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("topic source: %w", err)
	}
	if info.IsDir() {
		return path, nil
	}
	return filepath.Dir(path), nil
}

func (a *app) discover() ([]datasource.DataSource, error) {
	dir, err := a.sourceDir()
	if err != nil {
		return nil, err
	}
	return datasource.DiscoverSources(datasource.DiscoveryOptions{
		SourceDir:              dir,
		ValidateAfterDiscovery: true,
		IncludeInvalid:         true,
	})
}

func (a *app) runSourcesList() error {
	sources, err := a.discover()
	if err != nil {
		return err
	}
	if a.jsonOutput {
		return writeJSON(a.out, sources)
	}
	if len(sources) == 0 {
		_, err := fmt.Fprintln(a.out, "No topic sources found.")
		return err
	}
	rows := make([][]string, 0, len(sources))
	for _, s := range sources {
		status := "valid"
		if !s.Valid {
			status = "invalid: " + s.ValidationError
		}
		rows = append(rows, []string{
			string(s.Type),
			s.Path,
			strconv.Itoa(s.TopicCount),
			s.ModTime.Format("2006-01-02 15:04:05"),
			status,
		})
	}
	return writeTable(a.out, []string{"TYPE", "PATH", "TOPICS", "MODIFIED", "STATUS"}, rows)
}

func (a *app) runSourcesDiff(ctx context.Context) error {
	sources, err := a.discover()
	if err != nil {
		return err
	}
	diffs := datasource.CheckAllSourcesConsistent(ctx, sources, datasource.DefaultDiffOptions())
	if a.jsonOutput {
		return writeJSON(a.out, diffs)
	}
	if len(diffs) == 0 {
		_, err := fmt.Fprintf(a.out, "All %d sources agree.\n", len(sources))
		return err
	}
	for _, d := range diffs {
		if _, err := fmt.Fprintln(a.out, d.Summary()); err != nil {
			return err
		}
	}
	return nil
}
