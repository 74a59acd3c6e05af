package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/topictree/pkg/search"
)

func (a *app) newSearchCmd() *cobra.Command {
	var (
		mode  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find groups, topics and namespaces",
		Long: `Rank every group name, topic name and namespace against the query.
Fuzzy mode matches characters in order; substring mode needs a contiguous
case-insensitive match.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := search.ConfigFromEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("mode") {
				if cfg.Mode, err = search.ParseMode(mode); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("limit") {
				cfg.Limit = limit
			}
			return a.runSearch(cmd.Context(), strings.Join(args, " "), cfg)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(search.ModeFuzzy), "match mode: fuzzy or substring")
	cmd.Flags().IntVarP(&limit, "limit", "n", search.DefaultLimit, "maximum matches (0 for all)")
	return cmd
}

// searchResult is the JSON shape of one match.
type searchResult struct {
	Key   string `json:"key"`
	Kind  string `json:"kind"`
	Text  string `json:"text"`
	Path  string `json:"path,omitempty"`
	Score int    `json:"score"`
}

func (a *app) runSearch(ctx context.Context, query string, cfg search.Config) error {
	in, err := a.load(ctx)
	if err != nil {
		return err
	}
	defer in.Close()

	v, err := a.view(in, in.State, "")
	if err != nil {
		return err
	}
	matches := search.FindWith(v.Tree, in.Snapshot.NamespacesByTopic, query, cfg)

	if a.jsonOutput {
		results := make([]searchResult, 0, len(matches))
		for _, m := range matches {
			results = append(results, searchResult{Key: m.Key, Kind: m.Kind.String(), Text: m.Text, Path: m.Path, Score: m.Score})
		}
		return writeJSON(a.out, results)
	}
	if len(matches) == 0 {
		_, err := fmt.Fprintf(a.out, "No matches for %q.\n", query)
		return err
	}
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []string{m.Kind.String(), m.Text, m.Path, strconv.Itoa(m.Score)})
	}
	return writeTable(a.out, []string{"KIND", "NAME", "PATH", "SCORE"}, rows)
}
