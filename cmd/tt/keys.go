package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) newKeysCmd() *cobra.Command {
	var selected bool
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Print the persisted panel state",
		Long: `Print the checked keys, expanded keys and namespace-edited topics stored
for the panel. With --selected, print the topic names that are visible in
the scene instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runKeys(cmd.Context(), selected)
		},
	}
	cmd.Flags().BoolVarP(&selected, "selected", "s", false, "print selected topic names")
	return cmd
}

func (a *app) runKeys(ctx context.Context, selected bool) error {
	in, err := a.load(ctx)
	if err != nil {
		return err
	}
	defer in.Close()

	if selected {
		v, err := a.view(in, in.State, "")
		if err != nil {
			return err
		}
		r := v.Resolver
		names := r.SelectedTopicNames()
		if a.jsonOutput {
			return writeJSON(a.out, map[string]any{
				"topics":     names,
				"namespaces": r.SelectedNamespacesByTopic(),
			})
		}
		for _, name := range names {
			if _, err := fmt.Fprintln(a.out, name); err != nil {
				return err
			}
		}
		return nil
	}

	state := in.State
	if a.jsonOutput {
		return writeJSON(a.out, state)
	}
	var sb strings.Builder
	section := func(title string, keys []string) {
		fmt.Fprintf(&sb, "%s (%d):\n", title, len(keys))
		sorted := slices.Clone(keys)
		slices.Sort(sorted)
		for _, k := range sorted {
			fmt.Fprintf(&sb, "  %s\n", k)
		}
	}
	fmt.Fprintf(&sb, "Panel %s, display mode %s\n", a.cfg.PanelID, state.DisplayModeOrDefault().Label())
	section("Checked", state.CheckedKeys)
	section("Expanded", state.ExpandedKeys)
	section("Namespace-edited topics", state.ModifiedNamespaceTopics)
	if len(state.SettingsByKey) > 0 {
		keys := make([]string, 0, len(state.SettingsByKey))
		for k := range state.SettingsByKey {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		fmt.Fprintf(&sb, "Settings (%d):\n", len(keys))
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s color=%s\n", k, state.SettingsByKey[k].OverrideColor)
		}
	}
	_, err = fmt.Fprint(a.out, sb.String())
	return err
}
