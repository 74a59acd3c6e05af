package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vanderheijden86/topictree/pkg/config"
	"github.com/vanderheijden86/topictree/pkg/logging"
	"github.com/vanderheijden86/topictree/pkg/version"
)

// app carries what every command shares: output streams and the resolved
// configuration.
type app struct {
	out    io.Writer
	errOut io.Writer

	loader     *config.Loader
	cfg        *config.Config
	configFile string
	jsonOutput bool
	// displayModeFlag makes --display-mode override the stored mode.
	displayModeFlag bool

	// isTTY decides whether the bare command opens the panel.
	isTTY func() bool
}

// flagKeys maps persistent flags to config keys. Only flags set on the
// command line override the file and environment.
var flagKeys = map[string]string{
	"tree-config":  "tree_config",
	"topic-source": "topic_source",
	"state":        "state_path",
	"panel":        "panel_id",
	"display-mode": "display_mode",
	"log-level":    "logging.level",
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	return newApp(out, errOut).command()
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		out:    out,
		errOut: errOut,
		loader: config.NewLoader(),
		isTTY:  hasTTY,
	}
}

func (a *app) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tt",
		Short: "Browse and select topics in a topic tree",
		Long: `tt shows an authored topic tree merged with the topics a source
currently publishes. Topics nobody configured land in an uncategorized
group. Checked topics, namespaces and expanded groups are saved per panel.

Run without a subcommand in a terminal to open the interactive panel;
otherwise the tree is printed.`,
		Version:           version.Version,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.isTTY() {
				return a.runTree(cmd.Context(), treeOptions{})
			}
			return a.runTUI(cmd.Context())
		},
	}
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/topictree/config.yaml)")
	flags.String("tree-config", "", "authored topic tree (YAML or JSON)")
	flags.String("topic-source", "", "topic snapshot file, topic database or source directory")
	flags.String("state", "", "panel state file (.json file or .db database)")
	flags.String("panel", "", "panel ID")
	flags.String("display-mode", "", "topics to show: all, available or visible")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("no-watch", false, "do not reload when the tree config or topic source changes")
	flags.BoolVar(&a.jsonOutput, "json", false, "write JSON output")

	cmd.AddCommand(
		a.newTreeCmd(),
		a.newToggleCmd(),
		a.newToggleDescendantsCmd(),
		a.newToggleAncestorsCmd(),
		a.newToggleNamespaceCmd(),
		a.newSearchCmd(),
		a.newExportCmd(),
		a.newKeysCmd(),
		a.newSourcesCmd(),
	)
	return cmd
}

// setup resolves the configuration (defaults < file < env < flags) and
// points the logger at stderr.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.configFile != "" {
		a.loader.SetConfigFile(a.configFile)
	}
	flags := cmd.Flags()
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil && f.Changed {
			a.loader.Set(key, f.Value.String())
		}
	}
	a.displayModeFlag = flags.Changed("display-mode")
	if flags.Changed("no-watch") {
		noWatch, _ := flags.GetBool("no-watch")
		a.loader.Set("watch", !noWatch)
	}

	cfg, err := a.loader.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	logging.Init(a.logConfig(a.errOut))
	return nil
}

func (a *app) logConfig(out io.Writer) logging.Config {
	return logging.Config{
		Level:        a.cfg.Logging.Level,
		Format:       a.cfg.Logging.Format,
		Output:       out,
		EnableCaller: a.cfg.Logging.EnableCaller,
	}
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
