// Package config handles loading and saving topictree configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/topictree/config.yaml
//   - State:   ~/.local/state/topictree/ (panel state, logs)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/topictree/pkg/debounce"
	"github.com/vanderheijden86/topictree/pkg/model"
)

// AppName names the XDG subdirectories.
const AppName = "topictree"

// State backends.
const (
	StateBackendAuto   = "auto"
	StateBackendFile   = "file"
	StateBackendSQLite = "sqlite"
)

// LoggingConfig controls the zerolog logger.
type LoggingConfig struct {
	Level        string `yaml:"level" mapstructure:"level"`
	Format       string `yaml:"format" mapstructure:"format"`
	File         string `yaml:"file,omitempty" mapstructure:"file"`
	EnableCaller bool   `yaml:"enable_caller,omitempty" mapstructure:"enable_caller"`
}

// UIConfig holds panel preferences.
type UIConfig struct {
	Theme            string `yaml:"theme,omitempty" mapstructure:"theme"` // auto, dark, light
	ShowDescriptions bool   `yaml:"show_descriptions" mapstructure:"show_descriptions"`
}

// Config is the top-level configuration for tt.
type Config struct {
	TreeConfig         string        `yaml:"tree_config,omitempty" mapstructure:"tree_config"`
	TopicSource        string        `yaml:"topic_source,omitempty" mapstructure:"topic_source"`
	StatePath          string        `yaml:"state_path,omitempty" mapstructure:"state_path"`
	StateBackend       string        `yaml:"state_backend,omitempty" mapstructure:"state_backend"`
	PanelID            string        `yaml:"panel_id,omitempty" mapstructure:"panel_id"`
	UncategorizedGroup string        `yaml:"uncategorized_group,omitempty" mapstructure:"uncategorized_group"`
	FilterDebounce     time.Duration `yaml:"filter_debounce,omitempty" mapstructure:"filter_debounce"`
	DisplayMode        string        `yaml:"display_mode,omitempty" mapstructure:"display_mode"`
	Watch              bool          `yaml:"watch" mapstructure:"watch"`
	Logging            LoggingConfig `yaml:"logging" mapstructure:"logging"`
	UI                 UIConfig      `yaml:"ui" mapstructure:"ui"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		StatePath:          DefaultStatePath(),
		StateBackend:       StateBackendAuto,
		PanelID:            "default",
		UncategorizedGroup: "(Uncategorized)",
		FilterDebounce:     debounce.DefaultDuration,
		DisplayMode:        string(model.DisplayShowAll),
		Watch:              true,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   DefaultLogPath(),
		},
		UI: UIConfig{
			Theme:            "auto",
			ShowDescriptions: true,
		},
	}
}

// Validate checks field values.
func (c Config) Validate() error {
	if _, err := model.ParseDisplayMode(c.DisplayMode); err != nil {
		return fmt.Errorf("display_mode: %w", err)
	}
	if c.FilterDebounce < 0 || c.FilterDebounce > 5*time.Second {
		return fmt.Errorf("filter_debounce must be between 0 and 5s, got %s", c.FilterDebounce)
	}
	if strings.TrimSpace(c.PanelID) == "" {
		return fmt.Errorf("panel_id is required")
	}
	switch c.StateBackend {
	case "", StateBackendAuto, StateBackendFile, StateBackendSQLite:
	default:
		return fmt.Errorf("state_backend must be one of auto, file, sqlite, got %q", c.StateBackend)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.UI.Theme {
	case "", "auto", "dark", "light":
	default:
		return fmt.Errorf("ui.theme must be auto, dark or light, got %q", c.UI.Theme)
	}
	return nil
}

// ResolvedStateBackend picks the backend for StatePath when set to auto:
// .db and .sqlite files use SQLite, anything else a JSON file.
func (c Config) ResolvedStateBackend() string {
	if c.StateBackend != "" && c.StateBackend != StateBackendAuto {
		return c.StateBackend
	}
	switch strings.ToLower(filepath.Ext(c.StatePath)) {
	case ".db", ".sqlite", ".sqlite3":
		return StateBackendSQLite
	}
	return StateBackendFile
}

// ParsedDisplayMode returns DisplayMode as a model value.
func (c Config) ParsedDisplayMode() model.DisplayMode {
	mode, err := model.ParseDisplayMode(c.DisplayMode)
	if err != nil {
		return model.DisplayShowAll
	}
	return mode
}

// ConfigDir returns the XDG config directory for topictree.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", AppName)
}

// StateDir returns the XDG state directory for topictree.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", AppName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// DefaultStatePath is where panel state is kept unless configured.
func DefaultStatePath() string {
	dir := StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "panels.json")
}

// DefaultLogPath is the log file the terminal UI writes to.
func DefaultLogPath() string {
	dir := StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "tt.log")
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func expandHome(path string) string {
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
