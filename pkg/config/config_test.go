package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/topictree/pkg/model"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Chdir(dir)
	return dir
}

func TestDefaultConfig(t *testing.T) {
	isolate(t)
	cfg := DefaultConfig()

	assert.Equal(t, "default", cfg.PanelID)
	assert.Equal(t, "(Uncategorized)", cfg.UncategorizedGroup)
	assert.Equal(t, 150*time.Millisecond, cfg.FilterDebounce)
	assert.Equal(t, model.DisplayShowAll, cfg.ParsedDisplayMode())
	assert.True(t, cfg.Watch)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, filepath.Join(StateDir(), "panels.json"), cfg.StatePath)
	require.NoError(t, cfg.Validate())
}

func TestXDGDirs(t *testing.T) {
	dir := isolate(t)

	assert.Equal(t, filepath.Join(dir, "config", AppName), ConfigDir())
	assert.Equal(t, filepath.Join(dir, "config", AppName, "config.yaml"), ConfigPath())
	assert.Equal(t, filepath.Join(dir, "state", AppName), StateDir())
	assert.Equal(t, filepath.Join(dir, "state", AppName, "tt.log"), DefaultLogPath())
}

func TestLoadFrom_NonExistent(t *testing.T) {
	isolate(t)
	cfg, err := LoadFrom("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.PanelID)
}

func TestLoadFrom_ValidConfig(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "tt.yaml")
	content := `
tree_config: ~/topics/tree.yaml
topic_source: /data/topics.jsonl
panel_id: left
filter_debounce: 300ms
display_mode: selected
watch: false
logging:
  level: debug
  format: json
ui:
  theme: dark
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "topics/tree.yaml"), cfg.TreeConfig)
	assert.Equal(t, "/data/topics.jsonl", cfg.TopicSource)
	assert.Equal(t, "left", cfg.PanelID)
	assert.Equal(t, 300*time.Millisecond, cfg.FilterDebounce)
	assert.Equal(t, model.DisplayShowSelected, cfg.ParsedDisplayMode())
	assert.False(t, cfg.Watch)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "dark", cfg.UI.Theme)
	// untouched keys keep their defaults
	assert.Equal(t, "(Uncategorized)", cfg.UncategorizedGroup)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.MkdirAll(ConfigDir(), 0o755))
	require.NoError(t, os.WriteFile(ConfigPath(), []byte("panel_id: from-file\nlogging:\n  level: warn\n"), 0o644))
	t.Setenv("TT_PANEL_ID", "from-env")
	t.Setenv("TT_LOGGING_LEVEL", "error")

	loader := NewLoader()
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.PanelID)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, filepath.Join(dir, "config", AppName, "config.yaml"), loader.ConfigFileUsed())
}

func TestLoad_SetWins(t *testing.T) {
	isolate(t)
	t.Setenv("TT_PANEL_ID", "from-env")

	loader := NewLoader()
	loader.Set("panel_id", "from-flag")
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.PanelID)
	assert.Equal(t, "from-flag", loader.Get("panel_id"))
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	dir := isolate(t)
	loader := NewLoader()
	loader.SetConfigFile(filepath.Join(dir, "missing.yaml"))
	_, err := loader.Load()
	require.Error(t, err)
}

func TestLoad_InvalidValue(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("display_mode: sideways\n"), 0o644))

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "display_mode")
}

func TestValidate(t *testing.T) {
	isolate(t)
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative debounce", func(c *Config) { c.FilterDebounce = -time.Millisecond }},
		{"huge debounce", func(c *Config) { c.FilterDebounce = time.Minute }},
		{"blank panel", func(c *Config) { c.PanelID = "  " }},
		{"bad backend", func(c *Config) { c.StateBackend = "redis" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResolvedStateBackend(t *testing.T) {
	cfg := Config{StatePath: "/x/panels.json"}
	assert.Equal(t, StateBackendFile, cfg.ResolvedStateBackend())

	cfg.StatePath = "/x/panels.db"
	assert.Equal(t, StateBackendSQLite, cfg.ResolvedStateBackend())

	cfg.StateBackend = StateBackendFile
	assert.Equal(t, StateBackendFile, cfg.ResolvedStateBackend())
}

func TestSaveTo_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.PanelID = "saved"
	cfg.FilterDebounce = 250 * time.Millisecond
	require.NoError(t, SaveTo(cfg, path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "saved", loaded.PanelID)
	assert.Equal(t, 250*time.Millisecond, loaded.FilterDebounce)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, expandHome("~"))
	assert.Equal(t, filepath.Join(home, "a/b"), expandHome("~/a/b"))
	assert.Equal(t, "/abs", expandHome("/abs"))
	assert.Equal(t, "rel/~", expandHome("rel/~"))
}
