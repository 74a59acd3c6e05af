package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TT_PANEL_ID.
const EnvPrefix = "TT"

// envKeys lists the keys bound to TT_* variables.
var envKeys = []string{
	"tree_config",
	"topic_source",
	"state_path",
	"state_backend",
	"panel_id",
	"uncategorized_group",
	"filter_debounce",
	"display_mode",
	"watch",
	"logging.level",
	"logging.format",
	"logging.file",
	"logging.enable_caller",
	"ui.theme",
	"ui.show_descriptions",
}

// Loader loads configuration with precedence defaults < file < env < flags.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// SetConfigFile sets an explicit config file path. A missing explicit file
// is an error; a missing default file is not.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load resolves the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	expandPaths(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (l *Loader) setupViper(cfg Config) {
	v := l.v
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir := ConfigDir(); dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v, cfg)
	for _, key := range envKeys {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}
	v.AutomaticEnv()
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("tree_config", cfg.TreeConfig)
	v.SetDefault("topic_source", cfg.TopicSource)
	v.SetDefault("state_path", cfg.StatePath)
	v.SetDefault("state_backend", cfg.StateBackend)
	v.SetDefault("panel_id", cfg.PanelID)
	v.SetDefault("uncategorized_group", cfg.UncategorizedGroup)
	v.SetDefault("filter_debounce", cfg.FilterDebounce)
	v.SetDefault("display_mode", cfg.DisplayMode)
	v.SetDefault("watch", cfg.Watch)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.enable_caller", cfg.Logging.EnableCaller)

	v.SetDefault("ui.theme", cfg.UI.Theme)
	v.SetDefault("ui.show_descriptions", cfg.UI.ShowDescriptions)
}

func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
		return l.v.ReadInConfig()
	}
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

func expandPaths(cfg *Config) {
	cfg.TreeConfig = expandHome(cfg.TreeConfig)
	cfg.TopicSource = expandHome(cfg.TopicSource)
	cfg.StatePath = expandHome(cfg.StatePath)
	cfg.Logging.File = expandHome(cfg.Logging.File)
}

// ConfigFileUsed returns the config file that was loaded, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Set overrides a key, taking precedence over file and env values.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// Get returns the resolved value of a key.
func (l *Loader) Get(key string) any {
	return l.v.Get(key)
}

// Viper returns the underlying Viper instance, for binding cobra flags.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// LoadFrom loads configuration from a specific file. A missing file yields
// the defaults.
func LoadFrom(path string) (*Config, error) {
	loader := NewLoader()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				cfg := DefaultConfig()
				return &cfg, nil
			}
			return nil, fmt.Errorf("reading config: %w", err)
		}
		loader.SetConfigFile(path)
	}
	return loader.Load()
}

// Load loads configuration from the default search paths.
func Load() (*Config, error) {
	return NewLoader().Load()
}
