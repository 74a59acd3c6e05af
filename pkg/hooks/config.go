// Package hooks runs user commands around tt export.
// Hooks are configured in .topictree/hooks.yaml and run before the snapshot
// is rendered (pre-export) or after it is written (post-export).
package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/topictree/pkg/loader"
)

// HookPhase represents when a hook runs
type HookPhase string

const (
	// PreExport runs before the snapshot is rendered. Failure cancels export.
	PreExport HookPhase = "pre-export"
	// PostExport runs after the snapshot is written. Failure is logged only.
	PostExport HookPhase = "post-export"
)

// On-error policies.
const (
	OnErrorFail     = "fail"
	OnErrorContinue = "continue"
)

// FileName is the hooks file inside the source directory.
const FileName = "hooks.yaml"

// DefaultTimeout is the default hook execution timeout
const DefaultTimeout = 30 * time.Second

// Hook defines a single hook configuration
type Hook struct {
	Name    string            `yaml:"name" json:"name"`
	Command string            `yaml:"command" json:"command"` // run with sh -c
	Timeout time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"` // values are expanded
	OnError string            `yaml:"on_error,omitempty" json:"on_error,omitempty"`
}

// Config holds all hook configurations
type Config struct {
	Hooks HooksByPhase `yaml:"hooks" json:"hooks"`
}

// HooksByPhase organizes hooks by their execution phase
type HooksByPhase struct {
	PreExport  []Hook `yaml:"pre-export,omitempty" json:"pre-export,omitempty"`
	PostExport []Hook `yaml:"post-export,omitempty" json:"post-export,omitempty"`
}

// ExportContext describes the export to the hooks through TT_* variables.
type ExportContext struct {
	ExportPath   string    // TT_EXPORT_PATH
	ExportFormat string    // TT_EXPORT_FORMAT: svg, png or md
	RowCount     int       // TT_ROW_COUNT
	PanelID      string    // TT_PANEL_ID
	Timestamp    time.Time // TT_TIMESTAMP (RFC3339)
}

// ToEnv converts export context to environment variables
func (c ExportContext) ToEnv() []string {
	return []string{
		"TT_EXPORT_PATH=" + c.ExportPath,
		"TT_EXPORT_FORMAT=" + c.ExportFormat,
		fmt.Sprintf("TT_ROW_COUNT=%d", c.RowCount),
		"TT_PANEL_ID=" + c.PanelID,
		"TT_TIMESTAMP=" + c.Timestamp.Format(time.RFC3339),
	}
}

// Loader reads the hooks file.
type Loader struct {
	path     string
	config   *Config
	warnings []string
}

// LoaderOption configures the loader
type LoaderOption func(*Loader)

// WithPath sets the hooks file explicitly.
func WithPath(path string) LoaderOption {
	return func(l *Loader) {
		l.path = path
	}
}

// WithSourceDir reads hooks.yaml from dir.
func WithSourceDir(dir string) LoaderOption {
	return func(l *Loader) {
		l.path = filepath.Join(dir, FileName)
	}
}

// NewLoader creates a loader. Without options it reads hooks.yaml from the
// default source directory.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.path == "" {
		if dir, err := loader.GetSourceDir(""); err == nil {
			l.path = filepath.Join(dir, FileName)
		}
	}
	return l
}

// Path returns the hooks file location.
func (l *Loader) Path() string { return l.path }

// Load reads the hooks file. A missing file means no hooks.
func (l *Loader) Load() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.config = &Config{}
			return nil
		}
		return fmt.Errorf("reading hooks config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing %s: %w", l.path, err)
	}
	config.Hooks.PreExport, l.warnings = normalizeHooks(config.Hooks.PreExport, PreExport, l.warnings)
	config.Hooks.PostExport, l.warnings = normalizeHooks(config.Hooks.PostExport, PostExport, l.warnings)
	l.config = &config
	return nil
}

// normalizeHooks applies defaults, drops empty commands, and accumulates warnings.
func normalizeHooks(hooks []Hook, phase HookPhase, warnings []string) ([]Hook, []string) {
	var out []Hook
	for i, hook := range hooks {
		if strings.TrimSpace(hook.Command) == "" {
			warnings = append(warnings, fmt.Sprintf("%s hook %d has empty command; skipping", phase, i+1))
			continue
		}
		if hook.Timeout <= 0 {
			hook.Timeout = DefaultTimeout
		}
		switch hook.OnError {
		case OnErrorFail, OnErrorContinue:
		case "":
			hook.OnError = OnErrorContinue
			if phase == PreExport {
				hook.OnError = OnErrorFail
			}
		default:
			warnings = append(warnings, fmt.Sprintf("%s hook %q has unknown on_error %q; using %s", phase, hook.Name, hook.OnError, OnErrorFail))
			hook.OnError = OnErrorFail
		}
		if hook.Name == "" {
			hook.Name = fmt.Sprintf("%s-%d", phase, i+1)
		}
		out = append(out, hook)
	}
	return out, warnings
}

// Config returns the loaded configuration (or empty if not loaded)
func (l *Loader) Config() *Config {
	if l.config == nil {
		return &Config{}
	}
	return l.config
}

// HasHooks returns true if any hooks are configured
func (l *Loader) HasHooks() bool {
	return l.config != nil && (len(l.config.Hooks.PreExport) > 0 || len(l.config.Hooks.PostExport) > 0)
}

// GetHooks returns hooks for a specific phase
func (l *Loader) GetHooks(phase HookPhase) []Hook {
	if l.config == nil {
		return nil
	}
	switch phase {
	case PreExport:
		return l.config.Hooks.PreExport
	case PostExport:
		return l.config.Hooks.PostExport
	}
	return nil
}

// Warnings returns any warnings from loading
func (l *Loader) Warnings() []string {
	return l.warnings
}

// UnmarshalYAML accepts timeouts as durations ("5s") or seconds (5).
func (h *Hook) UnmarshalYAML(node *yaml.Node) error {
	type hookDTO struct {
		Name    string            `yaml:"name"`
		Command string            `yaml:"command"`
		Timeout string            `yaml:"timeout,omitempty"`
		Env     map[string]string `yaml:"env,omitempty"`
		OnError string            `yaml:"on_error,omitempty"`
	}

	var dto hookDTO
	if err := node.Decode(&dto); err != nil {
		return err
	}
	h.Name = dto.Name
	h.Command = dto.Command
	h.Env = dto.Env
	h.OnError = dto.OnError

	if dto.Timeout != "" {
		d, err := time.ParseDuration(dto.Timeout)
		if err != nil {
			var seconds float64
			if _, scanErr := fmt.Sscanf(dto.Timeout, "%f", &seconds); scanErr != nil {
				return fmt.Errorf("invalid timeout %q: %w", dto.Timeout, err)
			}
			d = time.Duration(seconds * float64(time.Second))
		}
		h.Timeout = d
	}
	return nil
}
