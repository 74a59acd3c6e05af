package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/vanderheijden86/topictree/pkg/logging"
)

// maxSummaryStderr caps the stderr quoted per failed hook in Summary.
const maxSummaryStderr = 200

// Result is the outcome of one hook run.
type Result struct {
	Hook     Hook
	Phase    HookPhase
	Success  bool
	Stdout   string
	Stderr   string
	Duration time.Duration
	Error    error
}

// Executor runs the hooks of one export.
type Executor struct {
	config  *Config
	export  ExportContext
	results []Result
}

// NewExecutor creates an executor for config.
func NewExecutor(config *Config, export ExportContext) *Executor {
	if config == nil {
		config = &Config{}
	}
	return &Executor{config: config, export: export}
}

// RunHooks loads the hooks file at path and returns an executor, or nil
// when hooks are disabled or none are configured.
func RunHooks(path string, export ExportContext, noHooks bool) (*Executor, error) {
	if noHooks {
		return nil, nil
	}
	l := NewLoader(WithPath(path))
	if err := l.Load(); err != nil {
		return nil, err
	}
	log := logging.Component("hooks")
	for _, w := range l.Warnings() {
		log.Warn().Str("file", path).Msg(w)
	}
	if !l.HasHooks() {
		return nil, nil
	}
	return NewExecutor(l.Config(), export), nil
}

// RunPreExport runs the pre-export hooks in order and stops at the first
// failing hook whose policy is fail.
func (e *Executor) RunPreExport(ctx context.Context) error {
	return e.runPhase(ctx, PreExport, e.config.Hooks.PreExport)
}

// RunPostExport runs every post-export hook. Failures with policy fail are
// collected and returned together.
func (e *Executor) RunPostExport(ctx context.Context) error {
	return e.runPhase(ctx, PostExport, e.config.Hooks.PostExport)
}

func (e *Executor) runPhase(ctx context.Context, phase HookPhase, hooks []Hook) error {
	var errs []error
	for _, hook := range hooks {
		res := e.run(ctx, phase, hook)
		e.results = append(e.results, res)
		if res.Success || hook.OnError != OnErrorFail {
			continue
		}
		err := fmt.Errorf("%s hook %q: %w", phase, hook.Name, res.Error)
		if phase == PreExport {
			return err
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Executor) run(ctx context.Context, phase HookPhase, hook Hook) Result {
	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", hook.Command)
	cmd.Env = append(os.Environ(), e.export.ToEnv()...)
	for k, v := range hook.Env {
		cmd.Env = append(cmd.Env, k+"="+os.ExpandEnv(v))
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children that outlive the shell must not hold the pipes open.
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Hook:     hook,
		Phase:    phase,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Error = fmt.Errorf("timed out after %s", timeout)
	case err != nil:
		res.Error = err
	default:
		res.Success = true
	}

	log := logging.Component("hooks")
	log.Debug().
		Str("phase", string(phase)).
		Str("hook", hook.Name).
		Bool("success", res.Success).
		Dur("elapsed", res.Duration).
		Msg("ran hook")
	return res
}

// Results returns the results of every hook run so far.
func (e *Executor) Results() []Result {
	return e.results
}

// Summary describes the runs in one line per failure.
func (e *Executor) Summary() string {
	if len(e.results) == 0 {
		return ""
	}
	succeeded, failed := 0, 0
	var sb strings.Builder
	for _, r := range e.results {
		if r.Success {
			succeeded++
			continue
		}
		failed++
		fmt.Fprintf(&sb, "\n  %s %s: %v", r.Phase, r.Hook.Name, r.Error)
		if r.Stderr != "" {
			stderr := r.Stderr
			if len(stderr) > maxSummaryStderr {
				stderr = stderr[:maxSummaryStderr] + "..."
			}
			fmt.Fprintf(&sb, " (%s)", stderr)
		}
	}
	return fmt.Sprintf("Hooks: %d succeeded, %d failed", succeeded, failed) + sb.String()
}
