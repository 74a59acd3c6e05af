package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/topictree/pkg/logging"
	"github.com/vanderheijden86/topictree/pkg/search"
	"github.com/vanderheijden86/topictree/pkg/ui"
	"github.com/vanderheijden86/topictree/pkg/watcher"
)

// autoCloseEnv quits the panel after the given milliseconds; used by
// scripted smoke runs.
const autoCloseEnv = "TT_TUI_AUTOCLOSE_MS"

func (a *app) runTUI(ctx context.Context) error {
	// The panel owns the terminal, so logs go to a file.
	if path := a.cfg.Logging.File; path != "" {
		f, err := logging.OpenFile(path)
		if err != nil {
			return err
		}
		defer f.Close()
		logging.Init(a.logConfig(f))
	}

	in, err := a.load(ctx)
	if err != nil {
		return err
	}
	defer in.Close()

	searchCfg, err := search.ConfigFromEnv()
	if err != nil {
		return err
	}

	var w *watcher.Watcher
	if a.cfg.Watch {
		w = a.startWatcher(in)
		if w != nil {
			defer w.Stop()
		}
	}

	m, err := ui.NewModel(ui.Options{
		Config:             in.Config,
		Snapshot:           in.Snapshot,
		State:              in.State,
		PanelID:            a.cfg.PanelID,
		Store:              in.Store,
		UncategorizedGroup: a.cfg.UncategorizedGroup,
		FilterDebounce:     a.cfg.FilterDebounce,
		Watcher:            w,
		Reload:             a.reload,
		Theme:              a.cfg.UI.Theme,
		ShowDetails:        a.cfg.UI.ShowDescriptions,
		Search:             searchCfg,
	})
	if err != nil {
		return err
	}

	if err := runTUIProgram(m); err != nil {
		return fmt.Errorf("running topic panel: %w", err)
	}
	return nil
}

// startWatcher watches the tree config and the loaded topic source. A
// watcher that fails to start only disables live reload.
func (a *app) startWatcher(in *inputs) *watcher.Watcher {
	log := logging.Component("watcher")
	w, err := watcher.NewWatcher(
		[]string{a.cfg.TreeConfig, in.Source.Path},
		watcher.WithOnError(func(err error) {
			log.Warn().Err(err).Msg("watch error")
		}),
	)
	if err != nil {
		if !errors.Is(err, watcher.ErrNoPaths) {
			log.Warn().Err(err).Msg("live reload disabled")
		}
		return nil
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("live reload disabled")
		return nil
	}
	log.Debug().Strs("paths", w.Paths()).Bool("polling", w.IsPolling()).Msg("watching for changes")
	return w
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	if v := os.Getenv(autoCloseEnv); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
