package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/topictree/internal/datasource"
	"github.com/vanderheijden86/topictree/pkg/loader"
	"github.com/vanderheijden86/topictree/pkg/logging"
	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/panelstate"
	"github.com/vanderheijden86/topictree/pkg/topictree"
)

// inputs is everything a panel is derived from.
type inputs struct {
	Config   *model.ConfigNode
	Snapshot *model.SourceSnapshot
	Source   datasource.DataSource
	State    model.PanelState
	Store    panelstate.Store
}

// Close releases the state store.
func (in *inputs) Close() error {
	if in.Store == nil {
		return nil
	}
	return in.Store.Close()
}

// load reads the tree configuration, the topic source and the panel state
// concurrently.
func (a *app) load(ctx context.Context) (*inputs, error) {
	start := time.Now()
	store, err := panelstate.Open(a.cfg.ResolvedStateBackend(), a.cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("opening panel state: %w", err)
	}
	in := &inputs{Store: store}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cfg, err := a.loadTreeConfig()
		in.Config = cfg
		return err
	})
	g.Go(func() error {
		snap, source, err := a.loadSnapshot(gctx)
		in.Snapshot, in.Source = snap, source
		return err
	})
	g.Go(func() error {
		state, err := panelstate.LoadOrDefault(gctx, store, a.cfg.PanelID, a.cfg.UncategorizedGroup)
		in.State = state
		return err
	})
	if err := g.Wait(); err != nil {
		_ = store.Close()
		return nil, err
	}

	if a.displayModeFlag {
		in.State.TopicDisplayMode = a.cfg.ParsedDisplayMode()
	}

	log := logging.WithPanel(a.cfg.PanelID)
	log.Debug().
		Int("topics", in.Snapshot.TopicCount()).
		Str("source", in.Source.Path).
		Dur("elapsed", time.Since(start)).
		Msg("loaded panel inputs")
	return in, nil
}

// reload re-reads the tree configuration and the topic source; the panel
// keeps its own state.
func (a *app) reload(ctx context.Context) (*model.ConfigNode, *model.SourceSnapshot, error) {
	var (
		cfg  *model.ConfigNode
		snap *model.SourceSnapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cfg, err = a.loadTreeConfig()
		return err
	})
	g.Go(func() error {
		var err error
		snap, _, err = a.loadSnapshot(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return cfg, snap, nil
}

// loadTreeConfig returns nil when no tree is configured, which puts every
// topic in the uncategorized group.
func (a *app) loadTreeConfig() (*model.ConfigNode, error) {
	if strings.TrimSpace(a.cfg.TreeConfig) == "" {
		return nil, nil
	}
	return loader.LoadTreeConfig(a.cfg.TreeConfig)
}

// loadSnapshot loads the configured topic source. Without one the source
// directory is searched; a missing directory yields an empty snapshot.
func (a *app) loadSnapshot(ctx context.Context) (*model.SourceSnapshot, datasource.DataSource, error) {
	path := strings.TrimSpace(a.cfg.TopicSource)
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, datasource.DataSource{}, fmt.Errorf("topic source: %w", err)
		}
		if info.IsDir() {
			return datasource.LoadSnapshotFromDir(ctx, path)
		}
		return datasource.LoadPath(ctx, path)
	}

	dir, err := loader.GetSourceDir("")
	if err != nil {
		return nil, datasource.DataSource{}, err
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return &model.SourceSnapshot{}, datasource.DataSource{}, nil
	}
	return datasource.LoadSnapshotFromDir(ctx, dir)
}

// view derives the panel for in with the given state and filter.
func (a *app) view(in *inputs, state model.PanelState, filter string) (*topictree.View, error) {
	return topictree.NewView(topictree.ViewInput{
		Config:             in.Config,
		Snapshot:           in.Snapshot,
		State:              state,
		FilterText:         filter,
		UncategorizedGroup: a.cfg.UncategorizedGroup,
	})
}

// save persists state for the configured panel.
func (a *app) save(ctx context.Context, in *inputs, state model.PanelState) error {
	if err := in.Store.Save(ctx, a.cfg.PanelID, state); err != nil {
		return fmt.Errorf("saving panel state: %w", err)
	}
	return nil
}
