// Package panelstate persists topic panel state keyed by panel ID.
//
// Two backends exist: a single versioned JSON file holding every panel, and
// a SQLite database with one row per panel. A missing or unreadable panel
// entry degrades to the default state.
package panelstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/topictree"
)

// ErrNotFound is returned when a panel has no stored state.
var ErrNotFound = errors.New("panel state not found")

// SchemaVersion is the current on-disk version of a stored panel state.
const SchemaVersion = 1

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Store loads and saves panel states.
type Store interface {
	Load(ctx context.Context, panelID string) (model.PanelState, error)
	Save(ctx context.Context, panelID string, state model.PanelState) error
	Delete(ctx context.Context, panelID string) error
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Open returns the store for backend at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(path), nil
	case BackendSQLite:
		return OpenSQLiteStore(path)
	}
	return nil, fmt.Errorf("unknown state backend %q", backend)
}

// LoadOrDefault loads panelID, falling back to the default state when the
// panel was never saved or its entry is unreadable. Only store failures
// are returned as errors.
func LoadOrDefault(ctx context.Context, store Store, panelID, uncategorizedGroup string) (model.PanelState, error) {
	state, err := store.Load(ctx, panelID)
	switch {
	case err == nil:
		return state, nil
	case errors.Is(err, ErrNotFound):
		return topictree.DefaultState(uncategorizedGroup), nil
	case errors.Is(err, errCorrupt):
		logger().Warn().Err(err).Str("panel", panelID).Msg("invalid panel state, using defaults")
		return topictree.DefaultState(uncategorizedGroup), nil
	}
	return model.PanelState{}, err
}

var errCorrupt = errors.New("corrupt panel state")

// normalize gives a decoded state non-nil slices and a valid display mode.
func normalize(state model.PanelState) model.PanelState {
	out := state.Clone()
	out.TopicDisplayMode = state.DisplayModeOrDefault()
	return out
}

func validatePanelID(panelID string) error {
	if panelID == "" {
		return errors.New("panel id is required")
	}
	return nil
}
