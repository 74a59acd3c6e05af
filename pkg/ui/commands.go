package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/panelstate"
	"github.com/vanderheijden86/topictree/pkg/watcher"
)

// ReloadFunc reloads the tree configuration and the topic snapshot.
type ReloadFunc func(ctx context.Context) (*model.ConfigNode, *model.SourceSnapshot, error)

// FileChangedMsg is sent when a watched file changes.
type FileChangedMsg struct {
	Paths []string
}

// ReloadedMsg carries the result of a reload.
type ReloadedMsg struct {
	Config   *model.ConfigNode
	Snapshot *model.SourceSnapshot
	Err      error
}

// filterAppliedMsg delivers the debounced filter text.
type filterAppliedMsg struct {
	text string
}

// stateSavedMsg reports the outcome of persisting the panel state.
type stateSavedMsg struct {
	err error
}

// reloadTimeout bounds one reload.
const reloadTimeout = 30 * time.Second

// WatchFileCmd returns a command that waits for file changes and sends FileChangedMsg
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		paths, ok := <-w.Changed()
		if !ok {
			return nil
		}
		return FileChangedMsg{Paths: paths}
	}
}

// ReloadCmd runs fn and wraps its result in a ReloadedMsg.
func ReloadCmd(fn ReloadFunc) tea.Cmd {
	if fn == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		cfg, snap, err := fn(ctx)
		return ReloadedMsg{Config: cfg, Snapshot: snap, Err: err}
	}
}

func waitForFilterCmd(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		return filterAppliedMsg{text: <-ch}
	}
}

func saveStateCmd(store panelstate.Store, panelID string, state model.PanelState) tea.Cmd {
	if store == nil {
		return nil
	}
	state = state.Clone()
	return func() tea.Msg {
		return stateSavedMsg{err: store.Save(context.Background(), panelID, state)}
	}
}

// offerLatest replaces any unread value in ch with v.
func offerLatest(ch chan string, v string) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
