// Package watcher reports changes to the files a panel is built from (tree
// configuration, topic source) using fsnotify, with a polling fallback for
// remote filesystems.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/topictree/pkg/debounce"
	"github.com/vanderheijden86/topictree/pkg/logging"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// Common errors.
var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
	ErrNoPaths        = errors.New("no paths to watch")
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithOnChange sets the callback invoked with the changed paths once the
// debounce interval has passed.
func WithOnChange(fn func(paths []string)) Option {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

type fileState struct {
	mtime time.Time
	size  int64
}

// Watcher monitors a set of files. Changes landing within one debounce
// interval are reported together.
type Watcher struct {
	paths            []string
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func([]string)
	onError          func(error)
	forcePoll        bool
	fsType           FilesystemType

	fsWatcher   *fsnotify.Watcher
	debouncer   *debounce.Debouncer
	useFallback bool
	states      map[string]fileState
	dirty       map[string]struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	changeCh chan []string
}

// NewWatcher creates a watcher for the given files. Empty paths are skipped.
func NewWatcher(paths []string, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		debounceDuration: debounce.DefaultDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func([]string) {},
		onError:          func(error) {},
		states:           make(map[string]fileState),
		dirty:            make(map[string]struct{}),
		changeCh:         make(chan []string, 1),
	}
	seen := make(map[string]struct{})
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		w.paths = append(w.paths, abs)
	}
	if len(w.paths) == 0 {
		return nil, ErrNoPaths
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = debounce.NewDebouncer(w.debounceDuration)
	return w, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	log := logging.Component("watcher")

	w.useFallback = w.forcePoll || envBool("TT_FORCE_POLLING") || envBool("TT_FORCE_POLL")
	w.fsType = FSTypeLocal
	for _, p := range w.paths {
		fsType := detectFilesystemTypeFunc(p)
		if isRemoteFilesystem(fsType) {
			w.fsType = fsType
			w.useFallback = true
		}
		info, err := os.Stat(p)
		switch {
		case err == nil:
			w.states[p] = fileState{mtime: info.ModTime(), size: info.Size()}
		case os.IsPermission(err):
			return ErrPermission
		default:
			// Not created yet; polling reports it once it appears.
			w.states[p] = fileState{}
		}
	}

	if !w.useFallback {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			w.useFallback = true
		} else {
			// Watch directories: editors replace files atomically.
			for _, dir := range w.dirs() {
				if err := fsw.Add(dir); err != nil {
					log.Debug().Err(err).Str("dir", dir).Msg("fsnotify add failed, polling instead")
					w.useFallback = true
					break
				}
			}
			if w.useFallback {
				fsw.Close()
			} else {
				w.fsWatcher = fsw
				go w.watchFsnotify()
			}
		}
	}
	if w.useFallback {
		go w.watchPolling()
	}

	log.Debug().Strs("paths", w.paths).Bool("polling", w.useFallback).Msg("watching")
	w.started = true
	return nil
}

func (w *Watcher) dirs() []string {
	set := make(map[string]struct{})
	for _, p := range w.paths {
		set[filepath.Dir(p)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Stop stops watching. The change channel stays open so a pending receive
// in the UI never spins on a closed channel.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	w.debouncer.Cancel()
	w.started = false
}

// IsPolling returns true if the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted returns true if the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed delivers the sorted list of changed paths after each debounced
// burst of changes.
func (w *Watcher) Changed() <-chan []string {
	return w.changeCh
}

// Paths returns the watched absolute paths.
func (w *Watcher) Paths() []string {
	return append([]string(nil), w.paths...)
}

// FilesystemType returns the classification that decided polling, or
// FSTypeLocal when every path is local.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// PollInterval returns the polling interval used in polling mode.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func (w *Watcher) watched(name string) (string, bool) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", false
	}
	for _, p := range w.paths {
		if p == abs {
			return p, true
		}
	}
	return "", false
}

func (w *Watcher) watchFsnotify() {
	w.mu.RLock()
	if w.fsWatcher == nil {
		w.mu.RUnlock()
		return
	}
	events := w.fsWatcher.Events
	errs := w.fsWatcher.Errors
	w.mu.RUnlock()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			path, ok := w.watched(event.Name)
			if !ok {
				continue
			}
			switch {
			case event.Op&fsnotify.Remove != 0:
				w.onError(ErrFileRemoved)
			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				w.markDirty(path)
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) watchPolling() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			for _, p := range w.paths {
				w.pollOne(p)
			}
		}
	}
}

func (w *Watcher) pollOne(path string) {
	info, err := os.Stat(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			w.mu.Lock()
			had := !w.states[path].mtime.IsZero()
			w.states[path] = fileState{}
			w.mu.Unlock()
			if had {
				w.onError(ErrFileRemoved)
			}
		case os.IsPermission(err):
			w.onError(ErrPermission)
		default:
			w.onError(err)
		}
		return
	}

	w.mu.Lock()
	prev := w.states[path]
	changed := info.ModTime().After(prev.mtime) || info.Size() != prev.size
	if changed {
		w.states[path] = fileState{mtime: info.ModTime(), size: info.Size()}
	}
	w.mu.Unlock()
	if changed {
		w.markDirty(path)
	}
}

func (w *Watcher) markDirty(path string) {
	w.mu.Lock()
	w.dirty[path] = struct{}{}
	w.mu.Unlock()
	w.debouncer.Trigger(w.notifyChange)
}

func (w *Watcher) notifyChange() {
	w.mu.Lock()
	started := w.started
	changed := make([]string, 0, len(w.dirty))
	for p := range w.dirty {
		changed = append(changed, p)
	}
	w.dirty = make(map[string]struct{})
	w.mu.Unlock()

	if !started || len(changed) == 0 {
		return
	}
	sort.Strings(changed)
	w.onChange(changed)

	select {
	case w.changeCh <- changed:
	default:
	}
}
