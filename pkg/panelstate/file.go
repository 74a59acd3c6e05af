package panelstate

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/vanderheijden86/topictree/pkg/logging"
	"github.com/vanderheijden86/topictree/pkg/metrics"
	"github.com/vanderheijden86/topictree/pkg/model"
)

// logger returns the panelstate logger derived from the current global logger.
func logger() *zerolog.Logger {
	l := logging.Component("panelstate")
	return &l
}

// fileDocument is the on-disk layout of a FileStore:
//
//	{
//	  "version": 1,
//	  "panels": {
//	    "default": {"checkedKeys": ["name:(Uncategorized)"], "expandedKeys": [], ...}
//	  }
//	}
type fileDocument struct {
	Version int                        `json:"version"`
	Panels  map[string]json.RawMessage `json:"panels"`
}

// FileStore keeps every panel in one JSON file. Writes replace the file
// atomically.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the file at path. The file is
// created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) read() (*fileDocument, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &fileDocument{Version: SchemaVersion, Panels: map[string]json.RawMessage{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading panel state: %w", err)
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errCorrupt, s.path, err)
	}
	if doc.Version > SchemaVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", errCorrupt, s.path, doc.Version)
	}
	if doc.Panels == nil {
		doc.Panels = map[string]json.RawMessage{}
	}
	doc.Version = SchemaVersion
	return &doc, nil
}

func (s *FileStore) write(doc *fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling panel state: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".panels-*.tmp")
	if err != nil {
		return fmt.Errorf("writing panel state: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing panel state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing panel state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing panel state: %w", err)
	}
	return nil
}

// Load returns the stored state of panelID.
func (s *FileStore) Load(_ context.Context, panelID string) (model.PanelState, error) {
	if err := validatePanelID(panelID); err != nil {
		return model.PanelState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return model.PanelState{}, err
	}
	raw, ok := doc.Panels[panelID]
	if !ok {
		return model.PanelState{}, fmt.Errorf("%w: %s", ErrNotFound, panelID)
	}
	var state model.PanelState
	if err := json.Unmarshal(raw, &state); err != nil {
		return model.PanelState{}, fmt.Errorf("%w: panel %s: %v", errCorrupt, panelID, err)
	}
	return normalize(state), nil
}

// Save stores state under panelID, keeping other panels intact. A corrupt
// file is replaced.
func (s *FileStore) Save(_ context.Context, panelID string, state model.PanelState) error {
	if err := validatePanelID(panelID); err != nil {
		return err
	}
	defer metrics.Timer(metrics.StateSave)()
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if errors.Is(err, errCorrupt) {
		logger().Warn().Err(err).Msg("replacing unreadable panel state file")
		doc, err = &fileDocument{Version: SchemaVersion, Panels: map[string]json.RawMessage{}}, nil
	}
	if err != nil {
		return err
	}
	raw, err := json.Marshal(normalize(state))
	if err != nil {
		return fmt.Errorf("marshaling panel %s: %w", panelID, err)
	}
	doc.Panels[panelID] = raw
	return s.write(doc)
}

// Delete removes panelID. Deleting an unknown panel returns ErrNotFound.
func (s *FileStore) Delete(_ context.Context, panelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := doc.Panels[panelID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, panelID)
	}
	delete(doc.Panels, panelID)
	return s.write(doc)
}

// List returns the stored panel IDs in sorted order.
func (s *FileStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(doc.Panels)), nil
}

// Close is a no-op for files.
func (s *FileStore) Close() error { return nil }
