package panelstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/topictree/pkg/metrics"
	"github.com/vanderheijden86/topictree/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS panel_state (
	panel_id   TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	state      TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

const (
	retryAttempts = 3
	retryBackoff  = 50 * time.Millisecond
)

// SQLiteStore keeps one row per panel in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open state database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state database: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string { return s.path }

// Load returns the stored state of panelID.
func (s *SQLiteStore) Load(ctx context.Context, panelID string) (model.PanelState, error) {
	if err := validatePanelID(panelID); err != nil {
		return model.PanelState{}, err
	}
	var (
		version int
		raw     string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, state FROM panel_state WHERE panel_id = ?`, panelID,
	).Scan(&version, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PanelState{}, fmt.Errorf("%w: %s", ErrNotFound, panelID)
	}
	if err != nil {
		return model.PanelState{}, fmt.Errorf("loading panel %s: %w", panelID, err)
	}
	if version > SchemaVersion {
		return model.PanelState{}, fmt.Errorf("%w: panel %s: unsupported version %d", errCorrupt, panelID, version)
	}
	var state model.PanelState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return model.PanelState{}, fmt.Errorf("%w: panel %s: %v", errCorrupt, panelID, err)
	}
	return normalize(state), nil
}

// Save upserts the state of panelID.
func (s *SQLiteStore) Save(ctx context.Context, panelID string, state model.PanelState) error {
	if err := validatePanelID(panelID); err != nil {
		return err
	}
	defer metrics.Timer(metrics.StateSave)()

	raw, err := json.Marshal(normalize(state))
	if err != nil {
		return fmt.Errorf("marshaling panel %s: %w", panelID, err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO panel_state (panel_id, version, state, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(panel_id) DO UPDATE SET
				version = excluded.version,
				state = excluded.state,
				updated_at = excluded.updated_at`,
			panelID, SchemaVersion, string(raw), now)
		if err != nil {
			return fmt.Errorf("saving panel %s: %w", panelID, err)
		}
		return nil
	})
}

// Delete removes panelID.
func (s *SQLiteStore) Delete(ctx context.Context, panelID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM panel_state WHERE panel_id = ?`, panelID)
	if err != nil {
		return fmt.Errorf("deleting panel %s: %w", panelID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, panelID)
	}
	return nil
}

// List returns the stored panel IDs in sorted order.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT panel_id FROM panel_state ORDER BY panel_id`)
	if err != nil {
		return nil, fmt.Errorf("listing panels: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func withRetry(ctx context.Context, fn func() error) error {
	backoff := retryBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil || !isBusyError(err) || attempt >= retryAttempts {
			return err
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

func isBusyError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database is busy") ||
		strings.Contains(msg, "sqlite_busy")
}
