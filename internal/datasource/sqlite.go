package datasource

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/topictree/pkg/loader"
	"github.com/vanderheijden86/topictree/pkg/metrics"
	"github.com/vanderheijden86/topictree/pkg/model"
)

// Schema is the layout of a SQLite topic database.
const Schema = `
CREATE TABLE IF NOT EXISTS topics (
	name     TEXT PRIMARY KEY,
	datatype TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS namespaces (
	topic     TEXT NOT NULL,
	namespace TEXT NOT NULL,
	PRIMARY KEY (topic, namespace)
);
CREATE TABLE IF NOT EXISTS scene_errors (
	topic_key TEXT NOT NULL,
	message   TEXT NOT NULL
);`

// SQLiteReader provides read access to a topic database
type SQLiteReader struct {
	db   *sql.DB
	path string
}

// NewSQLiteReader opens a topic database for reading
func NewSQLiteReader(source DataSource) (*SQLiteReader, error) {
	if source.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not SQLite: %s", source.Type)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", source.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger().Debug().Err(err).Str("pragma", pragma).Msg("pragma ignored")
		}
	}

	return &SQLiteReader{db: db, path: source.Path}, nil
}

// Close closes the database connection
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CountTopics returns the number of topics.
func (r *SQLiteReader) CountTopics() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM topics`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting topics in %s: %w", r.path, err)
	}
	return n, nil
}

// LoadSnapshot reads topics, namespaces and scene errors. Topics keep
// their stored position order.
func (r *SQLiteReader) LoadSnapshot(ctx context.Context) (*model.SourceSnapshot, error) {
	defer metrics.Timer(metrics.TopicSourceLoad)()

	b := loader.NewSnapshotBuilder()

	rows, err := r.db.QueryContext(ctx, `SELECT name, datatype FROM topics ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("reading topics: %w", err)
	}
	for rows.Next() {
		var name, datatype string
		if err := rows.Scan(&name, &datatype); err != nil {
			rows.Close()
			return nil, err
		}
		b.AddTopic(name, datatype)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx, `SELECT topic, namespace FROM namespaces ORDER BY topic, namespace`)
	if err != nil {
		return nil, fmt.Errorf("reading namespaces: %w", err)
	}
	for rows.Next() {
		var topic, ns string
		if err := rows.Scan(&topic, &ns); err != nil {
			rows.Close()
			return nil, err
		}
		b.AddNamespace(topic, ns)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx, `SELECT topic_key, message FROM scene_errors ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("reading scene errors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, msg string
		if err := rows.Scan(&key, &msg); err != nil {
			return nil, err
		}
		b.AddSceneError(key, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return b.Snapshot(), nil
}

// WriteSQLite creates (or replaces the contents of) a topic database at
// path from snap.
func WriteSQLite(ctx context.Context, path string, snap *model.SourceSnapshot) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return fmt.Errorf("cannot open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM topics`, `DELETE FROM namespaces`, `DELETE FROM scene_errors`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	for i, t := range snap.Topics {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO topics (name, datatype, position) VALUES (?, ?, ?)`, t.Name, t.Datatype, i); err != nil {
			return fmt.Errorf("writing topic %s: %w", t.Name, err)
		}
	}
	for topic, nss := range snap.NamespacesByTopic {
		for _, ns := range nss {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO namespaces (topic, namespace) VALUES (?, ?)`, topic, ns); err != nil {
				return fmt.Errorf("writing namespace %s:%s: %w", topic, ns, err)
			}
		}
	}
	for key, msgs := range snap.SceneErrorsByTopicKey {
		for _, msg := range msgs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO scene_errors (topic_key, message) VALUES (?, ?)`, key, msg); err != nil {
				return fmt.Errorf("writing scene error for %s: %w", key, err)
			}
		}
	}
	return tx.Commit()
}
