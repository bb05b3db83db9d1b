// Package logstore persists session transcripts and backend events in a
// local SQLite database, so conversations survive restarts and can be
// reviewed offline.
package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite"
)

// Schema is the DDL for the session log table. [Open] applies it on every
// start; CREATE IF NOT EXISTS makes that idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS session_logs (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT    NOT NULL,
    level      TEXT    NOT NULL DEFAULT '',
    message    TEXT    NOT NULL,
    logged_at  TEXT    NOT NULL,
    created_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_session_logs_session ON session_logs(session_id);
CREATE INDEX IF NOT EXISTS idx_session_logs_created ON session_logs(created_at);
`

// Entry is one persisted session log line.
type Entry struct {
	ID        int64
	SessionID string
	Level     string
	Message   string
	LoggedAt  string
	CreatedAt time.Time
}

// Store is a SQLite-backed session log. Safe for concurrent use; database/sql
// serialises access to the single connection pool.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the per-user location of the log database.
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, "voxfolio", "voxfolio.sqlite")
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logstore: create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("logstore: open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("logstore: ping db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("logstore: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Ping verifies the database connection is still usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Append persists one log entry for the given session.
func (s *Store) Append(ctx context.Context, sessionID, level, loggedAt, message string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_logs (session_id, level, message, logged_at) VALUES (?, ?, ?, ?)`,
		sessionID, level, message, loggedAt,
	)
	if err != nil {
		return fmt.Errorf("logstore: append: %w", err)
	}
	return nil
}

// List returns all entries for a session in insertion order.
func (s *Store) List(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, level, message, logged_at, created_at
		 FROM session_logs WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("logstore: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Level, &e.Message, &e.LoggedAt, &created); err != nil {
			return nil, fmt.Errorf("logstore: scan: %w", err)
		}
		if t, err := time.Parse("2006-01-02T15:04:05.999Z", created); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("logstore: iterate: %w", err)
	}
	return entries, nil
}

// Sessions returns the distinct session IDs present in the store, most
// recent first.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM session_logs GROUP BY session_id ORDER BY max(id) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("logstore: sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("logstore: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Prune deletes entries older than the cutoff. Returns the number removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM session_logs WHERE created_at < ?`,
		before.UTC().Format("2006-01-02T15:04:05.999Z"),
	)
	if err != nil {
		return 0, fmt.Errorf("logstore: prune: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
