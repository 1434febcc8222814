// Package cache persists local sync state in SQLite: per-path content
// fingerprints, so unchanged documents are skipped across restarts, and a
// snapshot of the most recently fetched remote notes for the status
// surface. The remote store stays authoritative; nothing here feeds
// equivalence decisions.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/akida/ankitex/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS files (
	path        TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	synced_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS notes (
	note_id INTEGER,
	deck    TEXT NOT NULL,
	model   TEXT NOT NULL,
	tags    TEXT NOT NULL DEFAULT '[]',
	fields  TEXT NOT NULL DEFAULT '{}'
);
`

// DB wraps a sql.DB with sync-state operations.
type DB struct {
	conn *sql.DB
}

// Stats summarizes cache contents for the status surface.
type Stats struct {
	Files int `json:"files"`
	Notes int `json:"notes"`
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cache: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Fingerprints returns the stored fingerprint for every known path.
func (db *DB) Fingerprints() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, fingerprint FROM files`)
	if err != nil {
		return nil, fmt.Errorf("cache: query fingerprints: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var path, sum string
		if err := rows.Scan(&path, &sum); err != nil {
			return nil, fmt.Errorf("cache: scan fingerprint: %w", err)
		}
		out[path] = sum
	}
	return out, rows.Err()
}

// SetFingerprint records the fingerprint of a successfully synced path.
func (db *DB) SetFingerprint(path, sum string) error {
	_, err := db.conn.Exec(`
		INSERT INTO files (path, fingerprint, synced_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET fingerprint = excluded.fingerprint, synced_at = CURRENT_TIMESTAMP`,
		path, sum)
	if err != nil {
		return fmt.Errorf("cache: set fingerprint for %s: %w", path, err)
	}
	return nil
}

// ReplaceNotes replaces the note snapshot with the given set.
func (db *DB) ReplaceNotes(notes []models.Note) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("cache: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM notes`); err != nil {
		return fmt.Errorf("cache: clear notes: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO notes (note_id, deck, model, tags, fields) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("cache: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range notes {
		tags, err := json.Marshal(n.Tags)
		if err != nil {
			return fmt.Errorf("cache: marshal tags: %w", err)
		}
		fields, err := json.Marshal(n.Fields)
		if err != nil {
			return fmt.Errorf("cache: marshal fields: %w", err)
		}
		var id any
		if n.ID != nil {
			id = *n.ID
		}
		if _, err := stmt.Exec(id, n.Deck, n.Model, string(tags), string(fields)); err != nil {
			return fmt.Errorf("cache: insert note: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache: commit: %w", err)
	}
	return nil
}

// Stats returns row counts for the status surface.
func (db *DB) Stats() (Stats, error) {
	var s Stats
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&s.Files); err != nil {
		return Stats{}, fmt.Errorf("cache: count files: %w", err)
	}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM notes`).Scan(&s.Notes); err != nil {
		return Stats{}, fmt.Errorf("cache: count notes: %w", err)
	}
	return s, nil
}
