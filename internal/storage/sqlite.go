// Package storage persists forms and command history. The default backend is
// a local SQLite file; a Postgres backend with the same surface lives in
// postgres.go.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite file at dbPath and applies migrations.
func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite only supports one writer — limit to single connection to prevent SQLITE_BUSY
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS forms (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT 'Untitled form',
			description TEXT NOT NULL DEFAULT '',
			canvas_width REAL NOT NULL DEFAULT 1200,
			canvas_height REAL NOT NULL DEFAULT 2000,
			zoom REAL NOT NULL DEFAULT 1.0,
			show_grid INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS elements (
			id TEXT PRIMARY KEY,
			form_id TEXT NOT NULL REFERENCES forms(id),
			type TEXT NOT NULL DEFAULT 'text',
			label TEXT NOT NULL DEFAULT '',
			placeholder TEXT NOT NULL DEFAULT '',
			required INTEGER NOT NULL DEFAULT 0,
			x REAL NOT NULL DEFAULT 0,
			y REAL NOT NULL DEFAULT 0,
			sort_order INTEGER NOT NULL DEFAULT 0,
			validation_json TEXT NOT NULL DEFAULT '[]',
			style_json TEXT NOT NULL DEFAULT '{}',
			properties_json TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_elements_form ON elements(form_id)`,
		// Command history — individual serialized records per form
		`CREATE TABLE IF NOT EXISTS history_entries (
			id TEXT NOT NULL,
			form_id TEXT NOT NULL REFERENCES forms(id),
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			data_json TEXT NOT NULL DEFAULT '{}',
			metadata_json TEXT,
			PRIMARY KEY (form_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_entries_form ON history_entries(form_id)`,
		// History cursor — undo-side entry count per form
		`CREATE TABLE IF NOT EXISTS history_state (
			form_id TEXT PRIMARY KEY REFERENCES forms(id),
			cursor INTEGER NOT NULL DEFAULT 0
		)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			// ALTER TABLE fails if column already exists — safe to ignore
			if strings.Contains(m, "ALTER TABLE") && strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %s: %w", m[:40], err)
		}
	}

	return nil
}
