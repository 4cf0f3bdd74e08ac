package repository

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB creates and initializes a SQLite database
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Intake and sync touch the store from different goroutines; wait for
	// locks instead of returning SQLITE_BUSY
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	-- Captures waiting for delivery to the booth server
	CREATE TABLE IF NOT EXISTS pending_captures (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		group_id TEXT,
		payload BLOB NOT NULL,
		captured_at DATETIME NOT NULL,
		sequence_number INTEGER,
		facing_mode TEXT NOT NULL DEFAULT 'user',
		retry_count INTEGER NOT NULL DEFAULT 0,
		enqueued_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pending_captures_enqueued_at ON pending_captures(enqueued_at);
	CREATE INDEX IF NOT EXISTS idx_pending_captures_owner_id ON pending_captures(owner_id);
	`

	_, err := db.Exec(schema)
	return err
}
