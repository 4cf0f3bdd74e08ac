package repository

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// NewPostgresDB creates and initializes a PostgreSQL database connection.
// Used by venue installations where several booths share one database.
func NewPostgresDB(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createPostgresTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createPostgresTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS pending_captures (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		group_id TEXT,
		payload BYTEA NOT NULL,
		captured_at TIMESTAMP NOT NULL,
		sequence_number INTEGER,
		facing_mode TEXT NOT NULL DEFAULT 'user',
		retry_count INTEGER NOT NULL DEFAULT 0,
		enqueued_at TIMESTAMP NOT NULL,
		seq BIGSERIAL
	);

	CREATE INDEX IF NOT EXISTS idx_pending_captures_enqueued_at ON pending_captures(enqueued_at);
	CREATE INDEX IF NOT EXISTS idx_pending_captures_owner_id ON pending_captures(owner_id);
	`

	_, err := db.Exec(schema)
	return err
}
