package repository

import (
	"context"
	"database/sql"

	"github.com/photobooth/agent/internal/models"
)

// QueueRepositoryPostgres handles capture queue persistence for PostgreSQL
type QueueRepositoryPostgres struct {
	db *sql.DB
}

// NewQueueRepositoryPostgres creates a new QueueRepositoryPostgres
func NewQueueRepositoryPostgres(db *sql.DB) *QueueRepositoryPostgres {
	return &QueueRepositoryPostgres{db: db}
}

// Enqueue persists a capture
func (r *QueueRepositoryPostgres) Enqueue(ctx context.Context, capture *models.QueuedCapture) error {
	query := `
		INSERT INTO pending_captures
			(id, owner_id, group_id, payload, captured_at, sequence_number, facing_mode, retry_count, enqueued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		capture.ID,
		capture.OwnerID,
		capture.GroupID,
		capture.Payload,
		capture.CapturedAt,
		capture.SequenceNumber,
		capture.FacingMode,
		capture.RetryCount,
		capture.EnqueuedAt,
	)
	return err
}

// ListPending returns all queued captures oldest first. The seq column
// breaks ties between captures enqueued within the same timestamp tick.
func (r *QueueRepositoryPostgres) ListPending(ctx context.Context) ([]*models.QueuedCapture, error) {
	query := `
		SELECT id, owner_id, group_id, payload, captured_at, sequence_number, facing_mode, retry_count, enqueued_at
		FROM pending_captures
		ORDER BY enqueued_at ASC, seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCaptures(rows)
}

// Remove deletes a capture after a confirmed upload
func (r *QueueRepositoryPostgres) Remove(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_captures WHERE id = $1`, id)
	return err
}

// IncrementRetry bumps the retry count after a failed upload attempt
func (r *QueueRepositoryPostgres) IncrementRetry(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE pending_captures SET retry_count = retry_count + 1 WHERE id = $1`, id)
	return err
}

// Count returns the number of queued captures
func (r *QueueRepositoryPostgres) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_captures`).Scan(&count)
	return count, err
}

// CountAbandoned returns the number of captures at or past the retry ceiling
func (r *QueueRepositoryPostgres) CountAbandoned(ctx context.Context, retryCeiling int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_captures WHERE retry_count >= $1`, retryCeiling).Scan(&count)
	return count, err
}

// Clear removes every queued capture and returns how many were deleted
func (r *QueueRepositoryPostgres) Clear(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM pending_captures`)
	if err != nil {
		return 0, err
	}
	deleted, err := result.RowsAffected()
	return int(deleted), err
}
