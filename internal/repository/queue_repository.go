package repository

import (
	"context"
	"database/sql"

	"github.com/photobooth/agent/internal/models"
	"github.com/photobooth/agent/internal/observability"
)

// QueueRepository handles capture queue persistence for SQLite
type QueueRepository struct {
	db *sql.DB
}

// NewQueueRepository creates a new QueueRepository
func NewQueueRepository(db *sql.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Enqueue persists a capture. The insert commits before Enqueue returns, so
// an acknowledged capture survives a crash.
func (r *QueueRepository) Enqueue(ctx context.Context, capture *models.QueuedCapture) error {
	ctx, span := observability.StartDBSpan(ctx, "INSERT", "pending_captures")
	defer span.End()

	query := `
		INSERT INTO pending_captures
			(id, owner_id, group_id, payload, captured_at, sequence_number, facing_mode, retry_count, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
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

// ListPending returns all queued captures oldest first. Rowid breaks ties
// between captures enqueued within the same timestamp tick.
func (r *QueueRepository) ListPending(ctx context.Context) ([]*models.QueuedCapture, error) {
	ctx, span := observability.StartDBSpan(ctx, "SELECT", "pending_captures")
	defer span.End()

	query := `
		SELECT id, owner_id, group_id, payload, captured_at, sequence_number, facing_mode, retry_count, enqueued_at
		FROM pending_captures
		ORDER BY enqueued_at ASC, rowid ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCaptures(rows)
}

// Remove deletes a capture after a confirmed upload. Removing a missing id
// is not an error.
func (r *QueueRepository) Remove(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_captures WHERE id = ?`, id)
	return err
}

// IncrementRetry bumps the retry count after a failed upload attempt.
// Incrementing a missing id is not an error.
func (r *QueueRepository) IncrementRetry(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE pending_captures SET retry_count = retry_count + 1 WHERE id = ?`, id)
	return err
}

// Count returns the number of queued captures
func (r *QueueRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_captures`).Scan(&count)
	return count, err
}

// CountAbandoned returns the number of captures at or past the retry ceiling
func (r *QueueRepository) CountAbandoned(ctx context.Context, retryCeiling int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_captures WHERE retry_count >= ?`, retryCeiling).Scan(&count)
	return count, err
}

// Clear removes every queued capture and returns how many were deleted
func (r *QueueRepository) Clear(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM pending_captures`)
	if err != nil {
		return 0, err
	}
	deleted, err := result.RowsAffected()
	return int(deleted), err
}

func scanCaptures(rows *sql.Rows) ([]*models.QueuedCapture, error) {
	captures := []*models.QueuedCapture{}
	for rows.Next() {
		var capture models.QueuedCapture
		if err := rows.Scan(
			&capture.ID,
			&capture.OwnerID,
			&capture.GroupID,
			&capture.Payload,
			&capture.CapturedAt,
			&capture.SequenceNumber,
			&capture.FacingMode,
			&capture.RetryCount,
			&capture.EnqueuedAt,
		); err != nil {
			return nil, err
		}
		captures = append(captures, &capture)
	}
	return captures, rows.Err()
}
