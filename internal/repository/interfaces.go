package repository

import (
	"context"

	"github.com/photobooth/agent/internal/models"
)

// QueueRepo defines the interface for the durable capture queue.
// Remove and IncrementRetry are no-ops when the id does not exist: a record
// may be cleared out from under a running sync cycle and the cycle must not
// fail because of it.
type QueueRepo interface {
	Enqueue(ctx context.Context, capture *models.QueuedCapture) error
	ListPending(ctx context.Context) ([]*models.QueuedCapture, error)
	Remove(ctx context.Context, id string) error
	IncrementRetry(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	CountAbandoned(ctx context.Context, retryCeiling int) (int, error)
	Clear(ctx context.Context) (int, error)
}
