package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// QueuedCapture represents a captured photo waiting for delivery to the
// booth server. The record owns the image bytes until the upload is
// confirmed; its ID doubles as the idempotency key for the upload.
type QueuedCapture struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"ownerId"`
	GroupID        *string   `json:"groupId,omitempty"`
	Payload        []byte    `json:"-"`
	CapturedAt     time.Time `json:"capturedAt"`
	SequenceNumber *int      `json:"sequenceNumber,omitempty"`
	FacingMode     string    `json:"facingMode,omitempty"`
	RetryCount     int       `json:"retryCount"`
	EnqueuedAt     time.Time `json:"enqueuedAt"`
}

// NewQueuedCapture creates a new QueuedCapture with validation. The id is
// assigned here if the caller has not already generated one; it is never
// regenerated afterwards.
func NewQueuedCapture(id, ownerID string, groupID *string, payload []byte, capturedAt time.Time, sequenceNumber *int, facingMode string) (*QueuedCapture, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrEmptyOwnerID
	}
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if capturedAt.IsZero() {
		return nil, ErrInvalidCapturedAt
	}

	if strings.TrimSpace(id) == "" {
		id = uuid.New().String()
	}
	if facingMode == "" {
		facingMode = "user"
	}

	return &QueuedCapture{
		ID:             id,
		OwnerID:        ownerID,
		GroupID:        groupID,
		Payload:        payload,
		CapturedAt:     capturedAt.UTC(),
		SequenceNumber: sequenceNumber,
		FacingMode:     facingMode,
		RetryCount:     0,
		EnqueuedAt:     time.Now().UTC(),
	}, nil
}

// Abandoned reports whether the capture has reached the retry ceiling and
// should no longer be attempted.
func (c *QueuedCapture) Abandoned(retryCeiling int) bool {
	return c.RetryCount >= retryCeiling
}

// Errors
type CaptureError struct {
	Message string
}

func (e CaptureError) Error() string {
	return e.Message
}

var (
	ErrEmptyOwnerID      = CaptureError{"owner id cannot be empty"}
	ErrEmptyPayload      = CaptureError{"capture payload cannot be empty"}
	ErrInvalidCapturedAt = CaptureError{"captured at timestamp is required"}
)
