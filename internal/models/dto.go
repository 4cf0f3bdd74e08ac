package models

import "time"

// Intake status values returned to the booth UI.
const (
	IntakeStatusSent   = "sent"
	IntakeStatusQueued = "queued"
)

// CaptureRequest is the request body for submitting a capture
type CaptureRequest struct {
	ID             string    `json:"id,omitempty"`
	OwnerID        string    `json:"ownerId"`
	GroupID        *string   `json:"groupId,omitempty"`
	Payload        []byte    `json:"payload"`
	CapturedAt     time.Time `json:"capturedAt"`
	SequenceNumber *int      `json:"sequenceNumber,omitempty"`
	FacingMode     string    `json:"facingMode,omitempty"`
}

// IntakeResult is returned after a capture is handed to the agent. Status is
// "sent" when the upload completed synchronously and "queued" when the
// capture was persisted for a later sync cycle - queued is a success
// outcome, not an error.
type IntakeResult struct {
	Status        string     `json:"status"`
	ID            string     `json:"id"`
	ServerPhotoID string     `json:"serverPhotoId,omitempty"`
	WebURL        string     `json:"webUrl,omitempty"`
	ThumbURL      string     `json:"thumbUrl,omitempty"`
	QueuedAt      *time.Time `json:"queuedAt,omitempty"`
}

// SentIntakeResult creates a result for a capture delivered synchronously
func SentIntakeResult(id, serverPhotoID, webURL, thumbURL string) IntakeResult {
	return IntakeResult{
		Status:        IntakeStatusSent,
		ID:            id,
		ServerPhotoID: serverPhotoID,
		WebURL:        webURL,
		ThumbURL:      thumbURL,
	}
}

// QueuedIntakeResult creates a result for a capture persisted to the queue
func QueuedIntakeResult(id string, queuedAt time.Time) IntakeResult {
	return IntakeResult{
		Status:   IntakeStatusQueued,
		ID:       id,
		QueuedAt: &queuedAt,
	}
}

// SyncSummary reports the outcome of one drain cycle
type SyncSummary struct {
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// QueueStatusResponse is returned when querying the queue
type QueueStatusResponse struct {
	Pending   int  `json:"pending"`
	Abandoned int  `json:"abandoned"`
	Online    bool `json:"online"`
	Syncing   bool `json:"syncing"`
}

// HealthResponse is returned by health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}
