package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/photobooth/agent/internal/models"
)

// Result is the server's confirmation of a delivered capture
type Result struct {
	ServerPhotoID    string
	WebURL           string
	ThumbURL         string
	AlreadyDelivered bool
}

// Uploader submits captures to the booth server. Upload must be idempotent
// on the capture id: resubmitting an id the server has already stored
// returns the original record instead of creating a duplicate.
type Uploader interface {
	Upload(ctx context.Context, capture *models.QueuedCapture) (*Result, error)
}

// TransientError is a failed upload attempt that may succeed later
// (network error, timeout, non-2xx response)
type TransientError struct {
	StatusCode int
	Message    string
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upload failed with status %d: %s", e.StatusCode, e.Message)
	}
	return "upload failed: " + e.Message
}

// Client uploads captures to the booth server over HTTP
type Client struct {
	baseURL      string
	apiKey       string
	apiKeyHeader string
	httpClient   *http.Client
}

// NewClient creates a new upload Client
func NewClient(baseURL, apiKey, apiKeyHeader string, timeout time.Duration) *Client {
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		apiKeyHeader: apiKeyHeader,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// uploadResponse mirrors the server's photo creation response
type uploadResponse struct {
	Photo struct {
		ID            string `json:"id"`
		FilenameWeb   string `json:"filename_web"`
		FilenameThumb string `json:"filename_thumb"`
	} `json:"photo"`
	AlreadyExists bool `json:"already_exists"`
}

// Upload submits one capture as multipart form data. The capture id travels
// as the photo_id field so the server can recognize a retried upload; a 409
// response means the photo landed on a previous attempt and counts as
// delivered.
func (c *Client) Upload(ctx context.Context, capture *models.QueuedCapture) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fields := map[string]string{
		"photo_id":    capture.ID,
		"user_id":     capture.OwnerID,
		"captured_at": capture.CapturedAt.Format(time.RFC3339),
		"facing_mode": capture.FacingMode,
	}
	if capture.GroupID != nil {
		fields["session_id"] = *capture.GroupID
	}
	if capture.SequenceNumber != nil {
		fields["sequence_number"] = strconv.Itoa(*capture.SequenceNumber)
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, &TransientError{Message: err.Error()}
		}
	}

	part, err := writer.CreateFormFile("file", "photo.jpg")
	if err != nil {
		return nil, &TransientError{Message: err.Error()}
	}
	if _, err := part.Write(capture.Payload); err != nil {
		return nil, &TransientError{Message: err.Error()}
	}
	if err := writer.Close(); err != nil {
		return nil, &TransientError{Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/photos", &body)
	if err != nil {
		return nil, &TransientError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Message: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var parsed uploadResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return nil, &TransientError{StatusCode: resp.StatusCode, Message: "invalid response body"}
		}
		return &Result{
			ServerPhotoID:    parsed.Photo.ID,
			WebURL:           parsed.Photo.FilenameWeb,
			ThumbURL:         parsed.Photo.FilenameThumb,
			AlreadyDelivered: parsed.AlreadyExists,
		}, nil

	case resp.StatusCode == http.StatusConflict:
		// The server already has this photo id from an earlier attempt
		// that failed after the insert committed
		result := &Result{ServerPhotoID: capture.ID, AlreadyDelivered: true}
		var parsed uploadResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err == nil && parsed.Photo.ID != "" {
			result.ServerPhotoID = parsed.Photo.ID
			result.WebURL = parsed.Photo.FilenameWeb
			result.ThumbURL = parsed.Photo.FilenameThumb
		}
		return result, nil

	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &TransientError{StatusCode: resp.StatusCode, Message: string(msg)}
	}
}

// Ping checks whether the booth server is reachable. Used by the
// connectivity probe.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}
