package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photobooth/agent/internal/models"
)

func captureRequest() models.CaptureRequest {
	return models.CaptureRequest{
		OwnerID:    "guest-1",
		Payload:    []byte("jpeg-bytes"),
		CapturedAt: time.Date(2026, 6, 12, 20, 0, 0, 0, time.UTC),
	}
}

func TestIntakeService_EnqueueOrSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads directly while online", func(t *testing.T) {
		repo := &fakeQueueRepo{}
		up := newFakeUploader()
		svc := NewIntakeService(repo, up, onlineConnectivity(), 5)

		result, err := svc.EnqueueOrSubmit(ctx, captureRequest())
		require.NoError(t, err)

		assert.Equal(t, models.IntakeStatusSent, result.Status)
		assert.NotEmpty(t, result.ID)
		assert.Equal(t, "srv-"+result.ID, result.ServerPhotoID)
		assert.Len(t, up.uploadedIDs(), 1)
		assert.Empty(t, repo.ids(), "a sent capture must not be queued")
	})

	t.Run("queues while offline without attempting an upload", func(t *testing.T) {
		repo := &fakeQueueRepo{}
		up := newFakeUploader()
		svc := NewIntakeService(repo, up, offlineConnectivity(), 5)

		result, err := svc.EnqueueOrSubmit(ctx, captureRequest())
		require.NoError(t, err)

		assert.Equal(t, models.IntakeStatusQueued, result.Status)
		require.NotNil(t, result.QueuedAt)
		assert.False(t, result.QueuedAt.IsZero())
		assert.Empty(t, up.uploadedIDs())
		assert.Equal(t, []string{result.ID}, repo.ids())
	})

	t.Run("failed direct upload degrades to queuing", func(t *testing.T) {
		repo := &fakeQueueRepo{}
		up := newFakeUploader()
		svc := NewIntakeService(repo, up, onlineConnectivity(), 5)

		req := captureRequest()
		req.ID = "flaky"
		up.failIDs["flaky"] = true

		result, err := svc.EnqueueOrSubmit(ctx, req)
		require.NoError(t, err, "a flaky connection is not the caller's error")

		assert.Equal(t, models.IntakeStatusQueued, result.Status)
		assert.Equal(t, []string{"flaky"}, repo.ids())
	})

	t.Run("keeps the caller-assigned id", func(t *testing.T) {
		repo := &fakeQueueRepo{}
		svc := NewIntakeService(repo, newFakeUploader(), offlineConnectivity(), 5)

		req := captureRequest()
		req.ID = "booth-7-0042"

		result, err := svc.EnqueueOrSubmit(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "booth-7-0042", result.ID)
	})

	t.Run("rejects an invalid capture", func(t *testing.T) {
		repo := &fakeQueueRepo{}
		up := newFakeUploader()
		svc := NewIntakeService(repo, up, onlineConnectivity(), 5)

		req := captureRequest()
		req.Payload = nil

		_, err := svc.EnqueueOrSubmit(ctx, req)
		assert.ErrorIs(t, err, models.ErrEmptyPayload)
		assert.Empty(t, up.uploadedIDs())
		assert.Empty(t, repo.ids())
	})
}

func TestIntakeService_Counts(t *testing.T) {
	ctx := context.Background()
	repo := &fakeQueueRepo{}
	svc := NewIntakeService(repo, newFakeUploader(), offlineConnectivity(), 5)

	seedQueue(t, repo, 3)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.IncrementRetry(ctx, "c1"))
	}

	pending, err := svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, pending)

	abandoned, err := svc.AbandonedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, abandoned)
}

func TestIntakeService_ClearQueue(t *testing.T) {
	ctx := context.Background()
	repo := &fakeQueueRepo{}
	svc := NewIntakeService(repo, newFakeUploader(), offlineConnectivity(), 5)

	seedQueue(t, repo, 4)

	deleted, err := svc.ClearQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, deleted)

	pending, err := svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}
