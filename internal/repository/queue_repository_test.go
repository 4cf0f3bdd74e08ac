package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photobooth/agent/internal/models"
)

func newTestRepo(t *testing.T) (*QueueRepository, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "queue.db")
	db, err := NewSQLiteDB(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewQueueRepository(db), dbPath
}

func testCapture(t *testing.T, id string, enqueuedAt time.Time) *models.QueuedCapture {
	t.Helper()

	capture, err := models.NewQueuedCapture(id, "guest-1", nil, []byte("jpeg-bytes-"+id), time.Now().UTC(), nil, "")
	require.NoError(t, err)
	capture.EnqueuedAt = enqueuedAt
	return capture
}

func TestQueueRepository_EnqueueAndList(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	t.Run("empty queue lists no captures", func(t *testing.T) {
		pending, err := repo.ListPending(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("lists captures oldest first", func(t *testing.T) {
		base := time.Date(2026, 6, 12, 20, 0, 0, 0, time.UTC)
		// Insert newest first to prove ordering comes from enqueued_at
		require.NoError(t, repo.Enqueue(ctx, testCapture(t, "c3", base.Add(2*time.Second))))
		require.NoError(t, repo.Enqueue(ctx, testCapture(t, "c1", base)))
		require.NoError(t, repo.Enqueue(ctx, testCapture(t, "c2", base.Add(time.Second))))

		pending, err := repo.ListPending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 3)
		assert.Equal(t, "c1", pending[0].ID)
		assert.Equal(t, "c2", pending[1].ID)
		assert.Equal(t, "c3", pending[2].ID)
	})

	t.Run("round-trips all fields", func(t *testing.T) {
		repo, _ := newTestRepo(t)
		groupID := "session-9"
		seq := 3
		capture, err := models.NewQueuedCapture("full", "guest-7", &groupID, []byte{1, 2, 3}, time.Date(2026, 6, 12, 20, 5, 0, 0, time.UTC), &seq, "environment")
		require.NoError(t, err)

		require.NoError(t, repo.Enqueue(ctx, capture))

		pending, err := repo.ListPending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)

		got := pending[0]
		assert.Equal(t, "full", got.ID)
		assert.Equal(t, "guest-7", got.OwnerID)
		require.NotNil(t, got.GroupID)
		assert.Equal(t, groupID, *got.GroupID)
		assert.Equal(t, []byte{1, 2, 3}, got.Payload)
		require.NotNil(t, got.SequenceNumber)
		assert.Equal(t, seq, *got.SequenceNumber)
		assert.Equal(t, "environment", got.FacingMode)
		assert.Equal(t, 0, got.RetryCount)
	})

	t.Run("preserves nil group and sequence", func(t *testing.T) {
		repo, _ := newTestRepo(t)
		require.NoError(t, repo.Enqueue(ctx, testCapture(t, "bare", time.Now().UTC())))

		pending, err := repo.ListPending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Nil(t, pending[0].GroupID)
		assert.Nil(t, pending[0].SequenceNumber)
	})
}

func TestQueueRepository_FIFOTieBreak(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	// Same enqueued_at for every record; insertion order must win
	at := time.Date(2026, 6, 12, 21, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		require.NoError(t, repo.Enqueue(ctx, testCapture(t, fmt.Sprintf("tie-%d", i), at)))
	}

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 10)
	for i, capture := range pending {
		assert.Equal(t, fmt.Sprintf("tie-%d", i), capture.ID)
	}
}

func TestQueueRepository_Remove(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, testCapture(t, "keep", time.Now().UTC())))
	require.NoError(t, repo.Enqueue(ctx, testCapture(t, "gone", time.Now().UTC().Add(time.Second))))

	t.Run("removes an existing capture", func(t *testing.T) {
		require.NoError(t, repo.Remove(ctx, "gone"))

		pending, err := repo.ListPending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "keep", pending[0].ID)
	})

	t.Run("removing a missing id is a no-op", func(t *testing.T) {
		assert.NoError(t, repo.Remove(ctx, "never-existed"))

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestQueueRepository_IncrementRetry(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, testCapture(t, "retry-me", time.Now().UTC())))

	t.Run("increments by exactly one per call", func(t *testing.T) {
		require.NoError(t, repo.IncrementRetry(ctx, "retry-me"))
		require.NoError(t, repo.IncrementRetry(ctx, "retry-me"))

		pending, err := repo.ListPending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, 2, pending[0].RetryCount)
	})

	t.Run("incrementing a missing id is a no-op", func(t *testing.T) {
		assert.NoError(t, repo.IncrementRetry(ctx, "never-existed"))
	})
}

func TestQueueRepository_Counts(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Enqueue(ctx, testCapture(t, fmt.Sprintf("n-%d", i), base.Add(time.Duration(i)*time.Second))))
	}
	// Push two captures past the ceiling
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.IncrementRetry(ctx, "n-0"))
		require.NoError(t, repo.IncrementRetry(ctx, "n-1"))
	}

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	abandoned, err := repo.CountAbandoned(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, abandoned)
}

func TestQueueRepository_Clear(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Enqueue(ctx, testCapture(t, fmt.Sprintf("x-%d", i), time.Now().UTC())))
	}

	deleted, err := repo.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestQueueRepository_SurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()

	db, err := NewSQLiteDB(dbPath)
	require.NoError(t, err)
	repo := NewQueueRepository(db)

	require.NoError(t, repo.Enqueue(ctx, testCapture(t, "persisted", time.Now().UTC())))
	require.NoError(t, repo.IncrementRetry(ctx, "persisted"))
	require.NoError(t, db.Close())

	// Same file, fresh connection: the capture and its retry count are
	// still there
	db2, err := NewSQLiteDB(dbPath)
	require.NoError(t, err)
	defer db2.Close()
	repo2 := NewQueueRepository(db2)

	pending, err := repo2.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "persisted", pending[0].ID)
	assert.Equal(t, 1, pending[0].RetryCount)
}
