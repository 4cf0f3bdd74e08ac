package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntakeResultJSON(t *testing.T) {
	t.Run("sent result omits queuedAt", func(t *testing.T) {
		result := SentIntakeResult("cap-1", "srv-9", "web/srv-9.jpg", "thumb/srv-9.jpg")

		data, err := json.Marshal(result)
		require.NoError(t, err)

		assert.NotContains(t, string(data), "queuedAt")
		assert.Contains(t, string(data), `"status":"sent"`)
	})

	t.Run("queued result carries queuedAt", func(t *testing.T) {
		at := time.Date(2026, 6, 12, 20, 0, 0, 0, time.UTC)
		result := QueuedIntakeResult("cap-2", at)

		data, err := json.Marshal(result)
		require.NoError(t, err)

		assert.Contains(t, string(data), `"queuedAt":"2026-06-12T20:00:00Z"`)
		assert.Contains(t, string(data), `"status":"queued"`)
		assert.NotContains(t, string(data), "serverPhotoId")
	})
}
