package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/photobooth/agent/internal/models"
	"github.com/photobooth/agent/internal/services"
)

// QueueHandler handles queue status and sync endpoints
type QueueHandler struct {
	intakeService *services.IntakeService
	syncService   *services.SyncService
	connectivity  *services.ConnectivityService
}

// NewQueueHandler creates a new QueueHandler
func NewQueueHandler(
	intakeService *services.IntakeService,
	syncService *services.SyncService,
	connectivity *services.ConnectivityService,
) *QueueHandler {
	return &QueueHandler{
		intakeService: intakeService,
		syncService:   syncService,
		connectivity:  connectivity,
	}
}

// Status returns the queue depth and sync state
// @Summary Queue status
// @Description Returns pending and needs-attention capture counts plus connectivity and sync state
// @Tags queue
// @Produce json
// @Success 200 {object} models.QueueStatusResponse
// @Failure 500 {object} models.ErrorResponse "Store error"
// @Security ApiKeyAuth
// @Router /api/queue [get]
func (h *QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	pending, err := h.intakeService.PendingCount(r.Context())
	if err != nil {
		log.Printf("Error counting pending captures: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Store error.")
		return
	}

	abandoned, err := h.intakeService.AbandonedCount(r.Context())
	if err != nil {
		log.Printf("Error counting abandoned captures: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Store error.")
		return
	}

	h.respondJSON(w, http.StatusOK, models.QueueStatusResponse{
		Pending:   pending,
		Abandoned: abandoned,
		Online:    h.connectivity.Online(),
		Syncing:   h.syncService.IsSyncing(),
	})
}

// SyncNow runs a drain cycle on behalf of the booth UI's retry button
// @Summary Trigger a sync cycle
// @Description Drains the capture queue immediately. Fails fast when the booth server is unreachable.
// @Tags queue
// @Produce json
// @Success 200 {object} models.SyncSummary "Cycle summary"
// @Failure 409 {object} models.ErrorResponse "Offline"
// @Security ApiKeyAuth
// @Router /api/queue/sync [post]
func (h *QueueHandler) SyncNow(w http.ResponseWriter, r *http.Request) {
	summary, err := h.syncService.SyncNow()
	if err != nil {
		if errors.Is(err, services.ErrOffline) {
			h.respondError(w, http.StatusConflict, "Cannot sync while offline.")
			return
		}
		log.Printf("Error running sync cycle: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Sync failed.")
		return
	}

	h.respondJSON(w, http.StatusOK, summary)
}

// Clear removes every queued capture
// @Summary Clear the queue
// @Description Administrative reset: deletes all queued captures, including abandoned ones.
// @Tags queue
// @Produce json
// @Success 200 {object} map[string]int "Number of captures deleted"
// @Failure 500 {object} models.ErrorResponse "Store error"
// @Security ApiKeyAuth
// @Router /api/queue [delete]
func (h *QueueHandler) Clear(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.intakeService.ClearQueue(r.Context())
	if err != nil {
		log.Printf("Error clearing queue: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Store error.")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (h *QueueHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *QueueHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
