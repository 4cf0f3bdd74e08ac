package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/photobooth/agent/internal/models"
	"github.com/photobooth/agent/internal/services"
)

// CaptureHandler handles capture intake endpoints
type CaptureHandler struct {
	intakeService *services.IntakeService
}

// NewCaptureHandler creates a new CaptureHandler
func NewCaptureHandler(intakeService *services.IntakeService) *CaptureHandler {
	return &CaptureHandler{intakeService: intakeService}
}

// Submit handles a capture from the booth UI
// @Summary Submit a capture
// @Description Submit a captured photo. Uploads directly when the booth server is reachable, otherwise queues it for a later sync cycle. A queued capture is a success, not an error.
// @Tags captures
// @Accept json
// @Produce json
// @Param capture body models.CaptureRequest true "Captured photo"
// @Success 200 {object} models.IntakeResult "Capture sent or queued"
// @Failure 400 {object} models.ErrorResponse "Invalid capture"
// @Failure 500 {object} models.ErrorResponse "Store error"
// @Security ApiKeyAuth
// @Router /api/captures [post]
func (h *CaptureHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Request body must be valid JSON.")
		return
	}

	result, err := h.intakeService.EnqueueOrSubmit(r.Context(), req)
	if err != nil {
		var captureErr models.CaptureError
		if errors.As(err, &captureErr) {
			h.respondError(w, http.StatusBadRequest, captureErr.Message)
			return
		}
		log.Printf("Error handling capture: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to persist capture.")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

func (h *CaptureHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *CaptureHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
