package services

import (
	"context"
	"log"

	"github.com/photobooth/agent/internal/models"
	"github.com/photobooth/agent/internal/observability"
	"github.com/photobooth/agent/internal/repository"
	"github.com/photobooth/agent/internal/uploader"
)

// IntakeService decides, at the moment of capture, whether to submit the
// photo directly or persist it to the queue. Queuing is a success outcome:
// the photographer never sees a network error mid-session.
type IntakeService struct {
	queueRepo    repository.QueueRepo
	uploader     uploader.Uploader
	connectivity *ConnectivityService
	wsHub        *WebSocketHub
	metrics      *observability.QueueMetrics

	retryCeiling int
}

// NewIntakeService creates a new IntakeService
func NewIntakeService(
	queueRepo repository.QueueRepo,
	up uploader.Uploader,
	connectivity *ConnectivityService,
	retryCeiling int,
) *IntakeService {
	if retryCeiling <= 0 {
		retryCeiling = DefaultRetryCeiling
	}
	return &IntakeService{
		queueRepo:    queueRepo,
		uploader:     up,
		connectivity: connectivity,
		retryCeiling: retryCeiling,
	}
}

// SetWebSocketHub sets the WebSocket hub for real-time notifications
func (s *IntakeService) SetWebSocketHub(hub *WebSocketHub) {
	s.wsHub = hub
}

// SetMetrics sets the telemetry instruments for queue metrics
func (s *IntakeService) SetMetrics(metrics *observability.QueueMetrics) {
	s.metrics = metrics
}

// EnqueueOrSubmit handles one capture. Online, it attempts a direct upload
// and returns the server confirmation; offline, or when the direct attempt
// fails for any reason, the capture is persisted and a queued result is
// returned. Only validation and store failures surface as errors.
func (s *IntakeService) EnqueueOrSubmit(ctx context.Context, req models.CaptureRequest) (models.IntakeResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "IntakeService", "enqueueOrSubmit")
	defer span.End()

	capture, err := models.NewQueuedCapture(
		req.ID,
		req.OwnerID,
		req.GroupID,
		req.Payload,
		req.CapturedAt,
		req.SequenceNumber,
		req.FacingMode,
	)
	if err != nil {
		observability.RecordError(span, err)
		return models.IntakeResult{}, err
	}

	if s.connectivity.Online() {
		result, err := s.uploader.Upload(ctx, capture)
		if err == nil {
			if s.metrics != nil {
				s.metrics.RecordUpload(ctx, true)
			}
			observability.SetSuccess(span)
			return models.SentIntakeResult(capture.ID, result.ServerPhotoID, result.WebURL, result.ThumbURL), nil
		}
		// A flaky connection degrades to queuing, never to an error
		log.Printf("Direct upload of capture %s failed, queuing: %v", capture.ID, err)
		if s.metrics != nil {
			s.metrics.RecordUpload(ctx, false)
		}
	}

	if err := s.queueRepo.Enqueue(ctx, capture); err != nil {
		observability.RecordError(span, err)
		return models.IntakeResult{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordEnqueue(ctx)
	}
	s.notifyPendingCount(ctx)
	observability.SetSuccess(span)

	return models.QueuedIntakeResult(capture.ID, capture.EnqueuedAt), nil
}

// PendingCount returns the number of captures waiting for delivery
func (s *IntakeService) PendingCount(ctx context.Context) (int, error) {
	return s.queueRepo.Count(ctx)
}

// AbandonedCount returns the number of captures needing attention
func (s *IntakeService) AbandonedCount(ctx context.Context) (int, error) {
	return s.queueRepo.CountAbandoned(ctx, s.retryCeiling)
}

// ClearQueue removes every queued capture. This is the administrative
// reset; abandoned captures are only ever deleted through here.
func (s *IntakeService) ClearQueue(ctx context.Context) (int, error) {
	deleted, err := s.queueRepo.Clear(ctx)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.Printf("Cleared %d captures from the queue", deleted)
	}
	s.notifyPendingCount(ctx)
	return deleted, nil
}

func (s *IntakeService) notifyPendingCount(ctx context.Context) {
	if s.wsHub == nil {
		return
	}

	pending, err := s.queueRepo.Count(ctx)
	if err != nil {
		log.Printf("Error counting pending captures: %v", err)
		return
	}
	abandoned, err := s.queueRepo.CountAbandoned(ctx, s.retryCeiling)
	if err != nil {
		log.Printf("Error counting abandoned captures: %v", err)
	}

	s.wsHub.BroadcastToTopic(TopicQueue, WSMessage{
		Type:    WSTypeQueueCount,
		Payload: QueueCountPayload{Pending: pending, Abandoned: abandoned},
	})
}
