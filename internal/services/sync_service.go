package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/photobooth/agent/internal/models"
	"github.com/photobooth/agent/internal/observability"
	"github.com/photobooth/agent/internal/repository"
	"github.com/photobooth/agent/internal/uploader"
)

// ErrOffline is returned when a manual sync is requested while the booth
// server is unreachable
var ErrOffline = errors.New("cannot sync while offline")

// DefaultRetryCeiling is the number of failed attempts after which a
// capture is abandoned
const DefaultRetryCeiling = 5

// DefaultSyncInterval is the periodic drain cadence while online
const DefaultSyncInterval = 30 * time.Second

// SyncService drains the capture queue against the booth server. Three
// stimuli request a drain - a connectivity-restored transition, the
// periodic timer, and a manual request - and all of them funnel through a
// single gate: at most one drain cycle runs at a time, and a request that
// arrives during a cycle is dropped rather than deferred. The next periodic
// tick re-exposes whatever work the dropped request would have found.
type SyncService struct {
	queueRepo    repository.QueueRepo
	uploader     uploader.Uploader
	connectivity *ConnectivityService
	wsHub        *WebSocketHub
	metrics      *observability.QueueMetrics

	retryCeiling int
	interval     time.Duration

	mu       sync.Mutex
	draining bool
	ticker   *time.Ticker
	stopChan chan struct{}
	stopped  bool

	// cycleWG lets Stop wait for the in-flight cycle to finish its
	// current record
	cycleWG sync.WaitGroup
}

// NewSyncService creates a new SyncService
func NewSyncService(
	queueRepo repository.QueueRepo,
	up uploader.Uploader,
	connectivity *ConnectivityService,
	retryCeiling int,
	interval time.Duration,
) *SyncService {
	if retryCeiling <= 0 {
		retryCeiling = DefaultRetryCeiling
	}
	if interval <= 0 {
		interval = DefaultSyncInterval
	}

	return &SyncService{
		queueRepo:    queueRepo,
		uploader:     up,
		connectivity: connectivity,
		retryCeiling: retryCeiling,
		interval:     interval,
	}
}

// SetWebSocketHub sets the WebSocket hub for real-time notifications
func (s *SyncService) SetWebSocketHub(hub *WebSocketHub) {
	s.wsHub = hub
}

// SetMetrics sets the telemetry instruments for queue and sync metrics
func (s *SyncService) SetMetrics(metrics *observability.QueueMetrics) {
	s.metrics = metrics
}

// RetryCeiling returns the configured retry ceiling
func (s *SyncService) RetryCeiling() int {
	return s.retryCeiling
}

// IsSyncing returns whether a drain cycle is currently in progress
func (s *SyncService) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draining
}

// Start begins listening for sync triggers: connectivity transitions and
// the periodic timer. If the server is already reachable a drain starts
// immediately.
func (s *SyncService) Start() {
	s.mu.Lock()
	if s.ticker != nil {
		s.mu.Unlock()
		return // Already started
	}
	s.stopChan = make(chan struct{})
	s.stopped = false
	s.ticker = time.NewTicker(s.interval)
	s.mu.Unlock()

	transitions := s.connectivity.Subscribe()

	log.Printf("Sync service started (drain every %s while online, retry ceiling %d)", s.interval, s.retryCeiling)

	go func() {
		// Drain immediately if the server is already reachable
		if s.connectivity.Online() {
			s.TriggerSync()
		}

		for {
			select {
			case transition, ok := <-transitions:
				if !ok {
					return
				}
				if transition.Online {
					s.TriggerSync()
				}

			case <-s.ticker.C:
				// The timer only drives drains while online; offline
				// ticks are dropped at the gate anyway but skipping
				// them here avoids noise
				if s.connectivity.Online() {
					s.TriggerSync()
				}

			case <-s.stopChan:
				s.connectivity.Unsubscribe(transitions)
				s.mu.Lock()
				s.ticker.Stop()
				s.ticker = nil
				s.mu.Unlock()
				log.Println("Sync service stopped")
				return
			}
		}
	}()
}

// Stop stops the trigger loop and waits for an in-flight drain cycle to
// finish its current record. The stopped flag, not the ticker, guards the
// close: the background goroutine clears the ticker asynchronously, so a
// second Stop racing it would otherwise close stopChan twice.
func (s *SyncService) Stop() {
	s.mu.Lock()
	if s.stopChan == nil || s.stopped {
		s.mu.Unlock()
		return // Never started, or already stopped
	}
	s.stopped = true
	close(s.stopChan)
	s.mu.Unlock()

	s.cycleWG.Wait()
}

// TriggerSync requests a drain cycle in the background. The request is
// dropped if the server is offline or a cycle is already running.
func (s *SyncService) TriggerSync() {
	go s.runDrain()
}

// SyncNow runs a drain cycle on behalf of an explicit user request. Unlike
// the background triggers it fails fast with ErrOffline when the server is
// unreachable; if a cycle is already in progress the request is dropped and
// an empty summary is returned.
func (s *SyncService) SyncNow() (models.SyncSummary, error) {
	if !s.connectivity.Online() {
		return models.SyncSummary{}, ErrOffline
	}
	return s.runDrain(), nil
}

// runDrain executes one drain cycle. The draining flag is the mutual
// exclusion gate: it is set before the queue is listed and cleared on
// every exit path.
func (s *SyncService) runDrain() models.SyncSummary {
	if !s.connectivity.Online() {
		return models.SyncSummary{}
	}

	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return models.SyncSummary{}
	}
	s.draining = true
	s.cycleWG.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.draining = false
		s.mu.Unlock()
		s.cycleWG.Done()
	}()

	// The cycle owns its context: an in-flight upload always runs to
	// completion, even during shutdown
	ctx, span := observability.StartServiceSpan(context.Background(), "SyncService", "drain")
	defer span.End()

	start := time.Now()
	summary := s.drainOnce(ctx)

	observability.AddDrainAttributes(span, summary.Synced, summary.Failed, summary.Remaining)
	if s.metrics != nil {
		s.metrics.RecordDrainCycle(ctx, summary.Synced, summary.Failed, time.Since(start))
	}

	if summary.Synced > 0 || summary.Failed > 0 {
		observability.WithContext(ctx).WithFields(map[string]interface{}{
			"synced":    summary.Synced,
			"failed":    summary.Failed,
			"remaining": summary.Remaining,
			"duration":  time.Since(start).String(),
		}).Info("Drain cycle complete")
	}

	s.notifySyncComplete(summary)
	s.notifyPendingCount(ctx)

	return summary
}

// drainOnce walks the pending queue oldest first. One failed upload aborts
// the rest of the cycle: a failure means the channel is degraded right now,
// and hammering the remaining records against it would only burn their
// retry budgets. The periodic timer supplies the retry cadence instead.
func (s *SyncService) drainOnce(ctx context.Context) models.SyncSummary {
	pending, err := s.queueRepo.ListPending(ctx)
	if err != nil {
		log.Printf("Error listing pending captures: %v", err)
		return models.SyncSummary{}
	}

	synced := 0
	failed := 0

	for _, capture := range pending {
		// Shutdown requested; leave the tail for the next cycle
		if s.stopRequested() {
			break
		}

		if capture.Abandoned(s.retryCeiling) {
			// Reported every cycle but never deleted; clearing an
			// abandoned capture is an explicit administrative action
			failed++
			continue
		}

		result, err := s.uploader.Upload(ctx, capture)
		if err != nil {
			log.Printf("Failed to sync capture %s (attempt %d): %v", capture.ID, capture.RetryCount+1, err)
			if incErr := s.queueRepo.IncrementRetry(ctx, capture.ID); incErr != nil {
				log.Printf("Error incrementing retry for capture %s: %v", capture.ID, incErr)
			}
			failed++
			break
		}

		if result.AlreadyDelivered {
			log.Printf("Capture %s was already delivered, clearing from queue", capture.ID)
		}
		if err := s.queueRepo.Remove(ctx, capture.ID); err != nil {
			log.Printf("Error removing synced capture %s: %v", capture.ID, err)
		}
		synced++
	}

	return models.SyncSummary{
		Synced:    synced,
		Failed:    failed,
		Remaining: len(pending) - synced,
	}
}

func (s *SyncService) stopRequested() bool {
	s.mu.Lock()
	stopChan := s.stopChan
	s.mu.Unlock()
	if stopChan == nil {
		return false
	}
	select {
	case <-stopChan:
		return true
	default:
		return false
	}
}

func (s *SyncService) notifySyncComplete(summary models.SyncSummary) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.BroadcastToTopic(TopicSync, WSMessage{
		Type:    WSTypeSyncComplete,
		Payload: summary,
	})
}

func (s *SyncService) notifyPendingCount(ctx context.Context) {
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
