package services

import (
	"context"
	"log"
	"sync"
	"time"
)

// Prober checks whether the booth server is reachable
type Prober interface {
	Ping(ctx context.Context) error
}

// Transition is an online/offline state change
type Transition struct {
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

// ConnectivityService tracks whether the booth server is reachable and
// publishes transitions to subscribers. Notifications are best effort:
// each subscriber channel holds one pending transition and rapid flapping
// coalesces, so consumers re-read Online() for the current state.
type ConnectivityService struct {
	prober       Prober
	interval     time.Duration
	probeTimeout time.Duration

	mu          sync.RWMutex
	online      bool
	subscribers map[chan Transition]struct{}
	ticker      *time.Ticker
	stopChan    chan struct{}
	stopped     bool
}

// NewConnectivityService creates a new ConnectivityService. The service
// starts offline; the first successful probe flips it online.
func NewConnectivityService(prober Prober, interval, probeTimeout time.Duration) *ConnectivityService {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &ConnectivityService{
		prober:       prober,
		interval:     interval,
		probeTimeout: probeTimeout,
		subscribers:  make(map[chan Transition]struct{}),
	}
}

// Online returns the current connectivity state
func (s *ConnectivityService) Online() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

// Subscribe returns a channel receiving connectivity transitions. The
// channel is buffered with capacity one; a transition that arrives while
// the previous one is unread is dropped.
func (s *ConnectivityService) Subscribe() chan Transition {
	ch := make(chan Transition, 1)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription channel
func (s *ConnectivityService) Unsubscribe(ch chan Transition) {
	s.mu.Lock()
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()
}

// SetOnline records a connectivity observation. Probe results and any
// external platform signal both funnel through here; subscribers are only
// notified when the state actually changes.
func (s *ConnectivityService) SetOnline(online bool) {
	s.mu.Lock()
	if s.online == online {
		s.mu.Unlock()
		return
	}
	s.online = online
	transition := Transition{Online: online, At: time.Now().UTC()}

	// Deliver while still holding the lock: the sends never block, and
	// Unsubscribe closes channels under the same lock, so a send can never
	// land on a closed channel
	for ch := range s.subscribers {
		select {
		case ch <- transition:
		default:
			// Subscriber hasn't drained the previous transition; it will
			// read Online() when it catches up
		}
	}
	s.mu.Unlock()

	if online {
		log.Println("Connectivity restored")
	} else {
		log.Println("Connectivity lost")
	}
}

// Start begins the background probe loop
func (s *ConnectivityService) Start() {
	s.mu.Lock()
	if s.ticker != nil {
		s.mu.Unlock()
		return // Already started
	}
	s.stopChan = make(chan struct{})
	s.stopped = false
	s.ticker = time.NewTicker(s.interval)
	s.mu.Unlock()

	log.Printf("Connectivity monitor started (probe every %s)", s.interval)

	go func() {
		// Probe immediately so the agent doesn't sit offline for a full
		// interval after startup
		s.probe()

		for {
			select {
			case <-s.ticker.C:
				s.probe()
			case <-s.stopChan:
				s.mu.Lock()
				s.ticker.Stop()
				s.ticker = nil
				s.mu.Unlock()
				log.Println("Connectivity monitor stopped")
				return
			}
		}
	}()
}

// Stop stops the probe loop. Guarded by the stopped flag rather than the
// ticker, which the probe goroutine clears asynchronously.
func (s *ConnectivityService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopChan == nil || s.stopped {
		return // Never started, or already stopped
	}
	s.stopped = true
	close(s.stopChan)
}

func (s *ConnectivityService) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), s.probeTimeout)
	defer cancel()

	err := s.prober.Ping(ctx)
	s.SetOnline(err == nil)
}
