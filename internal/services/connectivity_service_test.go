package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyProber fails or succeeds according to a switch the test flips
type flakyProber struct {
	mu   sync.Mutex
	fail bool
}

func (p *flakyProber) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("connection refused")
	}
	return nil
}

func (p *flakyProber) setFail(fail bool) {
	p.mu.Lock()
	p.fail = fail
	p.mu.Unlock()
}

func TestConnectivityService_StartsOffline(t *testing.T) {
	svc := NewConnectivityService(&flakyProber{}, time.Hour, time.Second)
	assert.False(t, svc.Online())
}

func TestConnectivityService_SetOnline(t *testing.T) {
	svc := NewConnectivityService(&flakyProber{}, time.Hour, time.Second)
	ch := svc.Subscribe()
	defer svc.Unsubscribe(ch)

	t.Run("notifies on state change", func(t *testing.T) {
		svc.SetOnline(true)
		assert.True(t, svc.Online())

		select {
		case transition := <-ch:
			assert.True(t, transition.Online)
			assert.False(t, transition.At.IsZero())
		default:
			t.Fatal("expected a transition notification")
		}
	})

	t.Run("same state is not a transition", func(t *testing.T) {
		svc.SetOnline(true)

		select {
		case <-ch:
			t.Fatal("repeated observation must not notify")
		default:
		}
	})

	t.Run("notifies when connectivity is lost", func(t *testing.T) {
		svc.SetOnline(false)
		assert.False(t, svc.Online())

		select {
		case transition := <-ch:
			assert.False(t, transition.Online)
		default:
			t.Fatal("expected a transition notification")
		}
	})
}

func TestConnectivityService_SlowSubscriberCoalesces(t *testing.T) {
	svc := NewConnectivityService(&flakyProber{}, time.Hour, time.Second)
	ch := svc.Subscribe()
	defer svc.Unsubscribe(ch)

	// Flap without reading; the channel holds exactly one transition and
	// the rest are dropped instead of blocking the publisher
	svc.SetOnline(true)
	svc.SetOnline(false)
	svc.SetOnline(true)

	transition := <-ch
	assert.True(t, transition.Online)

	select {
	case <-ch:
		t.Fatal("only one transition should be buffered")
	default:
	}

	// Current state is always available directly
	assert.True(t, svc.Online())
}

func TestConnectivityService_Unsubscribe(t *testing.T) {
	svc := NewConnectivityService(&flakyProber{}, time.Hour, time.Second)
	ch := svc.Subscribe()

	svc.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open, "unsubscribed channel should be closed")

	// Unsubscribing twice is safe
	svc.Unsubscribe(ch)
	svc.SetOnline(true)
}

func TestConnectivityService_ConcurrentStops(t *testing.T) {
	for i := 0; i < 100; i++ {
		svc := NewConnectivityService(&flakyProber{}, time.Hour, time.Second)
		svc.Start()

		var wg sync.WaitGroup
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				svc.Stop()
			}()
		}
		wg.Wait()
	}
}

func TestConnectivityService_FlappingDuringUnsubscribe(t *testing.T) {
	svc := NewConnectivityService(&flakyProber{}, time.Hour, time.Second)

	// Flap the state from several goroutines while subscriptions churn; a
	// transition must never be delivered to a channel that Unsubscribe has
	// already closed
	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(online bool) {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					svc.SetOnline(online)
					svc.SetOnline(!online)
				}
			}
		}(i%2 == 0)
	}

	for i := 0; i < 200; i++ {
		ch := svc.Subscribe()
		select {
		case <-ch:
		default:
		}
		svc.Unsubscribe(ch)
	}

	close(done)
	wg.Wait()
}

func TestConnectivityService_ProbeLoop(t *testing.T) {
	prober := &flakyProber{fail: true}
	svc := NewConnectivityService(prober, 10*time.Millisecond, time.Second)

	svc.Start()
	defer svc.Stop()

	// Failing probes keep the service offline
	time.Sleep(50 * time.Millisecond)
	assert.False(t, svc.Online())

	prober.setFail(false)
	require.Eventually(t, func() bool {
		return svc.Online()
	}, 5*time.Second, 10*time.Millisecond, "service should come online once probes succeed")

	prober.setFail(true)
	require.Eventually(t, func() bool {
		return !svc.Online()
	}, 5*time.Second, 10*time.Millisecond, "service should go offline once probes fail")
}
