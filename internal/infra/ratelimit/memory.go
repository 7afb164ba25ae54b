package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/iptu-bfa-go/internal/port"
)

type window struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is a thread-safe in-process fixed-window counter. Counters are
// per instance; use RedisStore when several replicas must share limits.
type MemoryStore struct {
	mu      sync.Mutex
	clock   port.Clock
	windows map[string]*window
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryStore creates a MemoryStore. Expired windows are swept every
// sweepEvery (no sweeping when zero).
func NewMemoryStore(clock port.Clock, sweepEvery time.Duration) *MemoryStore {
	s := &MemoryStore{
		clock:   clock,
		windows: make(map[string]*window),
		stop:    make(chan struct{}),
	}
	if sweepEvery > 0 {
		go s.cleanup(sweepEvery)
	}
	return s
}

// Incr implements port.RateLimitStore.
func (s *MemoryStore) Incr(_ context.Context, key string, d time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		w = &window{expiresAt: now.Add(d)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.expiresAt.Sub(now), nil
}

// Close stops the background sweeper.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

// cleanup periodically removes expired windows.
func (s *MemoryStore) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			now := s.clock.Now()
			for k, w := range s.windows {
				if !now.Before(w.expiresAt) {
					delete(s.windows, k)
				}
			}
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}
