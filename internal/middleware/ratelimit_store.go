package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/coreleven/coreleven-server/internal/cache"
)

// RateStore coordinates rate limiting counters for a specific key.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

// memoryRateStore is a process-local RateStore. Expired windows are reaped
// lazily on access, so it needs no background goroutine.
type memoryRateStore struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	clock   func() time.Time
}

type rateWindow struct {
	count int
	until time.Time
}

// reapThreshold bounds how large the window map may grow before a full sweep.
const reapThreshold = 4096

// NewMemoryRateStore constructs an in-memory rate store.
func NewMemoryRateStore() RateStore {
	return &memoryRateStore{
		windows: make(map[string]*rateWindow),
		clock:   time.Now,
	}
}

func (s *memoryRateStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}

	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.windows) > reapThreshold {
		for k, w := range s.windows {
			if now.After(w.until) {
				delete(s.windows, k)
			}
		}
	}

	w, ok := s.windows[key]
	if !ok || now.After(w.until) {
		w = &rateWindow{until: now.Add(window)}
		s.windows[key] = w
	}
	w.count++

	return w.count, w.until.Sub(now), nil
}

// storeRateStore adapts a cache.Store into a RateStore so counters can be
// shared by every server instance pointing at the same database.
type storeRateStore struct {
	store cache.Store
}

// NewDatabaseRateStore builds a RateStore on the SQL-backed cache.
func NewDatabaseRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return &storeRateStore{store: store}
}

func (s *storeRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, key, window)
	return int(count), ttl, err
}
