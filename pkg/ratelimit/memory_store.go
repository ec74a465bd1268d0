package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps buckets in process. Suitable for a single instance.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*Bucket)}
}

var _ Store = (*MemoryStore)(nil)

// Consume implements Store.
func (s *MemoryStore) Consume(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, res := Advance(s.buckets[key], limit, window, now)
	s.buckets[key] = &next
	return res, nil
}

// Sweep drops buckets whose window started more than maxAge before now.
func (s *MemoryStore) Sweep(now time.Time, maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, b := range s.buckets {
		if now.Sub(b.WindowStart) >= maxAge {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// RunJanitor sweeps stale buckets every interval until ctx is done.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now, maxAge)
		}
	}
}
