package dedup

import (
	"context"
	"sync"
	"time"
)

// pruneEvery bounds how many Seen calls may pass between expiry sweeps.
const pruneEvery = 1024

// memoryStore keeps IDs in a map with per-entry expiry.
type memoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	expires map[string]time.Time
	calls   int
	now     func() time.Time
}

func newMemoryStore(ttl time.Duration) *memoryStore {
	return &memoryStore{
		ttl:     ttl,
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Seen implements Store.
func (s *memoryStore) Seen(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.calls++
	if s.calls%pruneEvery == 0 {
		for k, exp := range s.expires {
			if !now.Before(exp) {
				delete(s.expires, k)
			}
		}
	}

	if exp, ok := s.expires[id]; ok && now.Before(exp) {
		return true, nil
	}
	s.expires[id] = now.Add(s.ttl)
	return false, nil
}

// Forget implements Store.
func (s *memoryStore) Forget(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expires, id)
	return nil
}

// Ping implements Store.
func (s *memoryStore) Ping(context.Context) error { return nil }

// Close implements Store.
func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expires = make(map[string]time.Time)
	return nil
}

// len returns the number of tracked IDs, expired or not.
func (s *memoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expires)
}
