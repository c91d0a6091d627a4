package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	rec       *Record
	expiresAt time.Time
}

// InMemoryStore is the single-process Store used when Redis is not configured.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *InMemoryStore) Begin(_ context.Context, key string, ttl time.Duration) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		if e.rec == nil {
			return nil, false, ErrInFlight
		}
		return e.rec, false, nil
	}
	s.entries[key] = memoryEntry{expiresAt: now.Add(ttl)}
	return nil, true, nil
}

func (s *InMemoryStore) Complete(_ context.Context, key string, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{rec: &rec, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) Abort(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && e.rec == nil {
		delete(s.entries, key)
	}
	return nil
}
