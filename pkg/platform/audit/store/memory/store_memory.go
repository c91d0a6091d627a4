// Package memory keeps settlement events in process for the in-memory ledger.
package memory

import (
	"context"
	"sync"

	audit "derisk/pkg/platform/audit"
)

// DefaultCapacity bounds the trail of a long-running in-memory server.
const DefaultCapacity = 10_000

// InMemoryStore is a bounded trail: once full, the oldest event is dropped.
type InMemoryStore struct {
	mu       sync.RWMutex
	events   []audit.Event
	capacity int
	dropped  uint64
}

type Option func(*InMemoryStore)

func WithCapacity(n int) Option {
	return func(s *InMemoryStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == s.capacity {
		copy(s.events, s.events[1:])
		s.events = s.events[:len(s.events)-1]
		s.dropped++
	}
	s.events = append(s.events, event)
	return nil
}

// Dropped reports how many events fell off the front of the trail.
func (s *InMemoryStore) Dropped() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListRecent returns up to limit of the newest events, oldest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := max(len(s.events)-limit, 0)
	return append([]audit.Event(nil), s.events[start:]...), nil
}
