package claimtoken

import (
	"context"
	"slices"
	"sync"

	"derisk/pkg/domain"
	"derisk/pkg/platform/sentinel"
	"derisk/pkg/platform/tx"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	owners map[domain.PolicyID]domain.AccountID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{owners: make(map[domain.PolicyID]domain.AccountID)}
}

func (s *InMemoryStore) Owner(_ context.Context, id domain.PolicyID) (domain.AccountID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.owners[id]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return owner, nil
}

func (s *InMemoryStore) SetOwner(ctx context.Context, id domain.PolicyID, owner domain.AccountID) error {
	s.mu.Lock()
	prev, existed := s.owners[id]
	s.owners[id] = owner
	s.mu.Unlock()
	tx.OnRollback(ctx, func() { s.restore(id, prev, existed) })
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id domain.PolicyID) error {
	s.mu.Lock()
	prev, existed := s.owners[id]
	if !existed {
		s.mu.Unlock()
		return sentinel.ErrNotFound
	}
	delete(s.owners, id)
	s.mu.Unlock()
	tx.OnRollback(ctx, func() { s.restore(id, prev, existed) })
	return nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, owner domain.AccountID) ([]domain.PolicyID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []domain.PolicyID
	for id, o := range s.owners {
		if o == owner {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *InMemoryStore) restore(id domain.PolicyID, owner domain.AccountID, existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existed {
		s.owners[id] = owner
	} else {
		delete(s.owners, id)
	}
}
