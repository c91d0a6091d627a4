// Package store persists the vault ledger and its bound engine authority.
package store

import (
	"context"
	"sync"

	"derisk/internal/vault/models"
	"derisk/pkg/domain"
	"derisk/pkg/platform/tx"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	ledger models.Ledger
	engine domain.AccountID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Load(_ context.Context) (models.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger, nil
}

func (s *InMemoryStore) Save(ctx context.Context, ledger models.Ledger) error {
	s.mu.Lock()
	prev := s.ledger
	s.ledger = ledger
	s.mu.Unlock()
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.ledger = prev
	})
	return nil
}

func (s *InMemoryStore) Engine(_ context.Context) (domain.AccountID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine, nil
}

func (s *InMemoryStore) SetEngine(ctx context.Context, engine domain.AccountID) error {
	s.mu.Lock()
	prev := s.engine
	s.engine = engine
	s.mu.Unlock()
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.engine = prev
	})
	return nil
}
