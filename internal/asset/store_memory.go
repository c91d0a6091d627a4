package asset

import (
	"context"
	"sync"

	"derisk/pkg/domain"
	"derisk/pkg/platform/tx"
)

type balanceKey struct {
	asset   domain.AssetID
	account domain.AccountID
}

type allowanceKey struct {
	asset   domain.AssetID
	owner   domain.AccountID
	spender domain.AccountID
}

// InMemoryStore registers an undo entry for every write so a failed
// transaction leaves balances untouched.
type InMemoryStore struct {
	mu         sync.RWMutex
	balances   map[balanceKey]uint64
	allowances map[allowanceKey]uint64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		balances:   make(map[balanceKey]uint64),
		allowances: make(map[allowanceKey]uint64),
	}
}

func (s *InMemoryStore) Balance(_ context.Context, asset domain.AssetID, account domain.AccountID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[balanceKey{asset, account}], nil
}

func (s *InMemoryStore) SetBalance(ctx context.Context, asset domain.AssetID, account domain.AccountID, amount uint64) error {
	key := balanceKey{asset, account}
	s.mu.Lock()
	old, existed := s.balances[key]
	s.balances[key] = amount
	s.mu.Unlock()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			s.balances[key] = old
		} else {
			delete(s.balances, key)
		}
	})
	return nil
}

func (s *InMemoryStore) Allowance(_ context.Context, asset domain.AssetID, owner, spender domain.AccountID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowances[allowanceKey{asset, owner, spender}], nil
}

func (s *InMemoryStore) SetAllowance(ctx context.Context, asset domain.AssetID, owner, spender domain.AccountID, amount uint64) error {
	key := allowanceKey{asset, owner, spender}
	s.mu.Lock()
	old, existed := s.allowances[key]
	s.allowances[key] = amount
	s.mu.Unlock()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			s.allowances[key] = old
		} else {
			delete(s.allowances, key)
		}
	})
	return nil
}
