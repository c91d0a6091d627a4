// Package store persists policies and the per-subject insured aggregate.
package store

import (
	"context"
	"sort"
	"sync"

	"derisk/internal/policy/models"
	"derisk/pkg/domain"
	"derisk/pkg/platform/sentinel"
	"derisk/pkg/platform/tx"
)

// InMemoryStore keeps policies in maps. The id counter and every write
// register undo entries, so a rolled back issuance does not consume an id.
type InMemoryStore struct {
	mu       sync.RWMutex
	lastID   domain.PolicyID
	policies map[domain.PolicyID]*models.Policy
	insured  map[domain.SubjectID]uint64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		policies: make(map[domain.PolicyID]*models.Policy),
		insured:  make(map[domain.SubjectID]uint64),
	}
}

func (s *InMemoryStore) NextID(ctx context.Context) (domain.PolicyID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.lastID
	s.lastID++
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.lastID = prev
	})
	return s.lastID, nil
}

func (s *InMemoryStore) Create(ctx context.Context, p *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[p.ID]; ok {
		return sentinel.ErrConflict
	}
	s.policies[p.ID] = p.Clone()
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.policies, p.ID)
	})
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.PolicyID) (*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemoryStore) Update(ctx context.Context, p *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.policies[p.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	s.policies[p.ID] = p.Clone()
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.policies[p.ID] = prev
	})
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject domain.SubjectID) ([]*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Policy
	for _, p := range s.policies {
		if p.SubjectID == subject {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) TotalInsured(_ context.Context, subject domain.SubjectID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.insured[subject], nil
}

func (s *InMemoryStore) SetTotalInsured(ctx context.Context, subject domain.SubjectID, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.insured[subject]
	s.insured[subject] = amount
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if had {
			s.insured[subject] = prev
			return
		}
		delete(s.insured, subject)
	})
	return nil
}
