// Package store persists registry subjects and their score history.
package store

import (
	"context"
	"sync"

	"derisk/internal/registry/models"
	"derisk/pkg/domain"
	"derisk/pkg/platform/sentinel"
	"derisk/pkg/platform/tx"
)

// InMemoryStore keeps subjects in a map. Writes register undo entries with
// the enclosing transaction.
type InMemoryStore struct {
	mu       sync.RWMutex
	subjects map[domain.SubjectID]*models.Subject
	changes  map[domain.SubjectID][]models.ScoreChange
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		subjects: make(map[domain.SubjectID]*models.Subject),
		changes:  make(map[domain.SubjectID][]models.ScoreChange),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, subject *models.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[subject.ID]; ok {
		return sentinel.ErrConflict
	}
	s.subjects[subject.ID] = subject.Clone()
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subjects, subject.ID)
	})
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.SubjectID) (*models.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subject, ok := s.subjects[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return subject.Clone(), nil
}

func (s *InMemoryStore) Update(ctx context.Context, subject *models.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.subjects[subject.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	s.subjects[subject.ID] = subject.Clone()
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.subjects[subject.ID] = prev
	})
	return nil
}

func (s *InMemoryStore) AppendChange(ctx context.Context, change models.ScoreChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.changes[change.SubjectID])
	s.changes[change.SubjectID] = append(s.changes[change.SubjectID], change)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.changes[change.SubjectID] = s.changes[change.SubjectID][:n]
	})
	return nil
}

func (s *InMemoryStore) ListChanges(_ context.Context, id domain.SubjectID) ([]models.ScoreChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ScoreChange, len(s.changes[id]))
	copy(out, s.changes[id])
	return out, nil
}
