package repository

import (
	"context"
	"sync"

	"github.com/matthewbaird/collegeadmin/internal/record"
)

// MemoryStore implements Store using in-memory slices.
// Intended for demos and testing.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]record.Record
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]record.Record)}
}

func (s *MemoryStore) List(_ context.Context, entity string) ([]record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]record.Record, len(s.records[entity]))
	for i, r := range s.records[entity] {
		out[i] = r.Clone()
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, entity, id string) (record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(entity, id); i >= 0 {
		return s.records[entity][i].Clone(), nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Insert(_ context.Context, entity string, rec record.Record) (record.Record, error) {
	id := rec.ID()
	if id == "" {
		id = NewID()
	}
	stored := prepare(rec, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index(entity, id) >= 0 {
		return nil, ErrDuplicate
	}
	s.records[entity] = append(s.records[entity], stored)
	return stored.Clone(), nil
}

func (s *MemoryStore) Replace(_ context.Context, entity, id string, rec record.Record) (record.Record, error) {
	stored := prepare(rec, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(entity, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	s.records[entity][i] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, entity, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(entity, id)
	if i < 0 {
		return ErrNotFound
	}
	recs := s.records[entity]
	s.records[entity] = append(recs[:i:i], recs[i+1:]...)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) index(entity, id string) int {
	for i, r := range s.records[entity] {
		if r.ID() == id {
			return i
		}
	}
	return -1
}
