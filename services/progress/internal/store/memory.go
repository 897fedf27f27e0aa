package store

import (
	"context"
	"sync"

	"github.com/example/learning-platform/services/progress/internal/learnerstate"
)

// MemoryStore is a development-only in-memory implementation.
// State is lost on restart and is not shared between instances.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]learnerstate.Record // collection -> key -> record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]learnerstate.Record)}
}

func (s *MemoryStore) Get(_ context.Context, collection, key string) (learnerstate.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.collections[collection][key]
	return rec, ok, nil
}

func (s *MemoryStore) Upsert(_ context.Context, collection string, rec learnerstate.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		c = make(map[string]learnerstate.Record)
		s.collections[collection] = c
	}
	c[rec.ID] = rec
	return nil
}

// Len returns the number of records in a collection.
func (s *MemoryStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}
