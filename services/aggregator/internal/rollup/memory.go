package rollup

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps rollups in process memory (development only).
type MemoryStore struct {
	mu       sync.RWMutex
	contents map[CourseKey]map[string]int
	courses  map[CourseKey]CourseProgress
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contents: make(map[CourseKey]map[string]int),
		courses:  make(map[CourseKey]CourseProgress),
	}
}

func (s *MemoryStore) UpsertContentStatus(_ context.Context, id Identity, status int, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ck := CourseKey{UserID: id.UserID, CourseID: id.CourseID, BatchID: id.BatchID}
	m, ok := s.contents[ck]
	if !ok {
		m = make(map[string]int)
		s.contents[ck] = m
	}
	if cur, ok := m[id.ContentID]; !ok || status > cur {
		m[id.ContentID] = status
	}
	return nil
}

func (s *MemoryStore) Recompute(_ context.Context, key CourseKey, at time.Time) (CourseProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := CourseProgress{UserID: key.UserID, CourseID: key.CourseID, BatchID: key.BatchID, UpdatedAt: at}
	for _, st := range s.contents[key] {
		cp.ContentsSeen++
		if st >= StatusInProgress {
			cp.ContentsStarted++
		}
		if st == StatusCompleted {
			cp.ContentsCompleted++
		}
	}
	cp.Status = CourseStatus(cp.ContentsSeen, cp.ContentsStarted, cp.ContentsCompleted)
	s.courses[key] = cp
	return cp, nil
}

func (s *MemoryStore) Get(_ context.Context, key CourseKey) (CourseProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.courses[key]
	if !ok {
		return CourseProgress{}, ErrNotFound
	}
	return cp, nil
}

// MemoryResolver resolves keys from a fixed map.
type MemoryResolver struct {
	mu  sync.RWMutex
	ids map[string]Identity
}

func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{ids: make(map[string]Identity)}
}

// Add registers the identity behind key.
func (r *MemoryResolver) Add(key string, id Identity) {
	r.mu.Lock()
	r.ids[key] = id
	r.mu.Unlock()
}

func (r *MemoryResolver) Resolve(_ context.Context, keys []string) (map[string]Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Identity, len(keys))
	for _, k := range keys {
		if id, ok := r.ids[k]; ok {
			out[k] = id
		}
	}
	return out, nil
}
