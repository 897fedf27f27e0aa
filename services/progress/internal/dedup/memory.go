package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryLog is a development-only log. Entries are lost on restart.
type MemoryLog struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time // event id -> expiry
}

func NewMemoryLog(ttl time.Duration) *MemoryLog {
	return &MemoryLog{ttl: ttl, now: time.Now, seen: make(map[string]time.Time)}
}

func (l *MemoryLog) Seen(_ context.Context, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.seen[eventID]
	if !ok {
		return false, nil
	}
	if !l.now().Before(exp) {
		delete(l.seen, eventID)
		return false, nil
	}
	return true, nil
}

func (l *MemoryLog) Mark(_ context.Context, eventID string) error {
	l.mu.Lock()
	l.seen[eventID] = l.now().Add(l.ttl)
	l.mu.Unlock()
	return nil
}
