// Package dedup remembers which intake submissions have been reconciled so a
// JetStream redelivery after a lost ack does not count views twice.
//
// Backends: Redis (SET with TTL), Postgres (processed_submissions table) and
// an in-memory map that is only allowed outside production.
//
// An event is marked only after its batch has been reconciled: a crash in
// between replays the batch rather than losing it.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/learning-platform/internal/platform/db"
)

// DefaultTTL bounds how long a processed event id is remembered.
const DefaultTTL = 7 * 24 * time.Hour

// ErrProductionRequiresBackend is returned when no durable backend is configured in production.
var ErrProductionRequiresBackend = errors.New("production requires REDIS_URL or DATABASE_URL for submission dedup; in-memory log is not allowed")

// Log records processed submission event ids.
type Log interface {
	// Seen reports whether eventID was already marked.
	Seen(ctx context.Context, eventID string) (bool, error)
	// Mark records eventID as processed.
	Mark(ctx context.Context, eventID string) error
}

// Options selects and configures a backend.
type Options struct {
	RedisURL    string
	DatabaseURL string
	TTL         time.Duration
	IsProd      bool
}

// Open creates the best available log: Redis > Postgres > memory.
// The returned close function is never nil.
func Open(ctx context.Context, opts Options) (Log, string, func(), error) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	switch {
	case opts.RedisURL != "":
		ro, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, "", nil, fmt.Errorf("redis dedup: %w", err)
		}
		client := redis.NewClient(ro)
		return NewRedisLog(client, ttl), "redis", func() { _ = client.Close() }, nil
	case opts.DatabaseURL != "":
		pool, err := db.Open(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, "", nil, fmt.Errorf("postgres dedup: %w", err)
		}
		l := NewPostgresLog(pool, ttl)
		if err := l.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, "", nil, err
		}
		return l, "postgres", pool.Close, nil
	case opts.IsProd:
		return nil, "", nil, ErrProductionRequiresBackend
	default:
		return NewMemoryLog(ttl), "memory", func() {}, nil
	}
}
