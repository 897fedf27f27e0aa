// Package store persists learner content-state records.
//
// Backend selection follows the usual order: Redis (REDIS_URL), Postgres
// (DATABASE_URL), SQLite (SQLITE_PATH) and finally an in-memory map that is
// only allowed outside production.
//
// None of the backends serialise the read-merge-write cycle for a key: two
// concurrent batches touching the same key can race, and the later write wins.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/learning-platform/internal/platform/db"
	"github.com/example/learning-platform/services/progress/internal/learnerstate"
)

// DefaultCollection holds per-content learner state.
const DefaultCollection = "content_consumption"

// ErrProductionRequiresBackend is returned when no durable backend is configured in production.
var ErrProductionRequiresBackend = errors.New("production requires REDIS_URL, DATABASE_URL or SQLITE_PATH; in-memory record store is not allowed")

// RecordStore reads and writes content-state records by derived key.
type RecordStore interface {
	// Get returns the record stored under key. A missing record is reported
	// with found=false and a nil error.
	Get(ctx context.Context, collection, key string) (rec learnerstate.Record, found bool, err error)
	// Upsert writes rec under rec.ID, replacing any previous value.
	Upsert(ctx context.Context, collection string, rec learnerstate.Record) error
}

// Options selects and configures a backend.
type Options struct {
	RedisURL    string
	DatabaseURL string
	SQLitePath  string
	IsProd      bool
}

// Open creates the best available store: Redis > Postgres > SQLite > memory.
// The returned close function is never nil.
func Open(ctx context.Context, opts Options) (RecordStore, string, func(), error) {
	switch {
	case opts.RedisURL != "":
		s, err := NewRedisStore(opts.RedisURL)
		if err != nil {
			return nil, "", nil, fmt.Errorf("redis store: %w", err)
		}
		return s, "redis", func() { _ = s.Close() }, nil
	case opts.DatabaseURL != "":
		pool, err := db.Open(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, "", nil, fmt.Errorf("postgres store: %w", err)
		}
		s := NewPostgresStore(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, "", nil, err
		}
		return s, "postgres", pool.Close, nil
	case opts.SQLitePath != "":
		s, err := OpenSQLite(opts.SQLitePath)
		if err != nil {
			return nil, "", nil, fmt.Errorf("sqlite store: %w", err)
		}
		return s, "sqlite", func() { _ = s.Close() }, nil
	case opts.IsProd:
		return nil, "", nil, ErrProductionRequiresBackend
	default:
		return NewMemoryStore(), "memory", func() {}, nil
	}
}
