package rollup

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/example/learning-platform/internal/platform/db"
)

var (
	// ErrNoResolver is returned when no backend can map record keys back to
	// learner identities; every event would be skipped.
	ErrNoResolver = errors.New("DATABASE_URL or REDIS_URL is required to resolve progress record keys")
	// ErrProductionRequiresDatabase is returned when production would keep rollups in memory.
	ErrProductionRequiresDatabase = errors.New("production requires DATABASE_URL; in-memory rollups are not allowed")
)

// Options selects the rollup store and the record key resolver.
type Options struct {
	DatabaseURL string
	RedisURL    string
	Collection  string
	IsProd      bool
}

// Backends names what Open selected.
type Backends struct {
	Store    string
	Resolver string
}

// Open builds the rollup store and resolver. Rollups live in Postgres, or in
// memory outside production. Keys resolve against Redis when REDIS_URL is
// set, otherwise against the progress table in Postgres.
func Open(ctx context.Context, opts Options) (Store, Resolver, Backends, func(), error) {
	if opts.DatabaseURL == "" && opts.RedisURL == "" {
		return nil, nil, Backends{}, nil, ErrNoResolver
	}
	if opts.DatabaseURL == "" && opts.IsProd {
		return nil, nil, Backends{}, nil, ErrProductionRequiresDatabase
	}

	var redisOpts *redis.Options
	if opts.RedisURL != "" {
		var err error
		if redisOpts, err = redis.ParseURL(opts.RedisURL); err != nil {
			return nil, nil, Backends{}, nil, fmt.Errorf("redis url: %w", err)
		}
	}

	var (
		store    Store
		resolver Resolver
		backends Backends
		closers  []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if opts.DatabaseURL != "" {
		pool, err := db.Open(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, nil, Backends{}, nil, err
		}
		closers = append(closers, pool.Close)
		pg := NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, nil, Backends{}, nil, err
		}
		store, backends.Store = pg, "postgres"
		resolver, backends.Resolver = NewPostgresResolver(pool, opts.Collection), "postgres"
	} else {
		store, backends.Store = NewMemoryStore(), "memory"
	}

	if redisOpts != nil {
		client := redis.NewClient(redisOpts)
		closers = append(closers, func() { _ = client.Close() })
		resolver, backends.Resolver = NewRedisResolver(client, opts.Collection), "redis"
	}
	return store, resolver, backends, closeAll, nil
}
