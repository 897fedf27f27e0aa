package config

import (
	"time"

	platformcfg "github.com/example/learning-platform/internal/platform/config"
	"github.com/example/learning-platform/services/progress/internal/dedup"
	"github.com/example/learning-platform/services/progress/internal/store"
)

// Config holds all configuration for the progress service.
type Config struct {
	App platformcfg.AppConfig

	RedisURL    string
	DatabaseURL string
	SQLitePath  string
	Collection  string

	NATSURL       string // empty disables notification and intake
	NotifyTimeout time.Duration

	JWTSecret string

	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration

	WorkerBatchSize       int
	WorkerBatchIntervalMs int
	IntakeHandleTimeout   time.Duration
	DedupTTL              time.Duration
}

// Load reads Config from the environment.
func Load() (Config, error) {
	app, err := platformcfg.Load("progress")
	if err != nil {
		return Config{}, err
	}
	return Config{
		App:                   app,
		RedisURL:              platformcfg.Env("REDIS_URL", ""),
		DatabaseURL:           platformcfg.Env("DATABASE_URL", ""),
		SQLitePath:            platformcfg.Env("SQLITE_PATH", ""),
		Collection:            platformcfg.Env("PROGRESS_COLLECTION", store.DefaultCollection),
		NATSURL:               platformcfg.Env("NATS_URL", ""),
		NotifyTimeout:         platformcfg.EnvDuration("NOTIFY_TIMEOUT", 5*time.Second),
		JWTSecret:             platformcfg.Env("JWT_SECRET", ""),
		BreakerMaxFailures:    platformcfg.EnvInt("STORE_CB_MAX_FAILURES", 5),
		BreakerOpenTimeout:    platformcfg.EnvDuration("STORE_CB_OPEN_TIMEOUT", 30*time.Second),
		WorkerBatchSize:       platformcfg.EnvInt("WORKER_BATCH_SIZE", 100),
		WorkerBatchIntervalMs: platformcfg.EnvInt("WORKER_BATCH_INTERVAL_MS", 2000),
		IntakeHandleTimeout:   platformcfg.EnvDuration("INTAKE_HANDLE_TIMEOUT", 30*time.Second),
		DedupTTL:              platformcfg.EnvDuration("INTAKE_DEDUP_TTL", dedup.DefaultTTL),
	}, nil
}

// StoreOptions selects the record store backend.
func (c Config) StoreOptions() store.Options {
	return store.Options{
		RedisURL:    c.RedisURL,
		DatabaseURL: c.DatabaseURL,
		SQLitePath:  c.SQLitePath,
		IsProd:      c.App.IsProd(),
	}
}

// DedupOptions selects the backend remembering reconciled intake event ids.
func (c Config) DedupOptions() dedup.Options {
	return dedup.Options{
		RedisURL:    c.RedisURL,
		DatabaseURL: c.DatabaseURL,
		TTL:         c.DedupTTL,
		IsProd:      c.App.IsProd(),
	}
}
