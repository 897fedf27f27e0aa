package config

import (
	platformcfg "github.com/example/learning-platform/internal/platform/config"
)

// Config holds all configuration for the aggregator service.
type Config struct {
	App platformcfg.AppConfig

	DatabaseURL string // rollup tables, and the record resolver unless REDIS_URL is set
	RedisURL    string // record resolver when the progress service stores in Redis
	Collection  string // progress record collection to resolve keys against

	NATSURL         string
	NATSBatchSize   int
	BatchIntervalMs int

	JWTSecret string
}

// Load reads Config from the environment.
func Load() (Config, error) {
	app, err := platformcfg.Load("aggregator")
	if err != nil {
		return Config{}, err
	}
	return Config{
		App:             app,
		DatabaseURL:     platformcfg.Env("DATABASE_URL", ""),
		RedisURL:        platformcfg.Env("REDIS_URL", ""),
		Collection:      platformcfg.Env("PROGRESS_COLLECTION", "content_consumption"),
		NATSURL:         platformcfg.Env("NATS_URL", "nats://nats:4222"),
		NATSBatchSize:   platformcfg.EnvInt("WORKER_BATCH_SIZE", 200),
		BatchIntervalMs: platformcfg.EnvInt("WORKER_BATCH_INTERVAL_MS", 2000),
		JWTSecret:       platformcfg.Env("JWT_SECRET", ""),
	}, nil
}
