package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "REDIS_URL", "PROGRESS_COLLECTION", "NATS_URL", "WORKER_BATCH_SIZE", "WORKER_BATCH_INTERVAL_MS", "SERVICE_NAME"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.App.ServiceName != "aggregator" {
		t.Fatalf("expected service name aggregator, got %q", cfg.App.ServiceName)
	}
	if cfg.Collection != "content_consumption" {
		t.Fatalf("expected default collection, got %q", cfg.Collection)
	}
	if cfg.NATSURL != "nats://nats:4222" {
		t.Fatalf("expected default NATS URL, got %q", cfg.NATSURL)
	}
	if cfg.NATSBatchSize != 200 || cfg.BatchIntervalMs != 2000 {
		t.Fatalf("unexpected batch settings: %d/%d", cfg.NATSBatchSize, cfg.BatchIntervalMs)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PROGRESS_COLLECTION", "user_content_state")
	t.Setenv("WORKER_BATCH_SIZE", "50")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Collection != "user_content_state" {
		t.Fatalf("expected overridden collection, got %q", cfg.Collection)
	}
	if cfg.NATSBatchSize != 50 {
		t.Fatalf("expected batch size 50, got %d", cfg.NATSBatchSize)
	}
	if cfg.RedisURL != "redis://cache:6379/0" {
		t.Fatalf("expected redis URL, got %q", cfg.RedisURL)
	}
}
