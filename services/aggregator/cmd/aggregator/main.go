package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/learning-platform/internal/platform/auth"
	platformcfg "github.com/example/learning-platform/internal/platform/config"
	"github.com/example/learning-platform/internal/platform/httpserver"
	"github.com/example/learning-platform/internal/platform/logging"
	"github.com/example/learning-platform/internal/platform/natsconn"
	"github.com/example/learning-platform/internal/platform/run"
	"github.com/example/learning-platform/services/aggregator/internal/config"
	"github.com/example/learning-platform/services/aggregator/internal/consumer"
	"github.com/example/learning-platform/services/aggregator/internal/handlers"
	"github.com/example/learning-platform/services/aggregator/internal/rollup"
)

func main() {
	if err := platformcfg.LoadDotEnv(); err != nil {
		panic(err)
	}
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.App.LogLevel, zap.String("service", cfg.App.ServiceName))
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	store, resolver, backends, closeRollups, err := rollup.Open(context.Background(), rollup.Options{
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
		Collection:  cfg.Collection,
		IsProd:      cfg.App.IsProd(),
	})
	if err != nil {
		log.Error("rollup backends", zap.Error(err))
		run.Exit(1)
	}
	defer closeRollups()
	if backends.Store == "memory" {
		log.Warn("DATABASE_URL not set, using in-memory rollups (development only)")
	}
	log.Info("rollup backends ready", zap.String("store", backends.Store), zap.String("resolver", backends.Resolver))

	agg := &rollup.Aggregator{Store: store, Resolver: resolver, Log: log}

	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.App.ServiceName, Logger: log})
	if err != nil {
		log.Error("nats connect", zap.Error(err))
		run.Exit(1)
	}
	defer nc.Close()

	c, err := consumer.New(nc, agg, cfg.NATSBatchSize, cfg.BatchIntervalMs, log)
	if err != nil {
		log.Error("consumer init", zap.Error(err))
		run.Exit(1)
	}

	verifier, err := auth.NewJWTVerifier(cfg.JWTSecret)
	if err != nil {
		log.Error("jwt verifier", zap.Error(err))
		run.Exit(1)
	}
	h := &handlers.CourseProgress{Store: store, Log: log}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc: func() error {
			if !nc.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		},
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		h.Routes(r)
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.App.HTTP.Addr, ServiceName: cfg.App.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			log.Info("aggregator consumer started")
			c.Run(ctx)
			log.Info("aggregator consumer stopped")
		}()
		go func() {
			<-ctx.Done()
			runner.Graceful(ctx, srv.Shutdown)
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
