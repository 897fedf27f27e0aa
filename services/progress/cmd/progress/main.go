package main

import (
	"context"
	"net"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/example/learning-platform/internal/platform/auth"
	platformcfg "github.com/example/learning-platform/internal/platform/config"
	"github.com/example/learning-platform/internal/platform/httpserver"
	"github.com/example/learning-platform/internal/platform/logging"
	"github.com/example/learning-platform/internal/platform/natsconn"
	"github.com/example/learning-platform/internal/platform/progressevents"
	"github.com/example/learning-platform/internal/platform/run"
	"github.com/example/learning-platform/services/progress/internal/config"
	"github.com/example/learning-platform/services/progress/internal/dedup"
	"github.com/example/learning-platform/services/progress/internal/grpcapi"
	"github.com/example/learning-platform/services/progress/internal/handlers"
	"github.com/example/learning-platform/services/progress/internal/notify"
	"github.com/example/learning-platform/services/progress/internal/reconcile"
	"github.com/example/learning-platform/services/progress/internal/store"
	"github.com/example/learning-platform/services/progress/internal/worker"
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

	records, backend, closeStore, err := store.Open(context.Background(), cfg.StoreOptions())
	if err != nil {
		log.Error("record store", zap.Error(err))
		run.Exit(1)
	}
	defer closeStore()
	if backend == "memory" {
		log.Warn("no REDIS_URL, DATABASE_URL or SQLITE_PATH set, using in-memory record store (development only)")
	}
	log.Info("record store ready", zap.String("backend", backend), zap.String("collection", cfg.Collection))

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "record-store",
		Timeout: cfg.BreakerOpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(cfg.BreakerMaxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	reconciler := &reconcile.Reconciler{
		Store:         store.WithBreaker(records, cb),
		Log:           log,
		Collection:    cfg.Collection,
		NotifyTimeout: cfg.NotifyTimeout,
	}

	var intake *worker.Intake
	if cfg.NATSURL != "" {
		nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.App.ServiceName, Logger: log})
		if err != nil {
			log.Error("nats connect, aggregator notifications disabled", zap.Error(err))
		} else {
			defer nc.Close()
			js, err := nc.JetStream()
			if err != nil {
				log.Error("jetstream", zap.Error(err))
				run.Exit(1)
			}
			progressevents.EnsureStream(js, log)
			reconciler.Notifier = notify.NewJetStream(progressevents.New(js, log))

			seen, dedupBackend, closeSeen, err := dedup.Open(context.Background(), cfg.DedupOptions())
			if err != nil {
				log.Error("intake dedup log", zap.Error(err))
				run.Exit(1)
			}
			defer closeSeen()
			log.Info("intake dedup ready", zap.String("backend", dedupBackend), zap.Duration("ttl", cfg.DedupTTL))

			intake, err = worker.NewIntake(nc, reconciler, seen, cfg.WorkerBatchSize, cfg.WorkerBatchIntervalMs, cfg.IntakeHandleTimeout, log)
			if err != nil {
				log.Error("progress intake init", zap.Error(err))
				run.Exit(1)
			}
		}
	} else {
		log.Warn("NATS_URL not set, aggregator notifications disabled (stub mode)")
	}

	verifier, err := auth.NewJWTVerifier(cfg.JWTSecret)
	if err != nil {
		log.Error("jwt verifier", zap.Error(err))
		run.Exit(1)
	}
	h := &handlers.ContentState{Reconciler: reconciler, Log: log}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc: func() error {
			if cb.State() == gobreaker.StateOpen {
				return gobreaker.ErrOpenState
			}
			return nil
		},
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		h.Routes(r)
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.App.HTTP.Addr, ServiceName: cfg.App.ServiceName, Logger: log, Router: r})

	lis, err := net.Listen("tcp", cfg.App.GRPC.Addr)
	if err != nil {
		log.Error("grpc listen", zap.Error(err))
		run.Exit(1)
	}
	grpcSrv := grpc.NewServer()
	grpcapi.Register(grpcSrv, &grpcapi.ContentStateService{Reconciler: reconciler, Log: log})
	reflection.Register(grpcSrv)
	go func() {
		log.Info("grpc server starting", zap.String("addr", cfg.App.GRPC.Addr))
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error("grpc serve", zap.Error(err))
		}
	}()

	intakeCtx, stopIntake := context.WithCancel(context.Background())
	intakeDone := intake.Start(intakeCtx)

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			stopped := make(chan struct{})
			go func() {
				grpcSrv.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-time.After(10 * time.Second):
				grpcSrv.Stop()
			}
			runner.Graceful(ctx, srv.Shutdown)
		}()
		return srv.Start(log)
	})

	// The intake must be joined before Wait: Reconcile adds to the notifier group.
	stopIntake()
	<-intakeDone
	reconciler.Wait()
	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
