package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"timetrail/internal/db"
	"timetrail/internal/db/migrations"
	"timetrail/internal/history"
	historyhandler "timetrail/internal/history/handler"
	historymetrics "timetrail/internal/history/metrics"
	"timetrail/internal/history/store/idemcache"
	pgstore "timetrail/internal/history/store/postgres"
	"timetrail/internal/history/stream"
	jwttoken "timetrail/internal/jwt_token"
	"timetrail/internal/platform/config"
	"timetrail/internal/platform/httpserver"
	"timetrail/internal/platform/logger"
	"timetrail/internal/platform/middleware"
	"timetrail/internal/platform/postgres"
	"timetrail/internal/platform/redis"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	database, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RunMigrations(ctx, database, log, migrations.FS); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := historymetrics.New()

	sink, closeSink, err := buildSink(ctx, cfg.Kafka, log)
	if err != nil {
		return err
	}
	defer closeSink()
	publisher := stream.NewPublisher(sink, log, stream.WithMetrics(m))

	store := pgstore.New(database)
	recorderOpts := []history.RecorderOption{
		history.WithStream(publisher),
		history.WithRecorderMetrics(m),
	}
	if redisClient != nil {
		recorderOpts = append(recorderOpts, history.WithCache(idemcache.New(redisClient.Client, idemcache.DefaultTTL)))
	}
	recorder := history.NewRecorder(store, log, recorderOpts...)
	query := history.NewQuery(store, history.NewScoper(), log, history.WithQueryMetrics(m))

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "timetrail", "timetrail")
	handler := historyhandler.New(recorder, query, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.ClientMetadata)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtService, log))
		handler.Register(r)
	})
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireServiceKey(middleware.StaticServiceKeys(cfg.ServiceKeys), log))
		handler.RegisterInternal(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return publisher.Run(groupCtx)
	})

	group.Go(func() error {
		log.Info("starting timetrail server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// buildSink picks the event stream sink: Kafka when brokers are configured,
// a no-op otherwise so the write path works identically in both setups.
func buildSink(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) (stream.Sink, func(), error) {
	if len(cfg.Brokers) == 0 {
		log.Info("event streaming disabled, no kafka brokers configured")
		return stream.NoopSink{}, func() {}, nil
	}

	sink, err := stream.NewKafkaSink(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	log.Info("event streaming enabled", "topic", cfg.Topic, "brokers", len(cfg.Brokers))
	return sink, sink.Close, nil
}
