package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"proconnect/internal/audit"
	auditstore "proconnect/internal/audit/store"
	connectionhandler "proconnect/internal/connection/handler"
	connectionmetrics "proconnect/internal/connection/metrics"
	"proconnect/internal/connection/service"
	connectionstore "proconnect/internal/connection/store"
	jwttoken "proconnect/internal/jwt_token"
	"proconnect/internal/participant/directory"
	clientstore "proconnect/internal/participant/store/client"
	consultantstore "proconnect/internal/participant/store/consultant"
	"proconnect/internal/platform/config"
	"proconnect/internal/platform/httpserver"
	"proconnect/internal/platform/kafka"
	"proconnect/internal/platform/logger"
	"proconnect/internal/platform/metrics"
	"proconnect/internal/platform/postgres"
	"proconnect/internal/platform/redis"
	httptransport "proconnect/internal/transport/http"
)

// auditBufferSize bounds the async audit channel; events beyond it are
// dropped rather than blocking request handlers.
const auditBufferSize = 256

// main wires the dependency graph and owns every resource lifecycle. Business
// logic lives in the internal feature packages; nothing here makes decisions
// beyond "is this dependency configured".
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Postgres.ApplySchema {
		if err := postgres.ApplySchema(ctx, db); err != nil {
			return err
		}
		log.Info("database schema applied")
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Audit trail: Postgres is the system of record; Kafka, when configured,
	// streams the same events for downstream consumers.
	auditOpts := []audit.PublisherOption{
		audit.WithLogger(log),
		audit.WithAsyncBuffer(auditBufferSize),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return err
		}
		defer producer.Close()
		if err := producer.EnsureTopic(ctx, 3, 1); err != nil {
			return err
		}
		auditOpts = append(auditOpts, audit.WithSink(producer))
		log.Info("audit stream enabled", "topic", cfg.Kafka.AuditTopic, "brokers", cfg.Kafka.Brokers)
	}
	publisher := audit.NewPublisher(auditstore.NewPostgres(db), auditOpts...)
	defer publisher.Close()

	// The directory resolves participant references; Redis, when configured,
	// caches display payloads in front of it.
	plainDirectory := directory.New(consultantstore.NewPostgres(db), clientstore.NewPostgres(db))
	var dir service.Directory = plainDirectory
	if redisClient != nil {
		dir = directory.NewCached(plainDirectory, redisClient.Client, cfg.Redis.DisplayTTL, log)
		log.Info("display cache enabled", "ttl", cfg.Redis.DisplayTTL)
	}

	connections := service.New(
		connectionstore.NewPostgres(db),
		dir,
		service.WithLogger(log),
		service.WithAuditPublisher(publisher),
		service.WithMetrics(connectionmetrics.New()),
	)

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)

	health := map[string]httptransport.HealthChecker{
		"postgres": func(ctx context.Context) error { return postgres.Health(ctx, db) },
	}
	if redisClient != nil {
		health["redis"] = redisClient.Health
	}

	router := httptransport.New(connectionhandler.New(connections, log), httptransport.Options{
		Logger:         log,
		Metrics:        metrics.New(),
		Validator:      jwttoken.NewJWTServiceAdapter(jwtService),
		RequestTimeout: cfg.Server.RequestTimeout,
		Health:         health,
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting proconnect", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
