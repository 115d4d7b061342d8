package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recruitflow/scheduler/internal/scheduling/infrastructure/consumers"
	"github.com/recruitflow/scheduler/internal/shared/infrastructure/eventbus"
	"github.com/recruitflow/scheduler/internal/shared/infrastructure/migrations"
	"github.com/recruitflow/scheduler/internal/shared/infrastructure/outbox"
	"github.com/recruitflow/scheduler/pkg/config"
	"github.com/recruitflow/scheduler/pkg/observability"

	_ "modernc.org/sqlite"
)

func main() {
	logger := observability.LoggerFromEnv()
	logger.Info("starting scheduler worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.RabbitMQURL == "" {
		logger.Error("RABBITMQ_URL is required for the worker")
		os.Exit(1)
	}

	metrics := observability.NewInMemoryMetrics()
	registry := eventbus.NewConsumerRegistry(logger)

	consumer, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
		URL:    cfg.RabbitMQURL,
		Logger: logger,
	}, registry)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	consumer.RegisterConsumer(consumers.NewMetricsConsumer(metrics))
	consumer.RegisterConsumer(consumers.NewNotificationConsumer(logger))

	// The relay reads outbox rows from the same database the API server
	// writes to and publishes them to the broker.
	repo, cleanup, err := openOutboxRepo(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open outbox storage", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	if repo != nil {
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Error("failed to create RabbitMQ publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()

		processor := outbox.NewProcessor(repo, publisher, outbox.ProcessorConfig{
			PollInterval:     cfg.OutboxPollInterval,
			BatchSize:        cfg.OutboxBatchSize,
			MaxRetries:       cfg.OutboxMaxRetries,
			RetryBackoffBase: time.Second,
			RetryBackoffMax:  time.Minute,
		}, logger)
		if err := processor.Start(ctx); err != nil {
			logger.Error("failed to start outbox processor", "error", err)
			os.Exit(1)
		}
		defer processor.Stop()

		go runOutboxCleanup(ctx, repo, cfg, logger)
	}

	// Periodically surface consumption counters in the logs.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("worker counters",
					"bookings_confirmed", metrics.GetCounter(observability.MetricBookingsConfirmed),
					"bookings_cancelled", metrics.GetCounter(observability.MetricBookingsCancelled),
					"holds_acquired", metrics.GetCounter(observability.MetricHoldsAcquired),
				)
			}
		}
	}()

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("scheduler worker stopped")
}

// openOutboxRepo connects to the configured database. An empty
// DATABASE_URL means there is no shared outbox to relay, so the worker
// runs consumers only.
func openOutboxRepo(ctx context.Context, cfg *config.Config, logger *slog.Logger) (outbox.Repository, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, outbox relay disabled")
		return nil, nil, nil
	}

	if cfg.UsesPostgres() {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return outbox.NewPostgresRepository(pool), pool.Close, nil
	}

	db, err := sql.Open("sqlite", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return outbox.NewSQLiteRepository(db), func() { _ = db.Close() }, nil
}

// runOutboxCleanup prunes published rows past the retention window.
func runOutboxCleanup(ctx context.Context, repo outbox.Repository, cfg *config.Config, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.OutboxCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := repo.DeleteOld(ctx, cfg.OutboxRetentionDays)
			if err != nil {
				logger.Error("outbox cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("pruned published outbox messages", "deleted", deleted)
			}
		}
	}
}
