// Package app wires configuration, storage, providers and the scheduling
// services into a runnable container.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/recruitflow/scheduler/internal/scheduling/application"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
	"github.com/recruitflow/scheduler/internal/scheduling/infrastructure/audit"
	"github.com/recruitflow/scheduler/internal/scheduling/infrastructure/holdstore"
	"github.com/recruitflow/scheduler/internal/scheduling/infrastructure/notify"
	"github.com/recruitflow/scheduler/internal/scheduling/infrastructure/persistence"
	"github.com/recruitflow/scheduler/internal/scheduling/infrastructure/providers"
	caldavProvider "github.com/recruitflow/scheduler/internal/scheduling/infrastructure/providers/caldav"
	googleProvider "github.com/recruitflow/scheduler/internal/scheduling/infrastructure/providers/google"
	"github.com/recruitflow/scheduler/internal/shared/infrastructure/crypto"
	"github.com/recruitflow/scheduler/internal/shared/infrastructure/eventbus"
	"github.com/recruitflow/scheduler/internal/shared/infrastructure/migrations"
	"github.com/recruitflow/scheduler/internal/shared/infrastructure/outbox"
	"github.com/recruitflow/scheduler/pkg/config"
	"github.com/recruitflow/scheduler/pkg/observability"
	"github.com/redis/go-redis/v9"

	_ "modernc.org/sqlite"
)

// InterviewerAdmin is the mutable side of the interviewer directory,
// exposed for seeding and the admin API.
type InterviewerAdmin interface {
	Save(ctx context.Context, iv *domain.Interviewer) error
}

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Storage
	PgPool   *pgxpool.Pool
	SQLiteDB *sql.DB

	// Redis
	RedisClient *redis.Client

	// Event bus
	Publisher       eventbus.Publisher
	DomainPublisher application.EventPublisher
	OutboxRepo      outbox.Repository

	// Repositories
	BookingRepo    domain.BookingRepository
	Directory      domain.InterviewerDirectory
	DirectoryAdmin InterviewerAdmin

	// Calendar providers
	Providers    *providers.Registry
	TokenService *googleProvider.TokenService

	// Services
	Aggregator   *application.AvailabilityAggregator
	LoadBalancer *application.LoadBalancer
	Ranker       *application.SlotRanker
	HoldManager  *application.HoldManager
	Coordinator  *application.BookingCoordinator
	Rescheduler  *application.RescheduleService
	Orchestrator *application.Orchestrator

	// Observability
	Health  *observability.HealthRegistry
	Metrics observability.Metrics
}

// NewContainer builds the full dependency graph from configuration. The
// backing services degrade gracefully: without Redis, holds are
// process-local; without RabbitMQ, events stay in-process; without a
// postgres:// DATABASE_URL, storage is SQLite.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Health:  observability.NewHealthRegistry(),
		Metrics: observability.NewInMemoryMetrics(),
	}

	if err := c.initStorage(ctx, cfg, logger); err != nil {
		return nil, err
	}
	if err := c.initRedis(ctx, cfg, logger); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initEventBus(cfg, logger); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initProviders(cfg, logger); err != nil {
		c.Close()
		return nil, err
	}
	c.initServices(cfg, logger)

	return c, nil
}

func (c *Container) initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.UsesPostgres() {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to create PostgreSQL pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("failed to ping PostgreSQL: %w", err)
		}

		c.PgPool = pool
		c.OutboxRepo = outbox.NewPostgresRepository(pool)
		c.BookingRepo = persistence.NewPostgresBookingRepository(pool)
		directory := persistence.NewPostgresInterviewerDirectory(pool)
		c.Directory = directory
		c.DirectoryAdmin = directory

		c.Health.Register("database", observability.DatabaseHealthChecker(pool.Ping))

		logger.Info("PostgreSQL storage initialized")
		return nil
	}

	path := cfg.DatabaseURL
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run SQLite migrations: %w", err)
	}

	c.SQLiteDB = db
	c.OutboxRepo = outbox.NewSQLiteRepository(db)
	c.BookingRepo = persistence.NewSQLiteBookingRepository(db)
	directory := persistence.NewSQLiteInterviewerDirectory(db)
	c.Directory = directory
	c.DirectoryAdmin = directory

	c.Health.Register("database", observability.DatabaseHealthChecker(db.PingContext))

	logger.Info("SQLite storage initialized", "path", path)
	return nil
}

func (c *Container) initRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.RedisURL == "" {
		logger.Info("Redis not configured, holds are process-local")
		return nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	c.RedisClient = client
	c.Health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))

	logger.Info("Redis connected")
	return nil
}

func (c *Container) initEventBus(cfg *config.Config, logger *slog.Logger) error {
	if cfg.RabbitMQURL != "" {
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			return fmt.Errorf("failed to create RabbitMQ publisher: %w", err)
		}
		c.Publisher = publisher
		// Domain events go through the outbox and reach the broker via the
		// worker's relay, so a broker outage never loses an event.
		c.DomainPublisher = outbox.NewPublisher(c.OutboxRepo)
		return nil
	}

	bus := eventbus.NewInProcessEventBus(logger)
	c.Publisher = bus
	c.DomainPublisher = bus
	logger.Info("RabbitMQ not configured, using in-process event bus")
	return nil
}

func (c *Container) initProviders(cfg *config.Config, logger *slog.Logger) error {
	c.Providers = providers.NewRegistry(providers.DefaultBreakerConfig(), logger)

	if cfg.GoogleClientID != "" {
		if cfg.EncryptionKey == "" {
			return fmt.Errorf("ENCRYPTION_KEY is required when the Google provider is enabled")
		}
		encrypter, err := crypto.NewAESGCMFromBase64Key(cfg.EncryptionKey)
		if err != nil {
			return fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
		}

		var store googleProvider.TokenStore
		if c.PgPool != nil {
			store = persistence.NewPostgresTokenStore(c.PgPool)
		} else {
			store = persistence.NewSQLiteTokenStore(c.SQLiteDB)
		}

		tokens, err := googleProvider.NewTokenService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleTokenURL, store, encrypter)
		if err != nil {
			return err
		}
		c.TokenService = tokens

		provider := googleProvider.NewProvider(tokens, logger).WithCalendarID(cfg.GoogleCalendarID)
		c.Providers.Register(provider)
		logger.Info("Google Calendar provider registered")
	}

	if cfg.CalDAVBaseURL != "" {
		credentials := caldavProvider.StaticCredentials{
			Username: cfg.CalDAVUsername,
			Password: cfg.CalDAVPassword,
		}
		c.Providers.Register(caldavProvider.NewProvider(cfg.CalDAVBaseURL, credentials, logger))
		logger.Info("CalDAV provider registered")
	}

	return nil
}

func (c *Container) initServices(cfg *config.Config, logger *slog.Logger) {
	notifier := notify.NewBusDispatcher(c.Publisher, logger)

	var recorder application.AuditRecorder
	switch {
	case c.PgPool != nil:
		recorder = audit.NewPostgresRecorder(c.PgPool, logger)
	case c.SQLiteDB != nil:
		recorder = audit.NewSQLiteRecorder(c.SQLiteDB, logger)
	default:
		recorder = audit.NewLogRecorder(logger)
	}

	var holds application.HoldStore
	if c.RedisClient != nil {
		holds = holdstore.NewRedisHoldStore(c.RedisClient)
	} else {
		holds = application.NewMemoryHoldStore()
	}

	aggCfg := application.DefaultAggregatorConfig()
	aggCfg.TTL = cfg.AvailabilityTTL
	c.Aggregator = application.NewAvailabilityAggregator(c.Directory, c.Providers, aggCfg, logger).
		WithMetrics(c.Metrics)
	c.LoadBalancer = application.NewLoadBalancer(cfg.LoadWindow)
	c.Ranker = application.NewSlotRanker(c.Aggregator, c.Directory, c.LoadBalancer, application.RankerConfig{
		Granularity: cfg.SlotGranularity,
	}, logger)
	c.HoldManager = application.NewHoldManager(holds, cfg.HoldTTL, c.DomainPublisher, logger)
	c.Coordinator = application.NewBookingCoordinator(
		c.HoldManager,
		c.BookingRepo,
		c.Aggregator,
		c.Providers,
		c.Directory,
		c.LoadBalancer,
		c.DomainPublisher,
		notifier,
		recorder,
		application.CoordinatorConfig{
			MaxAttempts: cfg.BookingRetries,
			BackoffBase: cfg.BookingBackoff,
		},
		logger,
	)
	c.Rescheduler = application.NewRescheduleService(c.Coordinator, c.Ranker, c.DomainPublisher, logger)
	c.Orchestrator = application.NewOrchestrator(
		c.Ranker,
		c.HoldManager,
		c.Coordinator,
		c.Rescheduler,
		c.BookingRepo,
		notifier,
		logger,
	)
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		}
	}

	if c.PgPool != nil {
		c.PgPool.Close()
		c.Logger.Info("PostgreSQL connection closed")
	}

	if c.SQLiteDB != nil {
		if err := c.SQLiteDB.Close(); err != nil {
			c.Logger.Warn("error closing SQLite connection", "error", err)
		}
	}
}
