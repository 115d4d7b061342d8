package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv        string
	LogLevel      string
	HTTPAddr      string
	EncryptionKey string

	// Database. DATABASE_URL selects the backend: a postgres:// URL uses
	// pgx, anything else is treated as a SQLite file path. Empty means
	// in-memory SQLite.
	DatabaseURL string

	// Redis. Empty disables the shared hold store and holds stay
	// process-local.
	RedisURL string

	// RabbitMQ. Empty selects the in-process event bus.
	RabbitMQURL string

	// Scheduling
	SlotGranularity time.Duration
	HoldTTL         time.Duration
	AvailabilityTTL time.Duration
	LoadWindow      time.Duration
	BookingRetries  int
	BookingBackoff  time.Duration

	// Outbox relay
	OutboxPollInterval    time.Duration
	OutboxBatchSize       int
	OutboxMaxRetries      int
	OutboxCleanupInterval time.Duration
	OutboxRetentionDays   int

	// Google Calendar
	GoogleClientID     string
	GoogleClientSecret string
	GoogleTokenURL     string
	GoogleCalendarID   string

	// CalDAV
	CalDAVBaseURL  string
	CalDAVUsername string
	CalDAVPassword string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		HTTPAddr:      getEnv("HTTP_ADDR", "0.0.0.0:8080"),
		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		SlotGranularity: getDurationEnv("SLOT_GRANULARITY", 15*time.Minute),
		HoldTTL:         getDurationEnv("HOLD_TTL", 2*time.Minute),
		AvailabilityTTL: getDurationEnv("AVAILABILITY_TTL", 5*time.Minute),
		LoadWindow:      getDurationEnv("LOAD_WINDOW", 14*24*time.Hour),
		BookingRetries:  getIntEnv("BOOKING_RETRIES", 3),
		BookingBackoff:  getDurationEnv("BOOKING_BACKOFF", 500*time.Millisecond),

		OutboxPollInterval:    getDurationEnv("OUTBOX_POLL_INTERVAL", 100*time.Millisecond),
		OutboxBatchSize:       getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:      getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxCleanupInterval: getDurationEnv("OUTBOX_CLEANUP_INTERVAL", time.Hour),
		OutboxRetentionDays:   getIntEnv("OUTBOX_RETENTION_DAYS", 7),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleTokenURL:     getEnv("GOOGLE_TOKEN_URL", ""),
		GoogleCalendarID:   getEnv("GOOGLE_CALENDAR_ID", "primary"),

		CalDAVBaseURL:  getEnv("CALDAV_BASE_URL", ""),
		CalDAVUsername: getEnv("CALDAV_USERNAME", ""),
		CalDAVPassword: getEnv("CALDAV_PASSWORD", ""),
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UsesPostgres reports whether DATABASE_URL points at PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return len(c.DatabaseURL) >= 8 && c.DatabaseURL[:8] == "postgres"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
