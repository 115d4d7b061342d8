// Package audit persists the orchestrator's audit trail. Recording is
// best-effort; a failed write is logged and never surfaces to the caller.
package audit

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/recruitflow/scheduler/internal/scheduling/application"
)

// PostgresRecorder appends audit entries to the audit_log table.
type PostgresRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresRecorder creates a PostgreSQL audit recorder.
func NewPostgresRecorder(pool *pgxpool.Pool, logger *slog.Logger) *PostgresRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRecorder{pool: pool, logger: logger}
}

// Record appends one audit entry.
func (r *PostgresRecorder) Record(ctx context.Context, entry application.AuditEntry) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (actor, action, subject, rationale, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.Actor, entry.Action, entry.Subject.String(), entry.Rationale, entry.At.UTC())
	if err != nil {
		r.logger.Error("failed to record audit entry",
			"action", entry.Action,
			"subject", entry.Subject,
			"error", err,
		)
	}
}

// SQLiteRecorder appends audit entries to the audit_log table.
type SQLiteRecorder struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteRecorder creates a SQLite audit recorder.
func NewSQLiteRecorder(db *sql.DB, logger *slog.Logger) *SQLiteRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteRecorder{db: db, logger: logger}
}

// Record appends one audit entry.
func (r *SQLiteRecorder) Record(ctx context.Context, entry application.AuditEntry) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (actor, action, subject, rationale, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.Actor, entry.Action, entry.Subject.String(), entry.Rationale, entry.At.UTC().Format(time.RFC3339))
	if err != nil {
		r.logger.Error("failed to record audit entry",
			"action", entry.Action,
			"subject", entry.Subject,
			"error", err,
		)
	}
}

// LogRecorder writes audit entries to the structured log only. Used when no
// database is configured.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder creates a log-only audit recorder.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger}
}

// Record logs one audit entry.
func (r *LogRecorder) Record(_ context.Context, entry application.AuditEntry) {
	r.logger.Info("audit",
		"actor", entry.Actor,
		"action", entry.Action,
		"subject", entry.Subject,
		"rationale", entry.Rationale,
		"at", entry.At,
	)
}
