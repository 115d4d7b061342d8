package audit

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/application"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupAuditTestDB(t *testing.T) *sql.DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	schemaPath := filepath.Join("..", "..", "..", "..", "migrations", "sqlite", "000002_audit_log.up.sql")
	schema, err := os.ReadFile(schemaPath)
	require.NoError(t, err, "Failed to read audit log migration")

	_, err = sqlDB.Exec(string(schema))
	require.NoError(t, err, "Failed to apply audit log migration")

	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func TestSQLiteRecorder_Record(t *testing.T) {
	db := setupAuditTestDB(t)
	recorder := NewSQLiteRecorder(db, nil)

	subject := uuid.New()
	at := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	recorder.Record(context.Background(), application.AuditEntry{
		Actor:     "orchestrator",
		Action:    "booking_confirmed",
		Subject:   subject,
		Rationale: "hold confirmed before expiry",
		At:        at,
	})

	var actor, action, subjectStr, rationale, occurredAt string
	err := db.QueryRow(`SELECT actor, action, subject, rationale, occurred_at FROM audit_log`).
		Scan(&actor, &action, &subjectStr, &rationale, &occurredAt)
	require.NoError(t, err)

	assert.Equal(t, "orchestrator", actor)
	assert.Equal(t, "booking_confirmed", action)
	assert.Equal(t, subject.String(), subjectStr)
	assert.Equal(t, "hold confirmed before expiry", rationale)
	assert.Equal(t, at.Format(time.RFC3339), occurredAt)
}

func TestSQLiteRecorder_FailureDoesNotPanic(t *testing.T) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	// No schema applied, the insert fails and is swallowed.
	recorder := NewSQLiteRecorder(sqlDB, nil)
	recorder.Record(context.Background(), application.AuditEntry{
		Actor:   "orchestrator",
		Action:  "booking_failed",
		Subject: uuid.New(),
		At:      time.Now(),
	})
}
