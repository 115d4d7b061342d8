package persistence

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/infrastructure/providers/google"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupTokenTestDB(t *testing.T) *sql.DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	schemaPath := filepath.Join("..", "..", "..", "..", "migrations", "sqlite", "000003_oauth_tokens.up.sql")
	schema, err := os.ReadFile(schemaPath)
	require.NoError(t, err, "Failed to read oauth tokens migration")

	_, err = sqlDB.Exec(string(schema))
	require.NoError(t, err, "Failed to apply oauth tokens migration")

	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func TestSQLiteTokenStore_SaveAndFind(t *testing.T) {
	store := NewSQLiteTokenStore(setupTokenTestDB(t))
	ctx := context.Background()

	interviewerID := uuid.New()
	expiry := time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, google.StoredToken{
		InterviewerID: interviewerID,
		AccessToken:   []byte("encrypted-access"),
		RefreshToken:  []byte("encrypted-refresh"),
		TokenType:     "Bearer",
		Expiry:        expiry,
	}))

	found, err := store.Find(ctx, interviewerID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, interviewerID, found.InterviewerID)
	assert.Equal(t, []byte("encrypted-access"), found.AccessToken)
	assert.Equal(t, []byte("encrypted-refresh"), found.RefreshToken)
	assert.Equal(t, "Bearer", found.TokenType)
	assert.True(t, expiry.Equal(found.Expiry))
}

func TestSQLiteTokenStore_SaveOverwrites(t *testing.T) {
	store := NewSQLiteTokenStore(setupTokenTestDB(t))
	ctx := context.Background()

	interviewerID := uuid.New()
	require.NoError(t, store.Save(ctx, google.StoredToken{
		InterviewerID: interviewerID,
		AccessToken:   []byte("old"),
		TokenType:     "Bearer",
	}))
	require.NoError(t, store.Save(ctx, google.StoredToken{
		InterviewerID: interviewerID,
		AccessToken:   []byte("new"),
		TokenType:     "Bearer",
	}))

	found, err := store.Find(ctx, interviewerID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, []byte("new"), found.AccessToken)
	assert.Nil(t, found.RefreshToken)
	assert.True(t, found.Expiry.IsZero())
}

func TestSQLiteTokenStore_FindMissing(t *testing.T) {
	store := NewSQLiteTokenStore(setupTokenTestDB(t))

	found, err := store.Find(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, found)
}
