package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/recruitflow/scheduler/internal/scheduling/infrastructure/providers/google"
)

// PostgresTokenStore implements google.TokenStore on PostgreSQL.
type PostgresTokenStore struct {
	pool *pgxpool.Pool
}

// NewPostgresTokenStore creates a PostgreSQL token store.
func NewPostgresTokenStore(pool *pgxpool.Pool) *PostgresTokenStore {
	return &PostgresTokenStore{pool: pool}
}

// Save upserts an interviewer's encrypted token.
func (s *PostgresTokenStore) Save(ctx context.Context, token google.StoredToken) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO oauth_tokens (interviewer_id, access_token, refresh_token, token_type, expiry, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (interviewer_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_type = EXCLUDED.token_type,
			expiry = EXCLUDED.expiry,
			updated_at = NOW()
	`, token.InterviewerID.String(), token.AccessToken, token.RefreshToken, token.TokenType, token.Expiry)
	return err
}

// Find returns an interviewer's token, or nil when none is stored.
func (s *PostgresTokenStore) Find(ctx context.Context, interviewerID uuid.UUID) (*google.StoredToken, error) {
	var (
		token   google.StoredToken
		refresh []byte
		expiry  *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT access_token, refresh_token, token_type, expiry
		FROM oauth_tokens
		WHERE interviewer_id = $1
	`, interviewerID.String()).Scan(&token.AccessToken, &refresh, &token.TokenType, &expiry)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	token.InterviewerID = interviewerID
	token.RefreshToken = refresh
	if expiry != nil {
		token.Expiry = *expiry
	}
	return &token, nil
}

// SQLiteTokenStore implements google.TokenStore on SQLite.
type SQLiteTokenStore struct {
	db *sql.DB
}

// NewSQLiteTokenStore creates a SQLite token store.
func NewSQLiteTokenStore(db *sql.DB) *SQLiteTokenStore {
	return &SQLiteTokenStore{db: db}
}

// Save upserts an interviewer's encrypted token.
func (s *SQLiteTokenStore) Save(ctx context.Context, token google.StoredToken) error {
	expiry := ""
	if !token.Expiry.IsZero() {
		expiry = token.Expiry.UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (interviewer_id, access_token, refresh_token, token_type, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (interviewer_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expiry = excluded.expiry,
			updated_at = datetime('now')
	`, token.InterviewerID.String(), token.AccessToken, token.RefreshToken, token.TokenType, expiry)
	return err
}

// Find returns an interviewer's token, or nil when none is stored.
func (s *SQLiteTokenStore) Find(ctx context.Context, interviewerID uuid.UUID) (*google.StoredToken, error) {
	var (
		token     google.StoredToken
		refresh   []byte
		expiryStr string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT access_token, refresh_token, token_type, COALESCE(expiry, '')
		FROM oauth_tokens
		WHERE interviewer_id = ?
	`, interviewerID.String()).Scan(&token.AccessToken, &refresh, &token.TokenType, &expiryStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	token.InterviewerID = interviewerID
	token.RefreshToken = refresh
	if expiryStr != "" {
		expiry, err := time.Parse(time.RFC3339, expiryStr)
		if err != nil {
			return nil, err
		}
		token.Expiry = expiry
	}
	return &token, nil
}
