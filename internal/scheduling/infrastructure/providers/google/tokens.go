package google

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/shared/infrastructure/crypto"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned when an interviewer has no stored OAuth token.
var ErrNoToken = errors.New("no oauth token for interviewer")

// StoredToken is the encrypted representation of an interviewer's OAuth
// token.
type StoredToken struct {
	InterviewerID uuid.UUID
	AccessToken   []byte
	RefreshToken  []byte
	TokenType     string
	Expiry        time.Time
}

// TokenStore persists encrypted OAuth tokens per interviewer.
type TokenStore interface {
	Save(ctx context.Context, token StoredToken) error
	Find(ctx context.Context, interviewerID uuid.UUID) (*StoredToken, error)
}

// TokenService resolves per-interviewer OAuth token sources. Tokens are
// stored encrypted; refresh happens through the oauth2 config, so an expired
// access token is renewed transparently as long as a refresh token exists.
type TokenService struct {
	oauthConfig *oauth2.Config
	store       TokenStore
	encrypter   crypto.Encrypter
}

// NewTokenService creates a token service for the Google provider.
func NewTokenService(clientID, clientSecret, tokenURL string, store TokenStore, encrypter crypto.Encrypter) (*TokenService, error) {
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("google oauth configuration is incomplete")
	}
	if store == nil || encrypter == nil {
		return nil, errors.New("token service dependencies are required")
	}
	if tokenURL == "" {
		tokenURL = "https://oauth2.googleapis.com/token"
	}

	return &TokenService{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		},
		store:     store,
		encrypter: encrypter,
	}, nil
}

// StoreToken encrypts and persists an interviewer's token.
func (s *TokenService) StoreToken(ctx context.Context, interviewerID uuid.UUID, token *oauth2.Token) error {
	access, err := s.encrypter.Encrypt([]byte(token.AccessToken))
	if err != nil {
		return err
	}
	var refresh []byte
	if token.RefreshToken != "" {
		refresh, err = s.encrypter.Encrypt([]byte(token.RefreshToken))
		if err != nil {
			return err
		}
	}

	return s.store.Save(ctx, StoredToken{
		InterviewerID: interviewerID,
		AccessToken:   access,
		RefreshToken:  refresh,
		TokenType:     token.TokenType,
		Expiry:        token.Expiry,
	})
}

// TokenSource returns a refreshing token source for the given interviewer.
func (s *TokenService) TokenSource(ctx context.Context, interviewerID uuid.UUID) (oauth2.TokenSource, error) {
	stored, err := s.store.Find(ctx, interviewerID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrNoToken
	}

	access, err := s.encrypter.Decrypt(stored.AccessToken)
	if err != nil {
		return nil, err
	}
	refresh := ""
	if len(stored.RefreshToken) > 0 {
		refreshBytes, err := s.encrypter.Decrypt(stored.RefreshToken)
		if err != nil {
			return nil, err
		}
		refresh = string(refreshBytes)
	}

	token := &oauth2.Token{
		AccessToken:  string(access),
		RefreshToken: refresh,
		TokenType:    stored.TokenType,
		Expiry:       stored.Expiry,
	}
	return s.oauthConfig.TokenSource(ctx, token), nil
}
