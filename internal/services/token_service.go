// Package services – TokenService
//
// This file implements the token lifecycle: every pipeline step that talks to
// Spotify goes through EnsureValidToken, which hands out the stored access
// token while it is comfortably valid and performs a refresh exchange when it
// is expired or about to expire. Refresh failures never mutate the stored
// credential, so a transient provider outage cannot corrupt token material.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/savethebeat/savethebeat/internal/repo"
)

// ExpiryBuffer is subtracted from provider expiries before storing and added
// to "now" when deciding whether to refresh. A token is therefore treated as
// expiring well before Spotify actually invalidates it, so a token handed to
// a downstream call never outlives the call.
const ExpiryBuffer = 5 * time.Minute

// TokenRefresher performs the refresh-token grant against the identity
// provider. Implemented by spotify.OAuth; faked in tests.
type TokenRefresher interface {
	// Refresh exchanges refreshToken for a new token set. The returned token
	// must carry a non-zero expiry; its refresh token may be rotated.
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// TokenService guarantees a non-expired access token per (workspace, user),
// refreshing on demand. Safe for concurrent use.
type TokenService struct {
	// DB is the GORM handle used to read and update credentials.
	DB *gorm.DB
	// Refresher performs the remote refresh exchange.
	Refresher TokenRefresher

	// Now is a test seam; defaults to time.Now.
	Now func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(db *gorm.DB, r TokenRefresher) *TokenService {
	return &TokenService{DB: db, Refresher: r, Now: time.Now}
}

// EnsureValidToken returns an access token valid for at least ExpiryBuffer.
//
// Semantics:
//   - No credential for (workspaceID, userID), or a paused one: ErrNotLinked.
//     The user must re-link; callers must not retry.
//   - Stored expiry more than ExpiryBuffer away: the stored token is returned
//     unchanged, with no write.
//   - Otherwise one refresh exchange runs. On success the new access token,
//     the (possibly rotated) refresh token, and the buffered expiry are
//     persisted together, and the new access token is returned. On failure
//     the provider error propagates and the stored record is untouched.
func (s *TokenService) EnsureValidToken(ctx context.Context, workspaceID, userID string) (string, error) {
	cred, err := repo.GetCredential(ctx, s.DB, workspaceID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrNotLinked
		}
		return "", err
	}
	if cred.Paused {
		return "", ErrNotLinked
	}

	now := s.now()
	if cred.ExpiresAt.After(now.Add(ExpiryBuffer)) {
		return cred.AccessToken, nil
	}

	log.Info().
		Str("workspace_id", workspaceID).
		Str("user_id", userID).
		Time("expires_at", cred.ExpiresAt).
		Msg("access token expired or expiring soon, refreshing")

	tok, err := s.Refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return "", err
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		// Provider did not rotate; keep the old one.
		refreshToken = cred.RefreshToken
	}
	expiresAt := tok.Expiry.Add(-ExpiryBuffer)

	if err := repo.UpdateCredentialTokens(ctx, s.DB, cred.ID, tok.AccessToken, refreshToken, expiresAt); err != nil {
		return "", err
	}

	log.Info().
		Str("workspace_id", workspaceID).
		Str("user_id", userID).
		Time("expires_at", expiresAt).
		Bool("refresh_token_rotated", tok.RefreshToken != "" && tok.RefreshToken != cred.RefreshToken).
		Msg("refreshed and stored access token")
	return tok.AccessToken, nil
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
