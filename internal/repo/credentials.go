// Package repo implements the data persistence layer for credentials and
// save actions, backed by GORM. This file provides repository helpers for the
// Credential model holding per-(workspace,user) Spotify OAuth material.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/savethebeat/savethebeat/internal/domain"
)

// GetCredential returns the credential for (workspaceID, userID) or ErrNotFound.
func GetCredential(ctx context.Context, db *gorm.DB, workspaceID, userID string) (*domain.Credential, error) {
	var cred domain.Credential
	err := db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// UpsertCredential inserts a credential for (workspaceID, userID) or, when one
// already exists, replaces its token material and expiry in place. The row ID
// is stable across upserts so audit references stay valid.
func UpsertCredential(ctx context.Context, db *gorm.DB, workspaceID, userID string, spotifyUserID *string, accessToken, refreshToken string, expiresAt time.Time) (*domain.Credential, error) {
	now := time.Now().UTC()
	cred := &domain.Credential{
		ID:            uuid.NewString(),
		WorkspaceID:   workspaceID,
		UserID:        userID,
		SpotifyUserID: spotifyUserID,
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		ExpiresAt:     expiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "workspace_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"spotify_user_id", "access_token", "refresh_token", "expires_at", "updated_at",
			}),
		}).
		Create(cred).Error
	if err != nil {
		return nil, err
	}
	// Re-read so the caller sees the surviving row (the original ID on update).
	return GetCredential(ctx, db, workspaceID, userID)
}

// UpdateCredentialTokens replaces the token material of an existing credential
// after a refresh exchange. Refresh always writes access token, refresh token
// and expiry together, never leaving stale refresh material alongside a newer
// access token.
func UpdateCredentialTokens(ctx context.Context, db *gorm.DB, id, accessToken, refreshToken string, expiresAt time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Credential{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"expires_at":    expiresAt,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
