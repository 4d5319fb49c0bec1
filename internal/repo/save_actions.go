// Package repo implements the data persistence layer for credentials and
// save actions, backed by GORM. This file provides repository helpers for the
// append-only SaveAction ledger used for idempotency and audit.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/savethebeat/savethebeat/internal/domain"
)

// SaveActionParams carries the fields of one ledger row to append.
type SaveActionParams struct {
	WorkspaceID  string
	UserID       string
	ChannelID    string
	ThreadTS     string
	MentionTS    string
	TrackID      string
	Status       string
	ErrorCode    *string
	ErrorMessage *string
}

// FindSaveAction returns the most recent ledger row for the idempotency key
// (workspace, user, thread, track), or ErrNotFound when the track has not been
// processed in this thread for this user.
func FindSaveAction(ctx context.Context, db *gorm.DB, workspaceID, userID, threadTS, trackID string) (*domain.SaveAction, error) {
	var row domain.SaveAction
	err := db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ? AND thread_ts = ? AND track_id = ?",
			workspaceID, userID, threadTS, trackID).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// CreateSaveAction appends one row to the ledger. Rows are never updated or
// deleted. For saved/already_saved rows a second append with the same
// idempotency key returns ErrDuplicate, which callers treat as "already
// saved" rather than a failure; failed rows may repeat freely.
func CreateSaveAction(ctx context.Context, db *gorm.DB, p SaveActionParams) (*domain.SaveAction, error) {
	row := &domain.SaveAction{
		ID:           uuid.NewString(),
		WorkspaceID:  p.WorkspaceID,
		UserID:       p.UserID,
		ChannelID:    p.ChannelID,
		ThreadTS:     p.ThreadTS,
		MentionTS:    p.MentionTS,
		TrackID:      p.TrackID,
		Status:       p.Status,
		ErrorCode:    p.ErrorCode,
		ErrorMessage: p.ErrorMessage,
		CreatedAt:    time.Now().UTC(),
	}
	row.DedupKey = dedupKey(row)

	if err := db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return row, nil
}

// CountSaveActions returns the ledger size for one workspace/user pair,
// for pagination of the audit listing.
func CountSaveActions(ctx context.Context, db *gorm.DB, workspaceID, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.SaveAction{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Count(&n).Error
	return n, err
}

// ListSaveActionsPage returns one page of ledger rows for a workspace/user
// pair, newest first.
func ListSaveActionsPage(ctx context.Context, db *gorm.DB, workspaceID, userID string, offset, limit int) ([]domain.SaveAction, error) {
	var rows []domain.SaveAction
	err := db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// dedupKey computes the value backing the ledger's unique index. Success-shaped
// rows collapse onto the idempotency key so the database rejects a second
// saved (or already_saved) row; failed rows key on their own ID and never
// conflict.
func dedupKey(row *domain.SaveAction) string {
	if row.Status == domain.StatusFailed {
		return row.ID
	}
	return strings.Join([]string{row.WorkspaceID, row.UserID, row.ThreadTS, row.TrackID, row.Status}, ":")
}
