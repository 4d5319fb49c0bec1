// Package domain defines the persistence models for Spotify credentials and
// the save-action audit ledger. These types are mapped with GORM and form the
// core data layer of the bot.
package domain

import "time"

// Save-action statuses recorded in the audit ledger.
const (
	StatusSaved        = "saved"
	StatusAlreadySaved = "already_saved"
	StatusFailed       = "failed"
)

// Error codes attached to failed save actions.
const (
	ErrCodeAuth    = "auth_error"
	ErrCodeSpotify = "spotify_error"
)

// Credential holds the Spotify OAuth material for one Slack user in one
// workspace. At most one row exists per (workspace, user) pair.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - WorkspaceID / UserID: Slack identifiers; unique together.
//   - SpotifyUserID: Spotify account id, populated once profile enrichment
//     lands (nullable until then).
//   - AccessToken / RefreshToken: opaque OAuth secrets; never logged in full.
//   - ExpiresAt: instant after which the access token must be treated as
//     invalid. Stored already reduced by the 5-minute safety buffer, so a
//     token handed out is never within 5 minutes of real expiry.
//   - Paused: user-initiated suspension flag; a paused user is treated as
//     not linked by the pipeline.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Credential struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	WorkspaceID   string    `json:"workspace_id"   gorm:"type:varchar(64);not null;uniqueIndex:ux_credential_workspace_user,priority:1"`
	UserID        string    `json:"user_id"        gorm:"type:varchar(64);not null;uniqueIndex:ux_credential_workspace_user,priority:2"`
	SpotifyUserID *string   `json:"spotify_user_id,omitempty" gorm:"type:varchar(64)"`
	AccessToken   string    `json:"-"              gorm:"type:text;not null"`
	RefreshToken  string    `json:"-"              gorm:"type:text;not null"`
	ExpiresAt     time.Time `json:"expires_at"     gorm:"not null"`
	Paused        bool      `json:"paused"         gorm:"not null;default:false"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for Credential.
func (Credential) TableName() string { return "credentials" }

// SaveAction is one immutable row of the append-only audit ledger. Every
// track-flow terminal state that reached the idempotency check writes exactly
// one row, so the ledger distinguishes "we tried and failed" from "we never
// tried".
//
// DedupKey realizes the idempotency constraint: for saved/already_saved rows
// it is the (workspace, user, thread, track, status) tuple joined with ':',
// for failed rows it is the row ID. The unique index on it therefore admits
// at most one saved and one already_saved row per idempotency key while
// letting failed attempts repeat. A violated insert surfaces as a conflict
// the pipeline absorbs as "already saved".
type SaveAction struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	WorkspaceID  string    `json:"workspace_id"  gorm:"type:varchar(64);not null;index:idx_action_lookup,priority:1"`
	UserID       string    `json:"user_id"       gorm:"type:varchar(64);not null;index:idx_action_lookup,priority:2"`
	ChannelID    string    `json:"channel_id"    gorm:"type:varchar(64);not null"`
	ThreadTS     string    `json:"thread_ts"     gorm:"type:varchar(32);not null;index:idx_action_lookup,priority:3"`
	MentionTS    string    `json:"mention_ts"    gorm:"type:varchar(32);not null"`
	TrackID      string    `json:"track_id"      gorm:"type:varchar(64);not null;index:idx_action_lookup,priority:4"`
	Status       string    `json:"status"        gorm:"type:varchar(16);not null;check:status IN ('saved','already_saved','failed')"`
	ErrorCode    *string   `json:"error_code,omitempty"    gorm:"type:varchar(32)"`
	ErrorMessage *string   `json:"error_message,omitempty" gorm:"type:text"`
	DedupKey     string    `json:"-"             gorm:"type:varchar(255);not null;uniqueIndex:ux_action_dedup"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for SaveAction.
func (SaveAction) TableName() string { return "save_actions" }

// Succeeded reports whether the action ended success-shaped (a save happened
// or had already happened).
func (a *SaveAction) Succeeded() bool {
	return a.Status == StatusSaved || a.Status == StatusAlreadySaved
}
