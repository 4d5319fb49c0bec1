package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/savethebeat/savethebeat/internal/domain"
)

// newTestDB opens a uniquely named in-memory SQLite database (shared cache so
// every connection in the pool sees the same data) and migrates the schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func strptr(s string) *string { return &s }

func TestGetCredential_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := GetCredential(context.Background(), db, "T1", "U1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v; want ErrNotFound", err)
	}
}

func TestUpsertCredential_InsertThenUpdateKeepsID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	exp1 := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	first, err := UpsertCredential(ctx, db, "T1", "U1", nil, "at-1", "rt-1", exp1)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if first.AccessToken != "at-1" || first.RefreshToken != "rt-1" {
		t.Fatalf("unexpected row: %+v", first)
	}

	// Relink with fresh token material: same logical credential, same row ID.
	exp2 := exp1.Add(time.Hour)
	second, err := UpsertCredential(ctx, db, "T1", "U1", strptr("spotify-user-9"), "at-2", "rt-2", exp2)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("row ID changed across upsert: %q -> %q", first.ID, second.ID)
	}
	if second.AccessToken != "at-2" || second.RefreshToken != "rt-2" {
		t.Fatalf("token material not replaced: %+v", second)
	}
	if second.SpotifyUserID == nil || *second.SpotifyUserID != "spotify-user-9" {
		t.Fatalf("spotify_user_id not updated: %+v", second.SpotifyUserID)
	}
	if !second.ExpiresAt.Equal(exp2) {
		t.Fatalf("expires_at = %v; want %v", second.ExpiresAt, exp2)
	}

	// Only one row exists for the pair.
	var n int64
	db.Model(&domain.Credential{}).Count(&n)
	if n != 1 {
		t.Fatalf("credential rows = %d; want 1", n)
	}
}

func TestUpsertCredential_DistinctUsersGetDistinctRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	a, err := UpsertCredential(ctx, db, "T1", "U1", nil, "at", "rt", exp)
	if err != nil {
		t.Fatalf("insert a: %v", err)
	}
	b, err := UpsertCredential(ctx, db, "T1", "U2", nil, "at", "rt", exp)
	if err != nil {
		t.Fatalf("insert b: %v", err)
	}
	if a.ID == b.ID {
		t.Fatalf("expected distinct rows per user")
	}
}

func TestUpdateCredentialTokens_ReplacesMaterial(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cred, err := UpsertCredential(ctx, db, "T1", "U1", nil, "at-old", "rt-old", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	exp := time.Now().Add(55 * time.Minute).UTC().Truncate(time.Second)
	if err := UpdateCredentialTokens(ctx, db, cred.ID, "at-new", "rt-new", exp); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := GetCredential(ctx, db, "T1", "U1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AccessToken != "at-new" || got.RefreshToken != "rt-new" {
		t.Fatalf("tokens not replaced: %+v", got)
	}
	if !got.ExpiresAt.Equal(exp) {
		t.Fatalf("expires_at = %v; want %v", got.ExpiresAt, exp)
	}
}

func TestUpdateCredentialTokens_MissingRow(t *testing.T) {
	db := newTestDB(t)
	err := UpdateCredentialTokens(context.Background(), db, uuid.NewString(), "at", "rt", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v; want ErrNotFound", err)
	}
}
