package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/savethebeat/savethebeat/internal/domain"
)

func successParams(trackID string) SaveActionParams {
	return SaveActionParams{
		WorkspaceID: "T1",
		UserID:      "U1",
		ChannelID:   "C1",
		ThreadTS:    "1700.0001",
		MentionTS:   "1700.0002",
		TrackID:     trackID,
		Status:      domain.StatusSaved,
	}
}

func TestCreateAndFindSaveAction(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	created, err := CreateSaveAction(ctx, db, successParams("trk1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.DedupKey == "" {
		t.Fatalf("row not fully populated: %+v", created)
	}

	found, err := FindSaveAction(ctx, db, "T1", "U1", "1700.0001", "trk1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != created.ID || found.Status != domain.StatusSaved {
		t.Fatalf("unexpected row: %+v", found)
	}
	if !found.Succeeded() {
		t.Fatalf("saved row must report success")
	}
}

func TestFindSaveAction_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := FindSaveAction(context.Background(), db, "T1", "U1", "1700.0001", "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v; want ErrNotFound", err)
	}
}

func TestFindSaveAction_KeyIsThreadScoped(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := CreateSaveAction(ctx, db, successParams("trk1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Same track in a different thread is a different key.
	if _, err := FindSaveAction(ctx, db, "T1", "U1", "other-thread", "trk1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("different thread: got %v; want ErrNotFound", err)
	}
	// Same thread, different user likewise.
	if _, err := FindSaveAction(ctx, db, "T1", "U2", "1700.0001", "trk1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("different user: got %v; want ErrNotFound", err)
	}
}

func TestCreateSaveAction_DuplicateSavedRejected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := CreateSaveAction(ctx, db, successParams("trk1")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := CreateSaveAction(ctx, db, successParams("trk1"))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second saved row: got %v; want ErrDuplicate", err)
	}

	// One saved row plus one already_saved row can coexist (a replay records
	// its own outcome), but a second already_saved row conflicts again.
	replay := successParams("trk1")
	replay.Status = domain.StatusAlreadySaved
	if _, err := CreateSaveAction(ctx, db, replay); err != nil {
		t.Fatalf("already_saved row: %v", err)
	}
	if _, err := CreateSaveAction(ctx, db, replay); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second already_saved row: got %v; want ErrDuplicate", err)
	}
}

func TestCreateSaveAction_FailedRowsRepeatFreely(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p := successParams("trk1")
	p.Status = domain.StatusFailed
	p.ErrorCode = strptr(domain.ErrCodeAuth)
	p.ErrorMessage = strptr("token refresh rejected")

	first, err := CreateSaveAction(ctx, db, p)
	if err != nil {
		t.Fatalf("first failed row: %v", err)
	}
	second, err := CreateSaveAction(ctx, db, p)
	if err != nil {
		t.Fatalf("second failed row: %v", err)
	}
	if first.DedupKey == second.DedupKey {
		t.Fatalf("failed rows must not share a dedup key")
	}
	if first.Succeeded() || second.Succeeded() {
		t.Fatalf("failed rows must not report success")
	}
}

func TestCountAndListSaveActionsPage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Three outcomes for three different tracks, with distinct created_at so
	// ordering is deterministic.
	base := time.Now().UTC().Add(-time.Hour)
	for i, trk := range []string{"t-a", "t-b", "t-c"} {
		row, err := CreateSaveAction(ctx, db, successParams(trk))
		if err != nil {
			t.Fatalf("create %s: %v", trk, err)
		}
		db.Model(&domain.SaveAction{}).
			Where("id = ?", row.ID).
			Update("created_at", base.Add(time.Duration(i)*time.Minute))
	}

	n, err := CountSaveActions(ctx, db, "T1", "U1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("count = %d; want 3", n)
	}

	// Newest first, page size 2.
	page1, err := ListSaveActionsPage(ctx, db, "T1", "U1", 0, 2)
	if err != nil {
		t.Fatalf("page1: %v", err)
	}
	if len(page1) != 2 || page1[0].TrackID != "t-c" || page1[1].TrackID != "t-b" {
		t.Fatalf("page1 = %+v", page1)
	}
	page2, err := ListSaveActionsPage(ctx, db, "T1", "U1", 2, 2)
	if err != nil {
		t.Fatalf("page2: %v", err)
	}
	if len(page2) != 1 || page2[0].TrackID != "t-a" {
		t.Fatalf("page2 = %+v", page2)
	}

	// Other users see nothing.
	other, err := CountSaveActions(ctx, db, "T1", "U2")
	if err != nil || other != 0 {
		t.Fatalf("other user count = %d, err %v", other, err)
	}
}
