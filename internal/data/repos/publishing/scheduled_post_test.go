package publishing

import (
	"context"
	"testing"
	"time"

	"github.com/clipforge/clipforge-backend/internal/data/repos/testutil"
	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
)

func TestScheduledPostRepoClaimDue(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewScheduledPostRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	u := testutil.SeedUser(t, ctx, tx, "sweep@example.com", types.PlanPro, 100)
	gc1 := testutil.SeedGeneratedContent(t, ctx, tx, u.ID, nil, types.PlatformTwitter, types.GeneratedContentStatusScheduled)
	gc2 := testutil.SeedGeneratedContent(t, ctx, tx, u.ID, nil, types.PlatformLinkedIn, types.GeneratedContentStatusScheduled)
	gc3 := testutil.SeedGeneratedContent(t, ctx, tx, u.ID, nil, types.PlatformTwitter, types.GeneratedContentStatusScheduled)

	due1 := testutil.SeedScheduledPost(t, ctx, tx, u.ID, gc1.ID, types.PlatformTwitter, now.Add(-2*time.Hour), types.ScheduledPostStatusScheduled)
	due2 := testutil.SeedScheduledPost(t, ctx, tx, u.ID, gc2.ID, types.PlatformLinkedIn, now.Add(-1*time.Hour), types.ScheduledPostStatusScheduled)
	future := testutil.SeedScheduledPost(t, ctx, tx, u.ID, gc3.ID, types.PlatformTwitter, now.Add(1*time.Hour), types.ScheduledPostStatusScheduled)

	claimed, err := repo.ClaimDue(dbc, now, 10)
	if err != nil {
		t.Fatalf("ClaimDue: %v", err)
	}
	if len(claimed) != 2 {
		t.Fatalf("ClaimDue: expected 2, got %d", len(claimed))
	}
	if claimed[0].ID != due1.ID || claimed[1].ID != due2.ID {
		t.Fatalf("ClaimDue: wrong order %v %v", claimed[0].ID, claimed[1].ID)
	}
	for _, p := range claimed {
		if p.Status != types.ScheduledPostStatusPublishing {
			t.Fatalf("ClaimDue: status %s", p.Status)
		}
	}

	// A second sweep finds nothing left that is due.
	again, err := repo.ClaimDue(dbc, now, 10)
	if err != nil {
		t.Fatalf("ClaimDue again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("ClaimDue again: expected 0, got %d", len(again))
	}

	// The future post was untouched.
	got, err := repo.GetByID(dbc, future.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID future: %v", err)
	}
	if got.Status != types.ScheduledPostStatusScheduled {
		t.Fatalf("future post: status %s", got.Status)
	}

	// Terminal marks only apply from publishing.
	ok, err := repo.MarkPublished(dbc, due1.ID)
	if err != nil || !ok {
		t.Fatalf("MarkPublished: ok=%v err=%v", ok, err)
	}
	ok, err = repo.MarkPublished(dbc, due1.ID)
	if err != nil {
		t.Fatalf("MarkPublished repeat: %v", err)
	}
	if ok {
		t.Fatalf("MarkPublished repeat: expected no claim")
	}

	ok, err = repo.MarkFailed(dbc, due2.ID, "platform rejected the post")
	if err != nil || !ok {
		t.Fatalf("MarkFailed: ok=%v err=%v", ok, err)
	}
	failed, err := repo.GetByID(dbc, due2.ID)
	if err != nil || failed == nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if failed.Status != types.ScheduledPostStatusFailed || failed.Error == "" {
		t.Fatalf("failed post: %+v", failed)
	}
}

func TestScheduledPostRepoCancelAndReschedule(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewScheduledPostRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	u := testutil.SeedUser(t, ctx, tx, "cancel@example.com", types.PlanPro, 100)
	gc := testutil.SeedGeneratedContent(t, ctx, tx, u.ID, nil, types.PlatformTwitter, types.GeneratedContentStatusScheduled)
	post := testutil.SeedScheduledPost(t, ctx, tx, u.ID, gc.ID, types.PlatformTwitter, now.Add(1*time.Hour), types.ScheduledPostStatusScheduled)

	live, err := repo.HasLiveForGeneratedContent(dbc, gc.ID)
	if err != nil || !live {
		t.Fatalf("HasLiveForGeneratedContent: live=%v err=%v", live, err)
	}

	later := now.Add(3 * time.Hour)
	ok, err := repo.Reschedule(dbc, u.ID, post.ID, later)
	if err != nil || !ok {
		t.Fatalf("Reschedule: ok=%v err=%v", ok, err)
	}

	ok, err = repo.Cancel(dbc, u.ID, post.ID)
	if err != nil || !ok {
		t.Fatalf("Cancel: ok=%v err=%v", ok, err)
	}

	// Cancelled posts cannot be rescheduled and are no longer live.
	ok, err = repo.Reschedule(dbc, u.ID, post.ID, later)
	if err != nil {
		t.Fatalf("Reschedule cancelled: %v", err)
	}
	if ok {
		t.Fatalf("Reschedule cancelled: expected refusal")
	}
	live, err = repo.HasLiveForGeneratedContent(dbc, gc.ID)
	if err != nil {
		t.Fatalf("HasLiveForGeneratedContent after cancel: %v", err)
	}
	if live {
		t.Fatalf("HasLiveForGeneratedContent after cancel: expected false")
	}
}
