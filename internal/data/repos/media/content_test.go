package media

import (
	"context"
	"testing"

	"github.com/clipforge/clipforge-backend/internal/data/repos/testutil"
	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
)

func TestContentRepoTransitions(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewContentRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "content@example.com", types.PlanFree, 3)
	c := testutil.SeedContent(t, ctx, tx, u.ID, types.ContentStatusUploaded)

	ok, err := repo.TransitionStatus(dbc, c.ID,
		[]types.ContentStatus{types.ContentStatusUploaded},
		types.ContentStatusTranscribing, nil)
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if !ok {
		t.Fatalf("TransitionStatus: expected claim from uploaded")
	}

	// A second caller expecting the old state loses the claim.
	ok, err = repo.TransitionStatus(dbc, c.ID,
		[]types.ContentStatus{types.ContentStatusUploaded},
		types.ContentStatusTranscribing, nil)
	if err != nil {
		t.Fatalf("TransitionStatus repeat: %v", err)
	}
	if ok {
		t.Fatalf("TransitionStatus repeat: expected lost claim")
	}

	segs := types.MarshalSegments([]types.Segment{
		{ID: "seg-0", Start: 0, End: 4.2, Text: "welcome back", Confidence: 0.97},
		{ID: "seg-1", Start: 4.2, End: 9.8, Text: "today we talk growth", Confidence: 0.94},
	})
	if err := repo.SaveTranscript(dbc, c.ID, "welcome back today we talk growth", segs, 9.8); err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}

	got, err := repo.GetForUser(dbc, u.ID, c.ID)
	if err != nil || got == nil {
		t.Fatalf("GetForUser: %v", err)
	}
	if got.Status != types.ContentStatusTranscribing {
		t.Fatalf("status: expected transcribing, got %s", got.Status)
	}
	if got.Duration == nil || *got.Duration != 9.8 {
		t.Fatalf("duration: got %+v", got.Duration)
	}
	if len(got.Segments()) != 2 {
		t.Fatalf("segments: expected 2, got %d", len(got.Segments()))
	}

	// Ownership scoping.
	other := testutil.SeedUser(t, ctx, tx, "other@example.com", types.PlanFree, 3)
	stray, err := repo.GetForUser(dbc, other.ID, c.ID)
	if err != nil {
		t.Fatalf("GetForUser other: %v", err)
	}
	if stray != nil {
		t.Fatalf("GetForUser other: expected nil, got %+v", stray)
	}
}

func TestContentRepoUsageClaim(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewContentRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "usage@example.com", types.PlanFree, 3)
	c := testutil.SeedContent(t, ctx, tx, u.ID, types.ContentStatusUploaded)

	ok, err := repo.ClaimUsageCount(dbc, c.ID)
	if err != nil {
		t.Fatalf("ClaimUsageCount: %v", err)
	}
	if !ok {
		t.Fatalf("ClaimUsageCount: expected first claim to win")
	}

	// Pipeline retries hit the already-set flag and skip the increment.
	ok, err = repo.ClaimUsageCount(dbc, c.ID)
	if err != nil {
		t.Fatalf("ClaimUsageCount retry: %v", err)
	}
	if ok {
		t.Fatalf("ClaimUsageCount retry: expected no claim")
	}
}

func TestContentRepoListAndDelete(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewContentRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "list@example.com", types.PlanFree, 3)
	c1 := testutil.SeedContent(t, ctx, tx, u.ID, types.ContentStatusReady)
	c2 := testutil.SeedContent(t, ctx, tx, u.ID, types.ContentStatusUploaded)

	rows, err := repo.ListByUser(dbc, u.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ListByUser: expected 2, got %d", len(rows))
	}

	ok, err := repo.Delete(dbc, u.ID, c1.ID)
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Delete(dbc, u.ID, c1.ID)
	if err != nil {
		t.Fatalf("Delete repeat: %v", err)
	}
	if ok {
		t.Fatalf("Delete repeat: expected no row")
	}

	rows, err = repo.ListByUser(dbc, u.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListByUser after delete: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != c2.ID {
		t.Fatalf("ListByUser after delete: got %d rows", len(rows))
	}
}
