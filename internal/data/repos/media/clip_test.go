package media

import (
	"context"
	"testing"

	"github.com/clipforge/clipforge-backend/internal/data/repos/testutil"
	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
)

func TestClipRepoRenderClaim(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewClipRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "clips@example.com", types.PlanFree, 3)
	c := testutil.SeedContent(t, ctx, tx, u.ID, types.ContentStatusReady)
	clip := testutil.SeedClip(t, ctx, tx, c.ID, u.ID, types.ClipStatusPending)

	// Only one render worker wins the pending row.
	ok, err := repo.TransitionStatus(dbc, clip.ID,
		[]types.ClipStatus{types.ClipStatusPending, types.ClipStatusError},
		types.ClipStatusProcessing, nil)
	if err != nil || !ok {
		t.Fatalf("claim render: ok=%v err=%v", ok, err)
	}
	ok, err = repo.TransitionStatus(dbc, clip.ID,
		[]types.ClipStatus{types.ClipStatusPending, types.ClipStatusError},
		types.ClipStatusProcessing, nil)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Fatalf("second claim: expected lost claim")
	}

	score := 87
	ok, err = repo.TransitionStatus(dbc, clip.ID,
		[]types.ClipStatus{types.ClipStatusProcessing},
		types.ClipStatusReady, map[string]any{
			"file_url":      "https://cdn.example.com/clips/a.mp4",
			"thumbnail_url": "https://cdn.example.com/clips/a.jpg",
			"viral_score":   score,
		})
	if err != nil || !ok {
		t.Fatalf("finish render: ok=%v err=%v", ok, err)
	}

	got, err := repo.GetForUser(dbc, u.ID, clip.ID)
	if err != nil || got == nil {
		t.Fatalf("GetForUser: %v", err)
	}
	if got.Status != types.ClipStatusReady || got.FileURL == "" {
		t.Fatalf("finished clip: %+v", got)
	}
}

func TestClipRepoListByContent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewClipRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "cliplist@example.com", types.PlanFree, 3)
	c := testutil.SeedContent(t, ctx, tx, u.ID, types.ContentStatusReady)
	testutil.SeedClip(t, ctx, tx, c.ID, u.ID, types.ClipStatusPending)
	testutil.SeedClip(t, ctx, tx, c.ID, u.ID, types.ClipStatusPending)

	rows, err := repo.ListByContent(dbc, c.ID)
	if err != nil {
		t.Fatalf("ListByContent: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ListByContent: expected 2, got %d", len(rows))
	}

	n, err := repo.CountByContent(dbc, c.ID)
	if err != nil || n != 2 {
		t.Fatalf("CountByContent: n=%d err=%v", n, err)
	}
}
