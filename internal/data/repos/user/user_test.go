package user

import (
	"context"
	"testing"

	"github.com/clipforge/clipforge-backend/internal/data/repos/testutil"
	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
)

func TestUserRepoQuota(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewUserRepo(db, testutil.Logger(t))

	metered := testutil.SeedUser(t, ctx, tx, "metered@example.com", types.PlanFree, 3)

	// The first three reservations succeed, the fourth is refused.
	for i := 0; i < 3; i++ {
		ok, err := repo.ReserveUsage(dbc, metered.ID)
		if err != nil {
			t.Fatalf("ReserveUsage #%d: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("ReserveUsage #%d: expected claim below limit", i+1)
		}
	}
	ok, err := repo.ReserveUsage(dbc, metered.ID)
	if err != nil {
		t.Fatalf("ReserveUsage over limit: %v", err)
	}
	if ok {
		t.Fatalf("ReserveUsage over limit: expected refusal")
	}

	got, err := repo.GetByID(dbc, metered.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.UsageThisMonth != 3 {
		t.Fatalf("usage_this_month: expected 3, got %+v", got)
	}

	// Agency plan ignores the ceiling entirely.
	agency := testutil.SeedUser(t, ctx, tx, "agency@example.com", types.PlanAgency, 3)
	for i := 0; i < 10; i++ {
		ok, err := repo.ReserveUsage(dbc, agency.ID)
		if err != nil {
			t.Fatalf("agency ReserveUsage #%d: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("agency ReserveUsage #%d: expected unlimited claim", i+1)
		}
	}

	// Monthly reset zeroes every metered row.
	n, err := repo.ResetMonthlyUsage(dbc)
	if err != nil {
		t.Fatalf("ResetMonthlyUsage: %v", err)
	}
	if n < 2 {
		t.Fatalf("ResetMonthlyUsage: expected at least 2 rows, got %d", n)
	}
	got, err = repo.GetByID(dbc, metered.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID after reset: %v", err)
	}
	if got.UsageThisMonth != 0 {
		t.Fatalf("usage after reset: expected 0, got %d", got.UsageThisMonth)
	}
}

func TestUserRepoLookup(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewUserRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "lookup@example.com", types.PlanStarter, 25)

	byEmail, err := repo.GetByEmail(dbc, "lookup@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if byEmail == nil || byEmail.ID != u.ID {
		t.Fatalf("GetByEmail: expected %v got %+v", u.ID, byEmail)
	}

	missing, err := repo.GetByEmail(dbc, "nobody@example.com")
	if err != nil {
		t.Fatalf("GetByEmail missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("GetByEmail missing: expected nil, got %+v", missing)
	}

	if err := repo.UpdatePlan(dbc, u.ID, types.PlanPro, 100); err != nil {
		t.Fatalf("UpdatePlan: %v", err)
	}
	got, err := repo.GetByID(dbc, u.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Plan != types.PlanPro || got.UsageLimit != 100 {
		t.Fatalf("UpdatePlan: got plan=%s limit=%d", got.Plan, got.UsageLimit)
	}
}
