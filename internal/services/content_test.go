package services

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/clipforge/clipforge-backend/internal/data/repos"
	"github.com/clipforge/clipforge-backend/internal/data/repos/testutil"
	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/apierr"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
)

func newContentService(t *testing.T) (ContentService, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)

	userRepo := repos.NewUserRepo(tx, log)
	contentRepo := repos.NewContentRepo(tx, log)
	clipRepo := repos.NewClipRepo(tx, log)
	jobRepo := repos.NewJobRunRepo(tx, log)

	quota := NewQuotaService(tx, log, userRepo, contentRepo, defaultPlanConfig())
	jobs := NewJobService(tx, log, jobRepo, NewJobNotifier(log, nil), nil, "clipforge")
	return NewContentService(tx, log, contentRepo, clipRepo, quota, jobs, nil), tx
}

func TestReprocessAllowsErroredContentOnly(t *testing.T) {
	svc, tx := newContentService(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	user := testutil.SeedUser(t, ctx, tx, "reprocess@example.com", types.PlanPro, 30)
	errored := testutil.SeedContent(t, ctx, tx, user.ID, types.ContentStatusError)
	ready := testutil.SeedContent(t, ctx, tx, user.ID, types.ContentStatusReady)

	job, err := svc.Reprocess(dbc, user.ID, errored.ID)
	if err != nil {
		t.Fatalf("Reprocess errored content: %v", err)
	}
	if job == nil || job.JobType != types.JobTypeContentProcess {
		t.Fatalf("expected content_process job, got %+v", job)
	}

	if _, err := svc.Reprocess(dbc, user.ID, ready.ID); err == nil {
		t.Fatal("expected ready content to be rejected")
	} else if ae := apierr.AsError(err); ae == nil || ae.Code != "invalid_state" {
		t.Fatalf("expected invalid_state, got %v", err)
	}
}

func TestStartProcessingRejectsReadyContent(t *testing.T) {
	svc, tx := newContentService(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	user := testutil.SeedUser(t, ctx, tx, "start-ready@example.com", types.PlanPro, 30)
	ready := testutil.SeedContent(t, ctx, tx, user.ID, types.ContentStatusReady)

	_, err := svc.StartProcessing(dbc, user.ID, ready.ID)
	if err == nil {
		t.Fatal("expected error")
	}
	if ae := apierr.AsError(err); ae == nil || ae.Code != "invalid_state" {
		t.Fatalf("expected invalid_state, got %v", err)
	}
}
