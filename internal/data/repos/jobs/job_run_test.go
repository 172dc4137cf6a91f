package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/clipforge/clipforge-backend/internal/data/repos/testutil"
	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
)

func TestJobRunRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	ownerUserID := uuid.New()

	queued := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     types.JobTypeContentProcess,
		EntityType:  "content",
		EntityID:    ptrUUID(uuid.New()),
		Status:      types.JobStatusQueued,
		Stage:       "queued",
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-3 * time.Hour),
		UpdatedAt:   now.Add(-3 * time.Hour),
	}
	failed := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     types.JobTypeContentProcess,
		EntityType:  "content",
		EntityID:    ptrUUID(uuid.New()),
		Status:      types.JobStatusFailed,
		Stage:       "failed",
		Attempts:    0,
		LastErrorAt: ptrTime(now.Add(-2 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-2 * time.Hour),
		UpdatedAt:   now.Add(-2 * time.Hour),
	}
	staleRunning := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     types.JobTypeClipRender,
		EntityType:  "clip",
		EntityID:    ptrUUID(uuid.New()),
		Status:      types.JobStatusRunning,
		Stage:       "render",
		Attempts:    0,
		HeartbeatAt: ptrTime(now.Add(-10 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-1 * time.Hour),
		UpdatedAt:   now.Add(-1 * time.Hour),
	}

	created, err := repo.Create(dbc, []*types.JobRun{queued, failed, staleRunning})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("Create: expected 3, got %d", len(created))
	}

	if rows, err := repo.GetByIDs(dbc, []uuid.UUID{queued.ID, failed.ID, staleRunning.ID}); err != nil || len(rows) != 3 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}

	// ClaimNextRunnable walks queued, then retryable-failed, then stale
	// running rows in created_at ASC order.
	claim1, err := repo.ClaimNextRunnable(dbc, 3, 1*time.Hour, 1*time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #1: %v", err)
	}
	if claim1 == nil || claim1.ID != queued.ID {
		t.Fatalf("ClaimNextRunnable #1: expected %v got %v", queued.ID, claim1)
	}

	claim2, err := repo.ClaimNextRunnable(dbc, 3, 1*time.Hour, 1*time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #2: %v", err)
	}
	if claim2 == nil || claim2.ID != failed.ID {
		t.Fatalf("ClaimNextRunnable #2: expected %v got %v", failed.ID, claim2)
	}

	claim3, err := repo.ClaimNextRunnable(dbc, 3, 1*time.Hour, 1*time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #3: %v", err)
	}
	if claim3 == nil || claim3.ID != staleRunning.ID {
		t.Fatalf("ClaimNextRunnable #3: expected %v got %v", staleRunning.ID, claim3)
	}

	claim4, err := repo.ClaimNextRunnable(dbc, 3, 1*time.Hour, 1*time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #4: %v", err)
	}
	if claim4 != nil {
		t.Fatalf("ClaimNextRunnable #4: expected nil, got %v", claim4)
	}

	// UpdateFieldsUnlessStatus refuses to touch terminal rows.
	if err := repo.UpdateFields(dbc, queued.ID, map[string]any{"status": types.JobStatusSucceeded, "stage": "done"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	ok, err := repo.UpdateFieldsUnlessStatus(dbc, queued.ID,
		[]types.JobStatus{types.JobStatusSucceeded, types.JobStatusCancelled},
		map[string]any{"stage": "late-write"})
	if err != nil {
		t.Fatalf("UpdateFieldsUnlessStatus: %v", err)
	}
	if ok {
		t.Fatalf("UpdateFieldsUnlessStatus: expected refusal on succeeded row")
	}

	if err := repo.Heartbeat(dbc, staleRunning.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	// Dedupe guard for enqueue.
	rEntityID := uuid.New()
	runnable := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     types.JobTypeContentProcess,
		EntityType:  "content",
		EntityID:    &rEntityID,
		Status:      types.JobStatusQueued,
		Stage:       "queued",
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
	}
	if _, err := repo.Create(dbc, []*types.JobRun{runnable}); err != nil {
		t.Fatalf("seed runnable: %v", err)
	}
	has, err := repo.HasRunnableForEntity(dbc, ownerUserID, "content", rEntityID, types.JobTypeContentProcess)
	if err != nil {
		t.Fatalf("HasRunnableForEntity: %v", err)
	}
	if !has {
		t.Fatalf("HasRunnableForEntity: expected true")
	}

	latest, err := repo.GetLatestByEntity(dbc, ownerUserID, "content", rEntityID, types.JobTypeContentProcess)
	if err != nil {
		t.Fatalf("GetLatestByEntity: %v", err)
	}
	if latest == nil || latest.ID != runnable.ID {
		t.Fatalf("GetLatestByEntity: expected %v got %v", runnable.ID, latest)
	}
}

func ptrUUID(v uuid.UUID) *uuid.UUID { return &v }

func ptrTime(v time.Time) *time.Time { return &v }
