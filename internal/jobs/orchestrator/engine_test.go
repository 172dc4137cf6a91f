package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/clipforge/clipforge-backend/internal/domain"
	jobrt "github.com/clipforge/clipforge-backend/internal/jobs/runtime"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
)

// fakeJobRepo keeps a single job row's status in memory so engine runs can
// be exercised without Postgres.
type fakeJobRepo struct {
	status  types.JobStatus
	updates []map[string]any
}

func (f *fakeJobRepo) Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error) {
	return jobs, nil
}

func (f *fakeJobRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.JobRun, error) {
	return nil, nil
}

func (f *fakeJobRepo) GetLatestByEntity(dbc dbctx.Context, ownerUserID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	return nil, nil
}

func (f *fakeJobRepo) ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.JobRun, error) {
	return nil, nil
}

func (f *fakeJobRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error {
	f.apply(updates)
	return nil
}

func (f *fakeJobRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowed []types.JobStatus, updates map[string]any) (bool, error) {
	for _, s := range disallowed {
		if f.status == s {
			return false, nil
		}
	}
	f.apply(updates)
	return true, nil
}

func (f *fakeJobRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error { return nil }

func (f *fakeJobRepo) HasRunnableForEntity(dbc dbctx.Context, ownerUserID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (bool, error) {
	return false, nil
}

func (f *fakeJobRepo) apply(updates map[string]any) {
	f.updates = append(f.updates, updates)
	if v, ok := updates["status"]; ok {
		if s, ok := v.(types.JobStatus); ok {
			f.status = s
		}
	}
}

func newTestContext(repo *fakeJobRepo) *jobrt.Context {
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: uuid.New(),
		JobType:     "content_process",
		Status:      types.JobStatusRunning,
	}
	repo.status = types.JobStatusRunning
	return jobrt.NewContext(context.Background(), nil, job, repo, nil)
}

func fastEngine() *Engine {
	e := NewEngine()
	e.MinPollInterval = time.Millisecond
	e.MaxPollInterval = 2 * time.Millisecond
	return e
}

func TestEngineRunsStagesInOrder(t *testing.T) {
	repo := &fakeJobRepo{}
	jc := newTestContext(repo)
	e := fastEngine()

	var order []string
	stages := []Stage{
		{
			Name:     "transcribe",
			StartPct: 5,
			EndPct:   40,
			Run: func(ctx *jobrt.Context, st *OrchestratorState) (map[string]any, error) {
				order = append(order, "transcribe")
				return map[string]any{"duration": 12.5}, nil
			},
		},
		{
			Name:     "analyze",
			StartPct: 40,
			EndPct:   100,
			Run: func(ctx *jobrt.Context, st *OrchestratorState) (map[string]any, error) {
				order = append(order, "analyze")
				return nil, nil
			},
		},
	}

	if err := e.Run(jc, stages, map[string]any{"content_id": "x"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(order) != 2 || order[0] != "transcribe" || order[1] != "analyze" {
		t.Fatalf("stage order = %v", order)
	}
	if jc.Job.Status != types.JobStatusSucceeded {
		t.Fatalf("status = %s, want succeeded", jc.Job.Status)
	}
	if jc.Job.Progress != 100 {
		t.Fatalf("progress = %d, want 100", jc.Job.Progress)
	}

	var result map[string]any
	if err := json.Unmarshal(jc.Job.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if _, ok := result["orchestrator"]; !ok {
		t.Fatalf("result missing orchestrator state: %v", result)
	}
	if result["content_id"] != "x" {
		t.Fatalf("final result not merged: %v", result)
	}
}

func TestEngineSkipsCheckpointedStages(t *testing.T) {
	repo := &fakeJobRepo{}
	jc := newTestContext(repo)
	e := fastEngine()

	prior := &OrchestratorState{Version: 1, Stages: map[string]*StageState{
		"transcribe": {Name: "transcribe", Status: StageSucceeded},
	}}
	b, err := json.Marshal(prior)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	jc.Job.Result = datatypes.JSON(b)

	transcribeRan := false
	analyzeRan := false
	stages := []Stage{
		{Name: "transcribe", EndPct: 50, Run: func(ctx *jobrt.Context, st *OrchestratorState) (map[string]any, error) {
			transcribeRan = true
			return nil, nil
		}},
		{Name: "analyze", StartPct: 50, EndPct: 100, Run: func(ctx *jobrt.Context, st *OrchestratorState) (map[string]any, error) {
			analyzeRan = true
			return nil, nil
		}},
	}

	if err := e.Run(jc, stages, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if transcribeRan {
		t.Fatal("succeeded stage reran")
	}
	if !analyzeRan {
		t.Fatal("pending stage did not run")
	}
	if jc.Job.Status != types.JobStatusSucceeded {
		t.Fatalf("status = %s, want succeeded", jc.Job.Status)
	}
}

func TestEngineRetriesThenSucceeds(t *testing.T) {
	repo := &fakeJobRepo{}
	jc := newTestContext(repo)
	e := fastEngine()

	calls := 0
	stages := []Stage{
		{
			Name:   "transcribe",
			EndPct: 100,
			Retry:  RetryPolicy{MaxAttempts: 3, MinBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
			Run: func(ctx *jobrt.Context, st *OrchestratorState) (map[string]any, error) {
				calls++
				if calls == 1 {
					return nil, errors.New("transient upstream error")
				}
				return nil, nil
			},
		},
	}

	// First pass fails and yields the job back to the queue.
	if err := e.Run(jc, stages, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if repo.status != types.JobStatusQueued {
		t.Fatalf("status = %s, want queued", repo.status)
	}

	st, err := LoadState(jc, 1)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	ss := st.Stages["transcribe"]
	if ss == nil || ss.Attempts != 1 || ss.NextRunAt == nil {
		t.Fatalf("stage state after retry = %+v", ss)
	}

	// A worker reclaims the job after the backoff window.
	time.Sleep(5 * time.Millisecond)
	for i := 0; i < 3 && jc.Job.Status != types.JobStatusSucceeded; i++ {
		repo.status = types.JobStatusRunning
		jc.Job.Status = types.JobStatusRunning
		if err := e.Run(jc, stages, nil); err != nil {
			t.Fatalf("Run: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if jc.Job.Status != types.JobStatusSucceeded {
		t.Fatalf("status = %s, want succeeded", jc.Job.Status)
	}
}

func TestEngineFailsAfterMaxAttempts(t *testing.T) {
	repo := &fakeJobRepo{}
	jc := newTestContext(repo)
	e := fastEngine()

	var failedStage string
	e.OnFail = func(ctx *jobrt.Context, st *OrchestratorState, stage string, err error) {
		failedStage = stage
	}

	stages := []Stage{
		{
			Name:   "render",
			EndPct: 100,
			Retry:  RetryPolicy{MaxAttempts: 1},
			Run: func(ctx *jobrt.Context, st *OrchestratorState) (map[string]any, error) {
				return nil, errors.New("renderer rejected input")
			},
		},
	}

	if err := e.Run(jc, stages, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if failedStage != "render" {
		t.Fatalf("OnFail stage = %q, want render", failedStage)
	}
	if jc.Job.Status != types.JobStatusFailed {
		t.Fatalf("status = %s, want failed", jc.Job.Status)
	}
	if jc.Job.Error != "renderer rejected input" {
		t.Fatalf("error = %q", jc.Job.Error)
	}
}

func TestEngineRejectsDuplicateStageNames(t *testing.T) {
	repo := &fakeJobRepo{}
	jc := newTestContext(repo)
	e := fastEngine()

	noop := func(ctx *jobrt.Context, st *OrchestratorState) (map[string]any, error) { return nil, nil }
	stages := []Stage{
		{Name: "transcribe", Run: noop},
		{Name: "transcribe", Run: noop},
	}

	if err := e.Run(jc, stages, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if jc.Job.Status != types.JobStatusFailed {
		t.Fatalf("status = %s, want failed", jc.Job.Status)
	}
}

func TestEngineDoesNotOverwriteCancelledJob(t *testing.T) {
	repo := &fakeJobRepo{}
	jc := newTestContext(repo)
	repo.status = types.JobStatusCancelled
	e := fastEngine()

	stages := []Stage{
		{Name: "transcribe", EndPct: 100, Run: func(ctx *jobrt.Context, st *OrchestratorState) (map[string]any, error) {
			return nil, nil
		}},
	}

	if err := e.Run(jc, stages, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.status != types.JobStatusCancelled {
		t.Fatalf("status = %s, cancelled job was overwritten", repo.status)
	}
}
