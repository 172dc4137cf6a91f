package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/clipforge/clipforge-backend/internal/data/repos"
	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
)

type JobService interface {
	Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error)
	Dispatch(dbc dbctx.Context, jobID uuid.UUID) error
	SignalResume(dbc dbctx.Context, jobID uuid.UUID) error
	// EnqueueContentProcessIfNeeded starts a content_process job unless one
	// is already runnable for the content. Returns (job, started, err).
	EnqueueContentProcessIfNeeded(dbc dbctx.Context, ownerUserID uuid.UUID, contentID uuid.UUID) (*types.JobRun, bool, error)
	EnqueueClipRender(dbc dbctx.Context, ownerUserID uuid.UUID, clipID uuid.UUID) (*types.JobRun, error)
	GetForUser(dbc dbctx.Context, userID uuid.UUID, jobID uuid.UUID) (*types.JobRun, error)
	GetLatestForEntity(dbc dbctx.Context, userID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error)
}

type jobService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.JobRunRepo
	notify JobNotifier

	temporal          temporalsdkclient.Client
	temporalTaskQueue string
}

func NewJobService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.JobRunRepo,
	notify JobNotifier,
	tc temporalsdkclient.Client,
	taskQueue string,
) JobService {
	return &jobService{
		db:                db,
		log:               baseLog.With("service", "JobService"),
		repo:              repo,
		notify:            notify,
		temporal:          tc,
		temporalTaskQueue: strings.TrimSpace(taskQueue),
	}
}

func (s *jobService) Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("missing owner_user_id")
	}
	if jobType == "" {
		return nil, fmt.Errorf("missing job_type")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	b, _ := json.Marshal(payload)
	now := time.Now()
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     jobType,
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      types.JobStatusQueued,
		Stage:       "queued",
		Progress:    0,
		Attempts:    0,
		Payload:     datatypes.JSON(b),
		Result:      datatypes.JSON([]byte(`{}`)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.repo.Create(dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.notify.JobCreated(ownerUserID, job)

	// Inside a real DB transaction the workflow must not start yet; callers
	// invoke Dispatch() after commit. gorm.DB pointers are cloned freely so
	// pointer inequality is not a reliable transaction detector.
	if isDBTransaction(dbc.Tx) {
		s.log.Debug("Job enqueued inside transaction; awaiting dispatch after commit", "job_id", job.ID, "job_type", job.JobType)
		return job, nil
	}
	if err := s.Dispatch(dbctx.Context{Ctx: dbc.Ctx}, job.ID); err != nil {
		return job, err
	}
	return job, nil
}

type txCommitter interface {
	Commit() error
	Rollback() error
}

func isDBTransaction(db *gorm.DB) bool {
	if db == nil || db.Statement == nil || db.Statement.ConnPool == nil {
		return false
	}
	_, ok := db.Statement.ConnPool.(txCommitter)
	return ok
}

func (s *jobService) Dispatch(dbc dbctx.Context, jobID uuid.UUID) error {
	if jobID == uuid.Nil {
		return fmt.Errorf("missing job id")
	}
	if s.temporal == nil {
		// No workflow engine; the queued row is picked up by the DB
		// polling worker instead.
		s.log.Debug("Temporal not configured; leaving job for the polling worker", "job_id", jobID)
		return nil
	}
	ctx := dbc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	err := s.startTemporalJobWorkflow(ctx, jobID, enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE)
	if err == nil {
		return nil
	}
	if _, ok := err.(*serviceerror.WorkflowExecutionAlreadyStarted); ok {
		return nil
	}

	now := time.Now().UTC()
	// Best-effort: mark job as failed if we couldn't dispatch.
	_ = s.repo.UpdateFields(dbctx.Context{Ctx: ctx, Tx: s.db}, jobID, map[string]any{
		"status":        types.JobStatusFailed,
		"stage":         "dispatch",
		"error":         err.Error(),
		"last_error_at": now,
		"locked_at":     nil,
		"updated_at":    now,
	})
	if rows, rerr := s.repo.GetByIDs(dbctx.Context{Ctx: ctx, Tx: s.db}, []uuid.UUID{jobID}); rerr == nil && len(rows) > 0 && rows[0] != nil {
		j := rows[0]
		s.notify.JobFailed(j.OwnerUserID, j, "dispatch", err.Error())
	}
	return fmt.Errorf("start temporal workflow: %w", err)
}

func (s *jobService) SignalResume(dbc dbctx.Context, jobID uuid.UUID) error {
	if s == nil || s.temporal == nil || jobID == uuid.Nil {
		return nil
	}
	ctx := dbc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	// Keep literal to avoid import cycle with jobrun.
	err := s.temporal.SignalWorkflow(ctx, jobID.String(), "", "job_resume", nil)
	if err != nil {
		if _, ok := err.(*serviceerror.NotFound); ok {
			return nil
		}
		if temporal.IsCanceledError(err) || temporal.IsTimeoutError(err) {
			return nil
		}
	}
	return err
}

func (s *jobService) EnqueueContentProcessIfNeeded(dbc dbctx.Context, ownerUserID uuid.UUID, contentID uuid.UUID) (*types.JobRun, bool, error) {
	if ownerUserID == uuid.Nil {
		return nil, false, fmt.Errorf("missing owner_user_id")
	}
	if contentID == uuid.Nil {
		return nil, false, fmt.Errorf("missing content_id")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	repoCtx := dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}
	has, err := s.repo.HasRunnableForEntity(repoCtx, ownerUserID, "content", contentID, types.JobTypeContentProcess)
	if err != nil {
		return nil, false, err
	}
	if has {
		return nil, false, nil
	}

	payload := map[string]any{
		"content_id": contentID.String(),
	}
	entityID := contentID
	job, err := s.Enqueue(repoCtx, ownerUserID, types.JobTypeContentProcess, "content", &entityID, payload)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

func (s *jobService) EnqueueClipRender(dbc dbctx.Context, ownerUserID uuid.UUID, clipID uuid.UUID) (*types.JobRun, error) {
	if clipID == uuid.Nil {
		return nil, fmt.Errorf("missing clip_id")
	}
	payload := map[string]any{
		"clip_id": clipID.String(),
	}
	entityID := clipID
	return s.Enqueue(dbc, ownerUserID, types.JobTypeClipRender, "clip", &entityID, payload)
}

func (s *jobService) GetForUser(dbc dbctx.Context, userID uuid.UUID, jobID uuid.UUID) (*types.JobRun, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("not authenticated")
	}
	if jobID == uuid.Nil {
		return nil, fmt.Errorf("missing job id")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}

	rows, err := s.repo.GetByIDs(dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}, []uuid.UUID{jobID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || rows[0] == nil || rows[0].OwnerUserID != userID {
		return nil, fmt.Errorf("job not found")
	}
	return rows[0], nil
}

func (s *jobService) GetLatestForEntity(dbc dbctx.Context, userID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("not authenticated")
	}
	if entityType == "" || entityID == uuid.Nil || jobType == "" {
		return nil, fmt.Errorf("missing entity/job info")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	return s.repo.GetLatestByEntity(dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}, userID, entityType, entityID, jobType)
}

func (s *jobService) startTemporalJobWorkflow(ctx context.Context, jobID uuid.UUID, reusePolicy enums.WorkflowIdReusePolicy) error {
	if s == nil || s.temporal == nil || jobID == uuid.Nil {
		return fmt.Errorf("temporal not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	tq := strings.TrimSpace(s.temporalTaskQueue)
	if tq == "" {
		tq = "clipforge"
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    jobID.String(),
		TaskQueue:             tq,
		WorkflowIDReusePolicy: reusePolicy,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    30 * time.Second,
			BackoffCoefficient: 1.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	}
	_, err := s.temporal.ExecuteWorkflow(ctx, opts, "job_run")
	return err
}
