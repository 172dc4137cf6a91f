package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/clipforge/clipforge-backend/internal/data/repos"
	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
	"github.com/clipforge/clipforge-backend/internal/services"
)

/*
The execution contract between the job system and all pipeline code.
runtime.Context is a capability-scoped execution handle for a single job run.
It wraps:
	- The database handle,
	- The mutable job_run row,
	- The notification side-effects,
	- And the only sanctioned ways to report progress or terminate execution
Pipelines never touch job_run directly. They must go through this object.
*/

type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.JobRun
	Repo    repos.JobRunRepo
	Notify  services.JobNotifier
	payload map[string]any
}

// notCancelled guards every lifecycle write so a cancelled job is never
// overwritten by a worker that raced the cancellation.
var notCancelled = []types.JobStatus{types.JobStatusCancelled}

/*
NewContext constructs a runtime.Context for a claimed job execution.
It eagerly decodes the job payload JSON so handlers can access inputs via
Payload()/PayloadUUID(). A payload decode failure is non-fatal here; handlers
validate required fields themselves.
*/
func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo, notify services.JobNotifier) *Context {
	c := &Context{
		Ctx:    ctx,
		DB:     db,
		Job:    job,
		Repo:   repo,
		Notify: notify,
	}
	_ = c.decodePayload()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil {
		return nil
	}
	if len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

// Payload returns the decoded payload map for this job execution. Never
// returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

/*
PayloadUUID reads a payload field by key and attempts to parse it as a UUID.
Returns (uuid.Nil, false) if the key is missing, nil, or not parseable. This
keeps UUID validation out of pipelines and makes payload parsing uniform.
*/
func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(fmt.Sprint(v))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

/*
Update applies arbitrary field updates to the underlying job_run row in
storage, guarded so a cancelled job is not overwritten.
Intended use:
	- low-level state writes (e.g. orchestrator checkpoints into result)
	- rare custom transitions not covered by Progress/Fail/Succeed
Prefer Progress/Fail/Succeed for lifecycle transitions so invariants remain
centralized.
*/
func (c *Context) Update(updates map[string]any) error {
	if c.Job == nil || c.Job.ID == uuid.Nil {
		return nil
	}
	_, err := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, notCancelled, updates)
	return err
}

/*
Progress publishes a non-terminal status update for this job run.
It persists stage/progress + heartbeat timestamps into job_run (guarded so
cancelled jobs are not overwritten), mirrors the fields on the in-memory
c.Job, and emits a notifier event so clients can update promptly.
*/
func (c *Context) Progress(stage string, pct int) {
	if c == nil {
		return
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, c.Job.ID, notCancelled, map[string]any{
			"stage":        stage,
			"progress":     pct,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if !ok {
			return
		}
	}

	if c.Job != nil {
		c.Job.Stage = stage
		c.Job.Progress = pct
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
		// status remains whatever it is in DB ("running" after claim)
	}

	if c.Notify != nil && c.Job != nil {
		c.Notify.JobProgress(c.Job.OwnerUserID, c.Job, stage, pct)
	}
}

/*
Fail marks this job run as terminally failed and records an error message.
It sets status=failed, stage, error and last_error_at, and clears locked_at so
other workers won't treat the row as in-progress. Guarded by the cancelled
check; if the update is rejected nothing is emitted.
*/
func (c *Context) Fail(stage string, err error) {
	if c == nil {
		return
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, c.Job.ID, notCancelled, map[string]any{
			"status":        types.JobStatusFailed,
			"stage":         stage,
			"error":         msg,
			"last_error_at": now,
			"locked_at":     nil,
			"updated_at":    now,
		})
		if !ok {
			return
		}
	}

	if c.Job != nil {
		c.Job.Status = types.JobStatusFailed
		c.Job.Stage = stage
		c.Job.Error = msg
		c.Job.LastErrorAt = &now
		c.Job.LockedAt = nil
		c.Job.UpdatedAt = now
	}

	if c.Notify != nil && c.Job != nil {
		c.Notify.JobFailed(c.Job.OwnerUserID, c.Job, stage, msg)
	}
}

/*
Succeed marks this job run as terminally succeeded and persists a result
payload. It sets status=succeeded, stage, progress=100, clears error and
locked_at, and serializes result into job_run.result. Guarded by the
cancelled check; if the update is rejected nothing is emitted.
*/
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil {
		return
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()
	var res datatypes.JSON
	if result != nil {
		b, _ := json.Marshal(result)
		res = datatypes.JSON(b)
	}

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, c.Job.ID, notCancelled, map[string]any{
			"status":       types.JobStatusSucceeded,
			"stage":        finalStage,
			"progress":     100,
			"error":        "",
			"result":       res,
			"locked_at":    nil,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if !ok {
			return
		}
	}

	if c.Job != nil {
		c.Job.Status = types.JobStatusSucceeded
		c.Job.Stage = finalStage
		c.Job.Progress = 100
		c.Job.Error = ""
		c.Job.Result = res
		c.Job.LockedAt = nil
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}

	if c.Notify != nil && c.Job != nil {
		c.Notify.JobDone(c.Job.OwnerUserID, c.Job)
	}
}
