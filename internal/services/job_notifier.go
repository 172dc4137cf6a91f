package services

import (
	"context"

	"github.com/google/uuid"

	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
	"github.com/clipforge/clipforge-backend/internal/platform/redisbus"
)

type JobNotifier interface {
	JobCreated(userID uuid.UUID, job *types.JobRun)
	JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int)
	JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string)
	JobDone(userID uuid.UUID, job *types.JobRun)
}

type jobNotifier struct {
	log *logger.Logger
	bus redisbus.Bus
}

func NewJobNotifier(baseLog *logger.Logger, bus redisbus.Bus) JobNotifier {
	return &jobNotifier{
		log: baseLog.With("service", "JobNotifier"),
		bus: bus,
	}
}

func (n *jobNotifier) publish(ev redisbus.Event) {
	if n == nil || n.bus == nil {
		return
	}
	if err := n.bus.Publish(context.Background(), ev); err != nil {
		n.log.Warn("Job event publish failed (ignored)", "job_id", ev.JobID, "kind", ev.Kind, "error", err)
	}
}

func entityID(job *types.JobRun) uuid.UUID {
	if job == nil || job.EntityID == nil {
		return uuid.Nil
	}
	return *job.EntityID
}

func (n *jobNotifier) JobCreated(userID uuid.UUID, job *types.JobRun) {
	n.publish(redisbus.Event{
		UserID:   userID,
		JobID:    job.ID,
		JobType:  job.JobType,
		EntityID: entityID(job),
		Kind:     "created",
		Stage:    job.Stage,
	})
}

func (n *jobNotifier) JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int) {
	n.publish(redisbus.Event{
		UserID:   userID,
		JobID:    job.ID,
		JobType:  job.JobType,
		EntityID: entityID(job),
		Kind:     "progress",
		Stage:    stage,
		Progress: progress,
	})
}

func (n *jobNotifier) JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string) {
	n.publish(redisbus.Event{
		UserID:   userID,
		JobID:    job.ID,
		JobType:  job.JobType,
		EntityID: entityID(job),
		Kind:     "failed",
		Stage:    stage,
		Error:    errorMessage,
	})
}

func (n *jobNotifier) JobDone(userID uuid.UUID, job *types.JobRun) {
	n.publish(redisbus.Event{
		UserID:   userID,
		JobID:    job.ID,
		JobType:  job.JobType,
		EntityID: entityID(job),
		Kind:     "done",
		Stage:    job.Stage,
		Progress: 100,
	})
}
