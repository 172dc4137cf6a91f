package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clipforge/clipforge-backend/internal/data/repos"
	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/apierr"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
)

type ScheduleInput struct {
	// GeneratedContentID schedules an existing draft. Leave nil and set
	// Body+Platform for a manually-authored post.
	GeneratedContentID *uuid.UUID     `json:"generated_content_id,omitempty"`
	Body               string         `json:"body,omitempty"`
	Platform           types.Platform `json:"platform"`
	ScheduledAt        time.Time      `json:"scheduled_at"`
}

type ScheduleService interface {
	// Schedule creates a scheduled post. At most one non-terminal post may
	// exist per generated content.
	Schedule(dbc dbctx.Context, userID uuid.UUID, in ScheduleInput) (*types.ScheduledPost, error)
	List(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.ScheduledPost, error)
	// Cancel cancels a still-scheduled post and returns its generated
	// content to draft.
	Cancel(dbc dbctx.Context, userID, postID uuid.UUID) error
	Reschedule(dbc dbctx.Context, userID, postID uuid.UUID, at time.Time) error
}

type scheduleService struct {
	db       *gorm.DB
	log      *logger.Logger
	postRepo repos.ScheduledPostRepo
	genRepo  repos.GeneratedContentRepo
}

func NewScheduleService(
	db *gorm.DB,
	baseLog *logger.Logger,
	postRepo repos.ScheduledPostRepo,
	genRepo repos.GeneratedContentRepo,
) ScheduleService {
	return &scheduleService{
		db:       db,
		log:      baseLog.With("service", "ScheduleService"),
		postRepo: postRepo,
		genRepo:  genRepo,
	}
}

func (s *scheduleService) Schedule(dbc dbctx.Context, userID uuid.UUID, in ScheduleInput) (*types.ScheduledPost, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("not authenticated")
	}
	if !types.ValidPlatform(in.Platform) {
		return nil, apierr.BadRequest("invalid_platform", fmt.Errorf("unknown platform %q", in.Platform))
	}
	if in.ScheduledAt.IsZero() {
		return nil, apierr.BadRequest("missing_scheduled_at", fmt.Errorf("scheduled_at is required"))
	}
	if in.ScheduledAt.Before(time.Now().Add(-time.Minute)) {
		return nil, apierr.BadRequest("scheduled_in_past", fmt.Errorf("scheduled_at %s is in the past", in.ScheduledAt))
	}

	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}

	var post *types.ScheduledPost
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}

		gen, err := s.resolveGeneratedContent(inner, userID, in)
		if err != nil {
			return err
		}

		live, err := s.postRepo.HasLiveForGeneratedContent(inner, gen.ID)
		if err != nil {
			return err
		}
		if live {
			return apierr.New(409, "already_scheduled", fmt.Errorf("generated content %s already has a live schedule", gen.ID))
		}

		at := in.ScheduledAt.UTC()
		claimed, err := s.genRepo.TransitionStatus(inner, gen.ID,
			[]types.GeneratedContentStatus{types.GeneratedContentStatusDraft, types.GeneratedContentStatusFailed},
			types.GeneratedContentStatusScheduled,
			map[string]any{"scheduled_at": at})
		if err != nil {
			return err
		}
		if !claimed {
			return apierr.New(409, "not_schedulable", fmt.Errorf("generated content %s is %s", gen.ID, gen.Status))
		}

		post = &types.ScheduledPost{
			ID:                 uuid.New(),
			UserID:             userID,
			GeneratedContentID: gen.ID,
			Platform:           in.Platform,
			ScheduledAt:        at,
			Status:             types.ScheduledPostStatusScheduled,
		}
		if _, err := s.postRepo.Create(inner, []*types.ScheduledPost{post}); err != nil {
			return fmt.Errorf("create scheduled post: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Post scheduled", "post_id", post.ID, "platform", in.Platform, "scheduled_at", post.ScheduledAt)
	return post, nil
}

// resolveGeneratedContent loads the referenced draft or creates one for a
// manually-authored post.
func (s *scheduleService) resolveGeneratedContent(dbc dbctx.Context, userID uuid.UUID, in ScheduleInput) (*types.GeneratedContent, error) {
	if in.GeneratedContentID != nil && *in.GeneratedContentID != uuid.Nil {
		gen, err := s.genRepo.GetForUser(dbc, userID, *in.GeneratedContentID)
		if err != nil {
			return nil, err
		}
		if gen == nil {
			return nil, apierr.NotFound("generated_content_not_found", fmt.Errorf("generated content %s not found", *in.GeneratedContentID))
		}
		return gen, nil
	}

	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, apierr.BadRequest("missing_body", fmt.Errorf("body is required for a manual post"))
	}
	p := in.Platform
	gen := &types.GeneratedContent{
		ID:       uuid.New(),
		UserID:   userID,
		Type:     GeneratedTypeSocialPost,
		Platform: &p,
		Body:     body,
		Status:   types.GeneratedContentStatusDraft,
	}
	if _, err := s.genRepo.Create(dbc, []*types.GeneratedContent{gen}); err != nil {
		return nil, fmt.Errorf("create manual draft: %w", err)
	}
	return gen, nil
}

func (s *scheduleService) List(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.ScheduledPost, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.postRepo.ListByUser(dbc, userID, limit, offset)
}

func (s *scheduleService) Cancel(dbc dbctx.Context, userID, postID uuid.UUID) error {
	if userID == uuid.Nil {
		return fmt.Errorf("not authenticated")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}

		post, err := s.postRepo.GetForUser(inner, userID, postID)
		if err != nil {
			return err
		}
		if post == nil {
			return apierr.NotFound("scheduled_post_not_found", fmt.Errorf("scheduled post %s not found", postID))
		}

		cancelled, err := s.postRepo.Cancel(inner, userID, postID)
		if err != nil {
			return err
		}
		if !cancelled {
			return apierr.New(409, "not_cancellable", fmt.Errorf("scheduled post %s is %s", postID, post.Status))
		}

		// Return the draft so it can be rescheduled later.
		_, err = s.genRepo.TransitionStatus(inner, post.GeneratedContentID,
			[]types.GeneratedContentStatus{types.GeneratedContentStatusScheduled},
			types.GeneratedContentStatusDraft,
			map[string]any{"scheduled_at": nil})
		return err
	})
}

func (s *scheduleService) Reschedule(dbc dbctx.Context, userID, postID uuid.UUID, at time.Time) error {
	if at.Before(time.Now().Add(-time.Minute)) {
		return apierr.BadRequest("scheduled_in_past", fmt.Errorf("scheduled_at %s is in the past", at))
	}
	moved, err := s.postRepo.Reschedule(dbc, userID, postID, at.UTC())
	if err != nil {
		return err
	}
	if !moved {
		return apierr.New(409, "not_reschedulable", fmt.Errorf("scheduled post %s is not in scheduled state", postID))
	}
	return nil
}
