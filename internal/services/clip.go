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

type CreateClipInput struct {
	ContentID   uuid.UUID         `json:"content_id"`
	Title       string            `json:"title"`
	StartTime   float64           `json:"start_time"`
	EndTime     float64           `json:"end_time"`
	AspectRatio types.AspectRatio `json:"aspect_ratio"`
	RenderNow   bool              `json:"render_now"`
}

type ClipService interface {
	// Create validates the requested time range against the transcribed
	// duration and creates a pending clip. RenderNow also claims it for
	// rendering and enqueues the render job.
	Create(dbc dbctx.Context, userID uuid.UUID, in CreateClipInput) (*types.Clip, *types.JobRun, error)
	// RequestRender claims pending|error -> processing and enqueues the
	// render job. Losing the claim means a render is already in flight.
	RequestRender(dbc dbctx.Context, userID, clipID uuid.UUID, aspectRatio *types.AspectRatio) (*types.Clip, *types.JobRun, error)
	Get(dbc dbctx.Context, userID, clipID uuid.UUID) (*types.Clip, error)
	List(dbc dbctx.Context, userID uuid.UUID, contentID *uuid.UUID, status *types.ClipStatus, limit, offset int) ([]*types.Clip, error)
	Delete(dbc dbctx.Context, userID, clipID uuid.UUID) error
}

type clipService struct {
	db          *gorm.DB
	log         *logger.Logger
	clipRepo    repos.ClipRepo
	contentRepo repos.ContentRepo
	jobs        JobService
}

func NewClipService(
	db *gorm.DB,
	baseLog *logger.Logger,
	clipRepo repos.ClipRepo,
	contentRepo repos.ContentRepo,
	jobs JobService,
) ClipService {
	return &clipService{
		db:          db,
		log:         baseLog.With("service", "ClipService"),
		clipRepo:    clipRepo,
		contentRepo: contentRepo,
		jobs:        jobs,
	}
}

func (s *clipService) Create(dbc dbctx.Context, userID uuid.UUID, in CreateClipInput) (*types.Clip, *types.JobRun, error) {
	if userID == uuid.Nil {
		return nil, nil, fmt.Errorf("not authenticated")
	}
	content, err := s.contentRepo.GetForUser(dbc, userID, in.ContentID)
	if err != nil {
		return nil, nil, err
	}
	if content == nil {
		return nil, nil, apierr.NotFound("content_not_found", fmt.Errorf("content %s not found", in.ContentID))
	}
	if content.Status != types.ContentStatusReady {
		return nil, nil, apierr.BadRequest("content_not_ready", fmt.Errorf("content %s is %s, not ready", in.ContentID, content.Status))
	}

	if in.StartTime < 0 || in.EndTime <= in.StartTime {
		return nil, nil, apierr.BadRequest("invalid_time_range", fmt.Errorf("start %.2f / end %.2f is not a valid range", in.StartTime, in.EndTime))
	}
	if content.Duration != nil && in.EndTime > *content.Duration {
		return nil, nil, apierr.BadRequest("invalid_time_range", fmt.Errorf("end %.2f exceeds content duration %.2f", in.EndTime, *content.Duration))
	}

	aspect := in.AspectRatio
	if aspect == "" {
		aspect = types.AspectPortrait
	}
	if !types.ValidAspectRatio(aspect) {
		return nil, nil, apierr.BadRequest("invalid_aspect_ratio", fmt.Errorf("unknown aspect ratio %q", aspect))
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = fmt.Sprintf("Clip %.0fs-%.0fs", in.StartTime, in.EndTime)
	}

	clip := &types.Clip{
		ID:          uuid.New(),
		ContentID:   content.ID,
		UserID:      userID,
		Title:       title,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Duration:    in.EndTime - in.StartTime,
		AspectRatio: aspect,
		Status:      types.ClipStatusPending,
	}
	if _, err := s.clipRepo.Create(dbc, []*types.Clip{clip}); err != nil {
		return nil, nil, fmt.Errorf("create clip: %w", err)
	}
	s.log.Info("Clip created", "clip_id", clip.ID, "content_id", content.ID)

	if !in.RenderNow {
		return clip, nil, nil
	}
	clip, job, err := s.RequestRender(dbc, userID, clip.ID, nil)
	return clip, job, err
}

func (s *clipService) RequestRender(dbc dbctx.Context, userID, clipID uuid.UUID, aspectRatio *types.AspectRatio) (*types.Clip, *types.JobRun, error) {
	clip, err := s.getOwned(dbc, userID, clipID)
	if err != nil {
		return nil, nil, err
	}

	updates := map[string]any{
		"error": "",
	}
	if aspectRatio != nil {
		if !types.ValidAspectRatio(*aspectRatio) {
			return nil, nil, apierr.BadRequest("invalid_aspect_ratio", fmt.Errorf("unknown aspect ratio %q", *aspectRatio))
		}
		updates["aspect_ratio"] = *aspectRatio
	}

	claimed, err := s.clipRepo.TransitionStatus(dbc, clipID,
		[]types.ClipStatus{types.ClipStatusPending, types.ClipStatusError, types.ClipStatusReady},
		types.ClipStatusProcessing, updates)
	if err != nil {
		return nil, nil, err
	}
	if !claimed {
		return nil, nil, apierr.New(409, "render_in_flight", fmt.Errorf("clip %s is already rendering", clipID))
	}
	clip.Status = types.ClipStatusProcessing
	clip.Error = ""
	if aspectRatio != nil {
		clip.AspectRatio = *aspectRatio
	}

	job, err := s.jobs.EnqueueClipRender(dbc, userID, clipID)
	if err != nil {
		// Roll the claim back so the clip stays renderable.
		now := time.Now().UTC()
		_, _ = s.clipRepo.TransitionStatus(dbc, clipID,
			[]types.ClipStatus{types.ClipStatusProcessing}, types.ClipStatusError,
			map[string]any{"error": "failed to enqueue render", "updated_at": now})
		return nil, nil, err
	}
	s.log.Info("Clip render requested", "clip_id", clipID, "job_id", job.ID)
	return clip, job, nil
}

func (s *clipService) Get(dbc dbctx.Context, userID, clipID uuid.UUID) (*types.Clip, error) {
	return s.getOwned(dbc, userID, clipID)
}

func (s *clipService) List(dbc dbctx.Context, userID uuid.UUID, contentID *uuid.UUID, status *types.ClipStatus, limit, offset int) ([]*types.Clip, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var clips []*types.Clip
	var err error
	if contentID != nil && *contentID != uuid.Nil {
		content, cerr := s.contentRepo.GetForUser(dbc, userID, *contentID)
		if cerr != nil {
			return nil, cerr
		}
		if content == nil {
			return nil, apierr.NotFound("content_not_found", fmt.Errorf("content %s not found", *contentID))
		}
		clips, err = s.clipRepo.ListByContent(dbc, *contentID)
	} else {
		clips, err = s.clipRepo.ListByUser(dbc, userID, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	if status == nil {
		return clips, nil
	}
	filtered := make([]*types.Clip, 0, len(clips))
	for _, c := range clips {
		if c.Status == *status {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

func (s *clipService) Delete(dbc dbctx.Context, userID, clipID uuid.UUID) error {
	deleted, err := s.clipRepo.Delete(dbc, userID, clipID)
	if err != nil {
		return err
	}
	if !deleted {
		return apierr.NotFound("clip_not_found", fmt.Errorf("clip %s not found", clipID))
	}
	return nil
}

func (s *clipService) getOwned(dbc dbctx.Context, userID, clipID uuid.UUID) (*types.Clip, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("not authenticated")
	}
	if clipID == uuid.Nil {
		return nil, apierr.BadRequest("missing_clip_id", fmt.Errorf("missing clip id"))
	}
	clip, err := s.clipRepo.GetForUser(dbc, userID, clipID)
	if err != nil {
		return nil, err
	}
	if clip == nil {
		return nil, apierr.NotFound("clip_not_found", fmt.Errorf("clip %s not found", clipID))
	}
	return clip, nil
}
