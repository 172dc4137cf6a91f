package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clipforge/clipforge-backend/internal/data/repos"
	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/apierr"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
	"github.com/clipforge/clipforge-backend/internal/pkg/envutil"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
	"github.com/clipforge/clipforge-backend/internal/platform/gcs"
)

// CreateUploadResult pairs the created content row with a signed PUT URL the
// client uploads the media to.
type CreateUploadResult struct {
	Content   *types.Content `json:"content"`
	UploadURL string         `json:"upload_url"`
}

// ContentStatusView is the poll shape for the processing endpoint.
type ContentStatusView struct {
	ID        uuid.UUID           `json:"id"`
	Status    types.ContentStatus `json:"status"`
	Error     string              `json:"error,omitempty"`
	Duration  *float64            `json:"duration,omitempty"`
	ClipCount int64               `json:"clip_count"`
	Job       *types.JobRun       `json:"job,omitempty"`
}

type ContentService interface {
	CreateUpload(dbc dbctx.Context, userID uuid.UUID, title, filename, contentType string) (*CreateUploadResult, error)
	Import(dbc dbctx.Context, userID uuid.UUID, title string, sourceType types.SourceType, sourceURL string) (*types.Content, error)
	// MarkUploaded flips uploading to uploaded once the client finishes the
	// signed PUT.
	MarkUploaded(dbc dbctx.Context, userID, contentID uuid.UUID) (*types.Content, error)
	// StartProcessing reserves quota and enqueues the processing job. An
	// already-runnable job for the content short-circuits without touching
	// the quota ledger.
	StartProcessing(dbc dbctx.Context, userID, contentID uuid.UUID) (*types.JobRun, error)
	// Reprocess re-enters the pipeline for a content that previously failed.
	Reprocess(dbc dbctx.Context, userID, contentID uuid.UUID) (*types.JobRun, error)
	Get(dbc dbctx.Context, userID, contentID uuid.UUID) (*types.Content, error)
	List(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.Content, error)
	Status(dbc dbctx.Context, userID, contentID uuid.UUID) (*ContentStatusView, error)
	// Delete removes the content, its clips and generated content (DB
	// cascade) and best-effort cleans the media objects.
	Delete(dbc dbctx.Context, userID, contentID uuid.UUID) error
}

type contentService struct {
	db          *gorm.DB
	log         *logger.Logger
	contentRepo repos.ContentRepo
	clipRepo    repos.ClipRepo
	quota       QuotaService
	jobs        JobService
	buckets     gcs.BucketService
}

func NewContentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	contentRepo repos.ContentRepo,
	clipRepo repos.ClipRepo,
	quota QuotaService,
	jobs JobService,
	buckets gcs.BucketService,
) ContentService {
	return &contentService{
		db:          db,
		log:         baseLog.With("service", "ContentService"),
		contentRepo: contentRepo,
		clipRepo:    clipRepo,
		quota:       quota,
		jobs:        jobs,
		buckets:     buckets,
	}
}

func (s *contentService) CreateUpload(dbc dbctx.Context, userID uuid.UUID, title, filename, contentType string) (*CreateUploadResult, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user id")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apierr.BadRequest("missing_title", fmt.Errorf("title is required"))
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, apierr.BadRequest("missing_filename", fmt.Errorf("filename is required"))
	}
	if s.buckets == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}

	content := &types.Content{
		ID:         uuid.New(),
		UserID:     userID,
		Title:      title,
		SourceType: types.SourceUpload,
		Status:     types.ContentStatusUploading,
	}

	key := fmt.Sprintf("uploads/%s/%s/%s", userID.String(), content.ID.String(), filename)
	ttl := envutil.Seconds("UPLOAD_URL_TTL_SECONDS", 900)
	uploadURL, err := s.buckets.SignedUploadURL(gcs.BucketCategoryMedia, key, contentType, ttl)
	if err != nil {
		return nil, fmt.Errorf("sign upload url: %w", err)
	}
	content.FileURL = s.buckets.GetPublicURL(gcs.BucketCategoryMedia, key)

	if _, err := s.contentRepo.Create(dbc, []*types.Content{content}); err != nil {
		return nil, fmt.Errorf("create content: %w", err)
	}
	s.log.Info("Content created for upload", "content_id", content.ID, "user_id", userID)
	return &CreateUploadResult{Content: content, UploadURL: uploadURL}, nil
}

func (s *contentService) Import(dbc dbctx.Context, userID uuid.UUID, title string, sourceType types.SourceType, sourceURL string) (*types.Content, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user id")
	}
	if !types.ValidSourceType(sourceType) || sourceType == types.SourceUpload {
		return nil, apierr.BadRequest("invalid_source_type", fmt.Errorf("source type %q is not importable", sourceType))
	}
	sourceURL = strings.TrimSpace(sourceURL)
	if !strings.HasPrefix(sourceURL, "http://") && !strings.HasPrefix(sourceURL, "https://") {
		return nil, apierr.BadRequest("invalid_source_url", fmt.Errorf("source url must be http(s)"))
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = sourceURL
	}

	content := &types.Content{
		ID:         uuid.New(),
		UserID:     userID,
		Title:      title,
		SourceType: sourceType,
		SourceURL:  sourceURL,
		FileURL:    sourceURL,
		Status:     types.ContentStatusUploaded,
	}
	if _, err := s.contentRepo.Create(dbc, []*types.Content{content}); err != nil {
		return nil, fmt.Errorf("create content: %w", err)
	}
	s.log.Info("Content imported", "content_id", content.ID, "source_type", sourceType)
	return content, nil
}

func (s *contentService) MarkUploaded(dbc dbctx.Context, userID, contentID uuid.UUID) (*types.Content, error) {
	content, err := s.getOwned(dbc, userID, contentID)
	if err != nil {
		return nil, err
	}
	claimed, err := s.contentRepo.TransitionStatus(dbc, contentID,
		[]types.ContentStatus{types.ContentStatusUploading}, types.ContentStatusUploaded, nil)
	if err != nil {
		return nil, err
	}
	if !claimed && content.Status != types.ContentStatusUploaded {
		return nil, apierr.BadRequest("invalid_state", fmt.Errorf("content %s is %s", contentID, content.Status))
	}
	content.Status = types.ContentStatusUploaded
	return content, nil
}

func (s *contentService) StartProcessing(dbc dbctx.Context, userID, contentID uuid.UUID) (*types.JobRun, error) {
	content, err := s.getOwned(dbc, userID, contentID)
	if err != nil {
		return nil, err
	}
	switch content.Status {
	case types.ContentStatusUploaded, types.ContentStatusError:
	default:
		return nil, apierr.BadRequest("invalid_state", fmt.Errorf("content %s is %s", contentID, content.Status))
	}

	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}

	var job *types.JobRun
	started := false
	err = transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}

		if err := s.quota.CheckAndReserve(inner, userID, contentID); err != nil {
			return err
		}
		j, ok, err := s.jobs.EnqueueContentProcessIfNeeded(inner, userID, contentID)
		if err != nil {
			return err
		}
		job, started = j, ok
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !started {
		// Another request already has a runnable job; report it.
		existing, err := s.jobs.GetLatestForEntity(dbc, userID, "content", contentID, types.JobTypeContentProcess)
		if err != nil {
			return nil, err
		}
		return existing, nil
	}

	// The enqueue above ran inside a transaction, so the workflow was not
	// started yet.
	if err := s.jobs.Dispatch(dbctx.Context{Ctx: dbc.Ctx}, job.ID); err != nil {
		return job, err
	}
	s.log.Info("Content processing started", "content_id", contentID, "job_id", job.ID)
	return job, nil
}

func (s *contentService) Reprocess(dbc dbctx.Context, userID, contentID uuid.UUID) (*types.JobRun, error) {
	content, err := s.getOwned(dbc, userID, contentID)
	if err != nil {
		return nil, err
	}
	// Only errored content re-enters the pipeline; ready is terminal.
	if content.Status != types.ContentStatusError {
		return nil, apierr.BadRequest("invalid_state", fmt.Errorf("content %s is %s, not reprocessable", contentID, content.Status))
	}
	if err := s.contentRepo.UpdateFields(dbc, contentID, map[string]any{"error": ""}); err != nil {
		return nil, err
	}
	// usage_counted is already set for this content, so StartProcessing's
	// quota reservation becomes a no-op.
	return s.StartProcessing(dbc, userID, contentID)
}

func (s *contentService) Get(dbc dbctx.Context, userID, contentID uuid.UUID) (*types.Content, error) {
	return s.getOwned(dbc, userID, contentID)
}

func (s *contentService) List(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.Content, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.contentRepo.ListByUser(dbc, userID, limit, offset)
}

func (s *contentService) Status(dbc dbctx.Context, userID, contentID uuid.UUID) (*ContentStatusView, error) {
	content, err := s.getOwned(dbc, userID, contentID)
	if err != nil {
		return nil, err
	}
	clipCount, err := s.clipRepo.CountByContent(dbc, contentID)
	if err != nil {
		return nil, err
	}
	view := &ContentStatusView{
		ID:        content.ID,
		Status:    content.Status,
		Error:     content.Error,
		Duration:  content.Duration,
		ClipCount: clipCount,
	}
	if job, err := s.jobs.GetLatestForEntity(dbc, userID, "content", contentID, types.JobTypeContentProcess); err == nil && job != nil {
		view.Job = job
	}
	return view, nil
}

func (s *contentService) Delete(dbc dbctx.Context, userID, contentID uuid.UUID) error {
	content, err := s.getOwned(dbc, userID, contentID)
	if err != nil {
		return err
	}

	deleted, err := s.contentRepo.Delete(dbc, userID, contentID)
	if err != nil {
		return err
	}
	if !deleted {
		return apierr.NotFound("content_not_found", fmt.Errorf("content %s not found", contentID))
	}

	// Media cleanup is best-effort; the DB row is already gone.
	if content.SourceType == types.SourceUpload && s.buckets != nil {
		prefix := fmt.Sprintf("uploads/%s/%s/", userID.String(), contentID.String())
		go func() {
			ctx, cancel := contextWithTimeout(60 * time.Second)
			defer cancel()
			if err := s.buckets.DeletePrefix(ctx, gcs.BucketCategoryMedia, prefix); err != nil {
				s.log.Warn("Media cleanup failed (ignored)", "content_id", contentID, "prefix", prefix, "error", err)
			}
		}()
	}
	s.log.Info("Content deleted", "content_id", contentID, "user_id", userID)
	return nil
}

func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}

func (s *contentService) getOwned(dbc dbctx.Context, userID, contentID uuid.UUID) (*types.Content, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("not authenticated")
	}
	if contentID == uuid.Nil {
		return nil, apierr.BadRequest("missing_content_id", fmt.Errorf("missing content id"))
	}
	content, err := s.contentRepo.GetForUser(dbc, userID, contentID)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, apierr.NotFound("content_not_found", fmt.Errorf("content %s not found", contentID))
	}
	return content, nil
}
