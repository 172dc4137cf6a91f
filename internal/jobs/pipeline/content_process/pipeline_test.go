package content_process

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/clipforge/clipforge-backend/internal/data/repos"
	"github.com/clipforge/clipforge-backend/internal/data/repos/testutil"
	types "github.com/clipforge/clipforge-backend/internal/domain"
	jobrt "github.com/clipforge/clipforge-backend/internal/jobs/runtime"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
	"github.com/clipforge/clipforge-backend/internal/services"
)

type stubTranscriber struct {
	res *services.TranscriptResult
	err error
}

func (s *stubTranscriber) Transcribe(ctx context.Context, fileURL string) (*services.TranscriptResult, error) {
	return s.res, s.err
}

type stubAnalyzer struct {
	highlights []int
	plans      []services.ClipPlan
	analyzeErr error
	planErr    error
}

func (s *stubAnalyzer) AnalyzeHighlights(ctx context.Context, segments []types.Segment) ([]int, error) {
	return s.highlights, s.analyzeErr
}

func (s *stubAnalyzer) PlanClips(ctx context.Context, segments []types.Segment) ([]services.ClipPlan, error) {
	return s.plans, s.planErr
}

func threeSegments() []types.Segment {
	return []types.Segment{
		{ID: "seg_0", Start: 0, End: 5, Text: "intro", Confidence: 0.9},
		{ID: "seg_1", Start: 5, End: 10, Text: "the big reveal", Confidence: 0.95},
		{ID: "seg_2", Start: 10, End: 15, Text: "outro", Confidence: 0.9},
	}
}

func seedProcessJob(t *testing.T, ctx context.Context, tx *gorm.DB, ownerID, contentID uuid.UUID) *types.JobRun {
	t.Helper()
	payload, _ := json.Marshal(map[string]any{"content_id": contentID.String()})
	j := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		JobType:     types.JobTypeContentProcess,
		EntityType:  "content",
		EntityID:    &contentID,
		Status:      types.JobStatusRunning,
		Stage:       "queued",
		Payload:     datatypes.JSON(payload),
	}
	if err := tx.WithContext(ctx).Create(j).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return j
}

func newPipeline(t *testing.T, tx *gorm.DB, transcriber services.Transcriber, analyzer services.AnalyzerService) (*Pipeline, repos.ContentRepo, repos.ClipRepo, repos.JobRunRepo) {
	t.Helper()
	log := testutil.Logger(t)
	contentRepo := repos.NewContentRepo(tx, log)
	clipRepo := repos.NewClipRepo(tx, log)
	jobRepo := repos.NewJobRunRepo(tx, log)
	return New(tx, log, contentRepo, clipRepo, transcriber, analyzer), contentRepo, clipRepo, jobRepo
}

func TestContentProcessHappyPath(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "creator@example.com", types.PlanPro, 30)
	content := testutil.SeedContent(t, ctx, tx, user.ID, types.ContentStatusUploaded)
	if err := tx.Model(&types.Content{}).Where("id = ?", content.ID).
		Update("file_url", "https://cdn.example.com/episode.mp4").Error; err != nil {
		t.Fatalf("set file_url: %v", err)
	}

	transcriber := &stubTranscriber{res: &services.TranscriptResult{
		Text:     "intro the big reveal outro",
		Duration: 15,
		Segments: threeSegments(),
	}}
	analyzer := &stubAnalyzer{
		highlights: []int{1},
		plans:      []services.ClipPlan{{Title: "The big reveal", StartIndex: 1, EndIndex: 2, ViralScore: 82}},
	}

	p, contentRepo, clipRepo, jobRepo := newPipeline(t, tx, transcriber, analyzer)
	job := seedProcessJob(t, ctx, tx, user.ID, content.ID)
	jc := jobrt.NewContext(ctx, tx, job, jobRepo, nil)

	if err := p.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if jc.Job.Status != types.JobStatusSucceeded {
		t.Fatalf("job status = %s (error %q)", jc.Job.Status, jc.Job.Error)
	}

	dbc := dbctxFor(ctx)
	got, err := contentRepo.GetByID(dbc, content.ID)
	if err != nil || got == nil {
		t.Fatalf("reload content: %v", err)
	}
	if got.Status != types.ContentStatusReady {
		t.Fatalf("content status = %s, want ready", got.Status)
	}
	if got.Transcription != "intro the big reveal outro" {
		t.Fatalf("transcription = %q", got.Transcription)
	}
	if got.Duration == nil || *got.Duration != 15 {
		t.Fatalf("duration = %v", got.Duration)
	}
	segs := got.Segments()
	if len(segs) != 3 || !segs[1].IsHighlight || segs[0].IsHighlight {
		t.Fatalf("highlight flags wrong: %+v", segs)
	}

	clips, err := clipRepo.ListByContent(dbc, content.ID)
	if err != nil {
		t.Fatalf("list clips: %v", err)
	}
	if len(clips) != 1 {
		t.Fatalf("clip count = %d, want 1", len(clips))
	}
	clip := clips[0]
	if clip.Status != types.ClipStatusPending || clip.Title != "The big reveal" {
		t.Fatalf("clip = %+v", clip)
	}
	if clip.StartTime != 5 || clip.EndTime != 15 || clip.Duration != 10 {
		t.Fatalf("clip window = [%v, %v] dur %v", clip.StartTime, clip.EndTime, clip.Duration)
	}
	if clip.ViralScore == nil || *clip.ViralScore != 82 {
		t.Fatalf("viral score = %v", clip.ViralScore)
	}
}

func TestContentProcessMarksContentErrorOnTerminalFailure(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	t.Setenv("CONTENT_PROCESS_STAGE_ATTEMPTS", "1")

	user := testutil.SeedUser(t, ctx, tx, "creator@example.com", types.PlanFree, 3)
	content := testutil.SeedContent(t, ctx, tx, user.ID, types.ContentStatusUploaded)
	if err := tx.Model(&types.Content{}).Where("id = ?", content.ID).
		Update("file_url", "https://cdn.example.com/episode.mp4").Error; err != nil {
		t.Fatalf("set file_url: %v", err)
	}

	transcriber := &stubTranscriber{err: errors.New("speech backend unavailable")}
	p, contentRepo, _, jobRepo := newPipeline(t, tx, transcriber, &stubAnalyzer{})
	job := seedProcessJob(t, ctx, tx, user.ID, content.ID)
	jc := jobrt.NewContext(ctx, tx, job, jobRepo, nil)

	if err := p.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if jc.Job.Status != types.JobStatusFailed {
		t.Fatalf("job status = %s, want failed", jc.Job.Status)
	}

	got, err := contentRepo.GetByID(dbctxFor(ctx), content.ID)
	if err != nil || got == nil {
		t.Fatalf("reload content: %v", err)
	}
	if got.Status != types.ContentStatusError {
		t.Fatalf("content status = %s, want error", got.Status)
	}
	if !strings.Contains(got.Error, "speech backend unavailable") {
		t.Fatalf("content error = %q", got.Error)
	}
}

func TestContentProcessDoesNotDuplicateClips(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "creator@example.com", types.PlanStarter, 10)
	content := testutil.SeedContent(t, ctx, tx, user.ID, types.ContentStatusUploaded)
	if err := tx.Model(&types.Content{}).Where("id = ?", content.ID).
		Update("file_url", "https://cdn.example.com/episode.mp4").Error; err != nil {
		t.Fatalf("set file_url: %v", err)
	}
	testutil.SeedClip(t, ctx, tx, content.ID, user.ID, types.ClipStatusReady)

	transcriber := &stubTranscriber{res: &services.TranscriptResult{
		Text:     "intro the big reveal outro",
		Duration: 15,
		Segments: threeSegments(),
	}}
	analyzer := &stubAnalyzer{
		plans: []services.ClipPlan{{Title: "dup", StartIndex: 0, EndIndex: 1, ViralScore: 50}},
	}

	p, contentRepo, clipRepo, jobRepo := newPipeline(t, tx, transcriber, analyzer)
	job := seedProcessJob(t, ctx, tx, user.ID, content.ID)
	jc := jobrt.NewContext(ctx, tx, job, jobRepo, nil)

	if err := p.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if jc.Job.Status != types.JobStatusSucceeded {
		t.Fatalf("job status = %s (error %q)", jc.Job.Status, jc.Job.Error)
	}

	dbc := dbctxFor(ctx)
	clips, err := clipRepo.ListByContent(dbc, content.ID)
	if err != nil {
		t.Fatalf("list clips: %v", err)
	}
	if len(clips) != 1 {
		t.Fatalf("clip count = %d, want 1 (existing clips kept, no new plans)", len(clips))
	}

	got, _ := contentRepo.GetByID(dbc, content.ID)
	if got == nil || got.Status != types.ContentStatusReady {
		t.Fatalf("content status = %v, want ready", got)
	}
}

func TestContentProcessFailsWithoutContentID(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "creator@example.com", types.PlanFree, 3)
	p, _, _, jobRepo := newPipeline(t, tx, &stubTranscriber{}, &stubAnalyzer{})
	job := testutil.SeedJobRun(t, ctx, tx, user.ID, types.JobTypeContentProcess, types.JobStatusRunning)
	jc := jobrt.NewContext(ctx, tx, job, jobRepo, nil)

	if err := p.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if jc.Job.Status != types.JobStatusFailed {
		t.Fatalf("job status = %s, want failed", jc.Job.Status)
	}
	if !strings.Contains(jc.Job.Error, "content_id") {
		t.Fatalf("job error = %q", jc.Job.Error)
	}
}

func dbctxFor(ctx context.Context) dbctx.Context { return dbctx.Context{Ctx: ctx} }
