package content_process

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/jobs/orchestrator"
	jobrt "github.com/clipforge/clipforge-backend/internal/jobs/runtime"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
	"github.com/clipforge/clipforge-backend/internal/pkg/envutil"
	"github.com/clipforge/clipforge-backend/internal/services"
)

// Run drives an uploaded content through transcription, highlight analysis
// and clip planning. Stage completion is checkpointed on the job run, so a
// requeued job resumes after the last finished stage.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if p == nil || p.contents == nil || p.clips == nil || p.transcriber == nil || p.analyzer == nil {
		jc.Fail("validate", fmt.Errorf("content_process: pipeline not configured"))
		return nil
	}

	contentID, ok := jc.PayloadUUID("content_id")
	if !ok || contentID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing content_id"))
		return nil
	}

	engine := orchestrator.NewEngine()
	engine.OnFail = func(ctx *jobrt.Context, st *orchestrator.OrchestratorState, stage string, err error) {
		dbc := dbctx.Context{Ctx: ctx.Ctx}
		if uerr := p.contents.UpdateFields(dbc, contentID, map[string]any{
			"status": types.ContentStatusError,
			"error":  fmt.Sprintf("%s: %s", stage, err.Error()),
		}); uerr != nil {
			p.log.Warn("Failed to mark content errored", "content_id", contentID, "error", uerr)
		}
	}

	retry := orchestrator.RetryPolicy{
		MaxAttempts: envutil.Int("CONTENT_PROCESS_STAGE_ATTEMPTS", 3),
		MinBackoff:  2 * time.Second,
		MaxBackoff:  30 * time.Second,
	}
	stages := []orchestrator.Stage{
		{
			Name:     "transcribe",
			StartPct: 5,
			EndPct:   40,
			Retry:    retry,
			Run:      func(ctx *jobrt.Context, st *orchestrator.OrchestratorState) (map[string]any, error) { return p.transcribe(ctx, contentID) },
		},
		{
			Name:     "analyze",
			StartPct: 40,
			EndPct:   70,
			Retry:    retry,
			Run:      func(ctx *jobrt.Context, st *orchestrator.OrchestratorState) (map[string]any, error) { return p.analyze(ctx, contentID) },
		},
		{
			Name:     "plan_clips",
			StartPct: 70,
			EndPct:   100,
			Retry:    retry,
			Run:      func(ctx *jobrt.Context, st *orchestrator.OrchestratorState) (map[string]any, error) { return p.planClips(ctx, contentID) },
		},
	}

	return engine.Run(jc, stages, map[string]any{"content_id": contentID.String()})
}

func (p *Pipeline) transcribe(jc *jobrt.Context, contentID uuid.UUID) (map[string]any, error) {
	dbc := dbctx.Context{Ctx: jc.Ctx}
	content, err := p.loadContent(dbc, contentID)
	if err != nil {
		return nil, err
	}

	// uploaded is the normal entry; error is the reprocess entry.
	if err := p.ensureStatus(dbc, contentID, content.Status,
		[]types.ContentStatus{types.ContentStatusUploaded, types.ContentStatusError},
		types.ContentStatusTranscribing,
		map[string]any{"error": ""},
	); err != nil {
		return nil, err
	}

	srcURL := content.FileURL
	if srcURL == "" {
		srcURL = content.SourceURL
	}
	if srcURL == "" {
		return nil, fmt.Errorf("content %s has no media url", contentID)
	}

	res, err := p.transcriber.Transcribe(jc.Ctx, srcURL)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	segs := services.NormalizeSegments(res.Segments)
	if err := p.contents.SaveTranscript(dbc, contentID, res.Text, types.MarshalSegments(segs), res.Duration); err != nil {
		return nil, fmt.Errorf("save transcript: %w", err)
	}
	return map[string]any{"segments": len(segs), "duration": res.Duration}, nil
}

func (p *Pipeline) analyze(jc *jobrt.Context, contentID uuid.UUID) (map[string]any, error) {
	dbc := dbctx.Context{Ctx: jc.Ctx}
	content, err := p.loadContent(dbc, contentID)
	if err != nil {
		return nil, err
	}
	if err := p.ensureStatus(dbc, contentID, content.Status,
		[]types.ContentStatus{types.ContentStatusTranscribing},
		types.ContentStatusAnalyzing, nil,
	); err != nil {
		return nil, err
	}

	segs := content.Segments()
	if len(segs) == 0 {
		return map[string]any{"highlights": 0}, nil
	}

	idxs, err := p.analyzer.AnalyzeHighlights(jc.Ctx, segs)
	if err != nil {
		return nil, fmt.Errorf("analyze highlights: %w", err)
	}
	for _, i := range idxs {
		if i >= 0 && i < len(segs) {
			segs[i].IsHighlight = true
		}
	}
	if err := p.contents.UpdateFields(dbc, contentID, map[string]any{
		"transcription_segments": types.MarshalSegments(segs),
	}); err != nil {
		return nil, fmt.Errorf("save highlights: %w", err)
	}
	return map[string]any{"highlights": len(idxs)}, nil
}

func (p *Pipeline) planClips(jc *jobrt.Context, contentID uuid.UUID) (map[string]any, error) {
	dbc := dbctx.Context{Ctx: jc.Ctx}
	content, err := p.loadContent(dbc, contentID)
	if err != nil {
		return nil, err
	}

	created := 0
	existing, err := p.clips.CountByContent(dbc, contentID)
	if err != nil {
		return nil, err
	}
	// A rerun after a partial failure must not duplicate suggestions.
	if existing == 0 {
		segs := content.Segments()
		plans, err := p.analyzer.PlanClips(jc.Ctx, segs)
		if err != nil {
			return nil, fmt.Errorf("plan clips: %w", err)
		}
		clips := make([]*types.Clip, 0, len(plans))
		for _, plan := range plans {
			if plan.StartIndex < 0 || plan.EndIndex >= len(segs) || plan.StartIndex > plan.EndIndex {
				continue
			}
			start := segs[plan.StartIndex].Start
			end := segs[plan.EndIndex].End
			score := plan.ViralScore
			clips = append(clips, &types.Clip{
				ID:          uuid.New(),
				ContentID:   contentID,
				UserID:      content.UserID,
				Title:       plan.Title,
				StartTime:   start,
				EndTime:     end,
				Duration:    end - start,
				AspectRatio: types.AspectPortrait,
				Status:      types.ClipStatusPending,
				ViralScore:  &score,
			})
		}
		if len(clips) > 0 {
			if _, err := p.clips.Create(dbc, clips); err != nil {
				return nil, fmt.Errorf("create clips: %w", err)
			}
		}
		created = len(clips)
	}

	if err := p.ensureStatus(dbc, contentID, content.Status,
		[]types.ContentStatus{types.ContentStatusAnalyzing},
		types.ContentStatusReady,
		map[string]any{"error": ""},
	); err != nil {
		return nil, err
	}
	return map[string]any{"clips": created}, nil
}

func (p *Pipeline) loadContent(dbc dbctx.Context, contentID uuid.UUID) (*types.Content, error) {
	content, err := p.contents.GetByID(dbc, contentID)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	if content == nil {
		return nil, fmt.Errorf("content %s not found", contentID)
	}
	return content, nil
}

// ensureStatus claims the status transition for a stage. A row already in
// the target status (a retried stage) is not an error.
func (p *Pipeline) ensureStatus(dbc dbctx.Context, contentID uuid.UUID, current types.ContentStatus, from []types.ContentStatus, to types.ContentStatus, updates map[string]any) error {
	if current == to {
		return nil
	}
	ok, err := p.contents.TransitionStatus(dbc, contentID, from, to, updates)
	if err != nil {
		return err
	}
	if !ok {
		fresh, gerr := p.contents.GetByID(dbc, contentID)
		if gerr == nil && fresh != nil && fresh.Status == to {
			return nil
		}
		return fmt.Errorf("content %s not in a state that allows %s", contentID, to)
	}
	return nil
}
