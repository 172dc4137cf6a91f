package clip_render

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clipforge/clipforge-backend/internal/data/repos"
	types "github.com/clipforge/clipforge-backend/internal/domain"
	jobrt "github.com/clipforge/clipforge-backend/internal/jobs/runtime"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
	"github.com/clipforge/clipforge-backend/internal/platform/replicate"
)

type Pipeline struct {
	db  *gorm.DB
	log *logger.Logger

	clips    repos.ClipRepo
	contents repos.ContentRepo
	renderer replicate.Client
}

func New(db *gorm.DB, baseLog *logger.Logger, clips repos.ClipRepo, contents repos.ContentRepo, renderer replicate.Client) *Pipeline {
	return &Pipeline{
		db:       db,
		log:      baseLog.With("job", "clip_render"),
		clips:    clips,
		contents: contents,
		renderer: renderer,
	}
}

func (p *Pipeline) Type() string { return types.JobTypeClipRender }

// Run renders a single clip through the external video model. A failed
// render leaves any previously rendered artifact URLs on the row untouched.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if p == nil || p.clips == nil || p.contents == nil || p.renderer == nil {
		jc.Fail("validate", fmt.Errorf("clip_render: pipeline not configured"))
		return nil
	}

	clipID, ok := jc.PayloadUUID("clip_id")
	if !ok || clipID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing clip_id"))
		return nil
	}

	dbc := dbctx.Context{Ctx: jc.Ctx}
	clip, err := p.clips.GetByID(dbc, clipID)
	if err != nil {
		jc.Fail("load", err)
		return nil
	}
	if clip == nil {
		jc.Fail("load", fmt.Errorf("clip %s not found", clipID))
		return nil
	}

	// RequestRender claims the processing state before enqueueing; a stale
	// retry re-claims from any renderable state here.
	if clip.Status != types.ClipStatusProcessing {
		claimed, err := p.clips.TransitionStatus(dbc, clipID,
			[]types.ClipStatus{types.ClipStatusPending, types.ClipStatusError, types.ClipStatusReady},
			types.ClipStatusProcessing,
			map[string]any{"error": ""},
		)
		if err != nil {
			jc.Fail("claim", err)
			return nil
		}
		if !claimed {
			jc.Fail("claim", fmt.Errorf("clip %s not in a renderable state (%s)", clipID, clip.Status))
			return nil
		}
	}

	jc.Progress("render", 10)

	content, err := p.contents.GetByID(dbc, clip.ContentID)
	if err != nil || content == nil {
		p.failClip(dbc, jc, clipID, fmt.Errorf("load source content: %w", orNotFound(err)))
		return nil
	}
	srcURL := content.FileURL
	if srcURL == "" {
		srcURL = content.SourceURL
	}
	if srcURL == "" {
		p.failClip(dbc, jc, clipID, fmt.Errorf("content %s has no media url", clip.ContentID))
		return nil
	}

	res, err := p.renderer.RenderClip(jc.Ctx, replicate.RenderRequest{
		SourceURL:   srcURL,
		StartTime:   clip.StartTime,
		EndTime:     clip.EndTime,
		AspectRatio: string(clip.AspectRatio),
		Subtitles:   true,
	})
	if err != nil {
		p.failClip(dbc, jc, clipID, fmt.Errorf("render: %w", err))
		return nil
	}

	jc.Progress("render", 90)

	ok2, err := p.clips.TransitionStatus(dbc, clipID,
		[]types.ClipStatus{types.ClipStatusProcessing},
		types.ClipStatusReady,
		map[string]any{
			"file_url":      res.VideoURL,
			"thumbnail_url": res.ThumbnailURL,
			"error":         "",
		},
	)
	if err != nil {
		jc.Fail("finalize", err)
		return nil
	}
	if !ok2 {
		jc.Fail("finalize", fmt.Errorf("clip %s left processing before the render finished", clipID))
		return nil
	}

	jc.Succeed("done", map[string]any{
		"clip_id":       clipID.String(),
		"file_url":      res.VideoURL,
		"thumbnail_url": res.ThumbnailURL,
	})
	return nil
}

// failClip pushes the failure onto the clip row, then fails the job run.
// Artifact URLs from an earlier successful render are left as they were.
func (p *Pipeline) failClip(dbc dbctx.Context, jc *jobrt.Context, clipID uuid.UUID, err error) {
	if _, terr := p.clips.TransitionStatus(dbc, clipID,
		[]types.ClipStatus{types.ClipStatusProcessing},
		types.ClipStatusError,
		map[string]any{"error": err.Error()},
	); terr != nil {
		p.log.Warn("Failed to mark clip errored", "clip_id", clipID, "error", terr)
	}
	jc.Fail("render", err)
}

func orNotFound(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("not found")
}
