package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
	"github.com/clipforge/clipforge-backend/internal/platform/openai"
)

// ClipPlan is one model-proposed clip, expressed as segment indices.
type ClipPlan struct {
	Title      string
	StartIndex int
	EndIndex   int
	ViralScore int
	Reason     string
}

type AnalyzerService interface {
	// AnalyzeHighlights returns the segment indices the model flagged as
	// highlights. Malformed model output degrades to an empty slice; only
	// transport failures return an error.
	AnalyzeHighlights(ctx context.Context, segments []types.Segment) ([]int, error)
	// PlanClips returns validated clip plans. Invalid plans are dropped
	// silently; viral scores are clamped to [0,100].
	PlanClips(ctx context.Context, segments []types.Segment) ([]ClipPlan, error)
}

type analyzerService struct {
	log *logger.Logger
	ai  openai.Client
}

func NewAnalyzerService(baseLog *logger.Logger, ai openai.Client) AnalyzerService {
	return &analyzerService{
		log: baseLog.With("service", "AnalyzerService"),
		ai:  ai,
	}
}

var highlightSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"highlights": map[string]any{
			"type":        "array",
			"description": "Indices of the most engaging transcript segments.",
			"items":       map[string]any{"type": "integer"},
		},
	},
	"required":             []string{"highlights"},
	"additionalProperties": false,
}

var clipPlanSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"clips": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title":       map[string]any{"type": "string"},
					"start_index": map[string]any{"type": "integer"},
					"end_index":   map[string]any{"type": "integer"},
					"viral_score": map[string]any{"type": "integer"},
					"reason":      map[string]any{"type": "string"},
				},
				"required":             []string{"title", "start_index", "end_index", "viral_score", "reason"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"clips"},
	"additionalProperties": false,
}

func (s *analyzerService) AnalyzeHighlights(ctx context.Context, segments []types.Segment) ([]int, error) {
	if len(segments) == 0 {
		return []int{}, nil
	}
	system := "You analyze video transcripts for a content repurposing tool. " +
		"Pick the segments most likely to hook an audience: strong claims, emotional peaks, surprising facts, actionable advice."
	user := "Return the indices of the highlight-worthy segments.\n\nTranscript:\n" + renderTranscript(segments)

	out, err := s.ai.GenerateJSON(ctx, system, user, "transcript_highlights", highlightSchema)
	if err != nil {
		if errors.Is(err, openai.ErrMalformedOutput) {
			s.log.Warn("Highlight analysis returned unusable output, continuing without highlights", "error", err)
			return []int{}, nil
		}
		return nil, fmt.Errorf("highlight analysis: %w", err)
	}

	indices := parseHighlightIndices(out, len(segments))
	s.log.Info("Highlight analysis complete", "segments", len(segments), "highlights", len(indices))
	return indices, nil
}

func (s *analyzerService) PlanClips(ctx context.Context, segments []types.Segment) ([]ClipPlan, error) {
	if len(segments) == 0 {
		return []ClipPlan{}, nil
	}
	system := "You identify short-form clip candidates in long-form video transcripts. " +
		"Aim for self-contained moments of roughly 15 to 60 seconds with a clear hook."
	user := "Propose up to 5 clips as segment index ranges, each with a punchy title, " +
		"a viral score from 0 to 100, and a one-sentence reason.\n\nTranscript:\n" + renderTranscript(segments)

	out, err := s.ai.GenerateJSON(ctx, system, user, "clip_plans", clipPlanSchema)
	if err != nil {
		if errors.Is(err, openai.ErrMalformedOutput) {
			s.log.Warn("Clip planning returned unusable output, continuing without plans", "error", err)
			return []ClipPlan{}, nil
		}
		return nil, fmt.Errorf("clip planning: %w", err)
	}

	plans := parseClipPlans(out, segments)
	s.log.Info("Clip planning complete", "segments", len(segments), "plans", len(plans))
	return plans, nil
}

func renderTranscript(segments []types.Segment) string {
	var b strings.Builder
	for i, s := range segments {
		fmt.Fprintf(&b, "%d: [%.1f-%.1f] %s\n", i, s.Start, s.End, s.Text)
	}
	return b.String()
}

// parseHighlightIndices tolerates sloppy model output: anything that is not
// an in-range integer array entry is dropped, duplicates collapse.
func parseHighlightIndices(out map[string]any, segmentCount int) []int {
	indices := []int{}
	if out == nil {
		return indices
	}
	raw, ok := out["highlights"].([]any)
	if !ok {
		return indices
	}
	seen := make(map[int]bool, len(raw))
	for _, v := range raw {
		idx, ok := asInt(v)
		if !ok || idx < 0 || idx >= segmentCount || seen[idx] {
			continue
		}
		seen[idx] = true
		indices = append(indices, idx)
	}
	return indices
}

func parseClipPlans(out map[string]any, segments []types.Segment) []ClipPlan {
	plans := []ClipPlan{}
	if out == nil {
		return plans
	}
	raw, ok := out["clips"].([]any)
	if !ok {
		return plans
	}
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		start, okS := asInt(m["start_index"])
		end, okE := asInt(m["end_index"])
		if !okS || !okE {
			continue
		}
		if start < 0 || end < start || end >= len(segments) {
			continue
		}
		if segments[end].End-segments[start].Start <= 0 {
			continue
		}
		title := strings.TrimSpace(fmt.Sprint(m["title"]))
		if title == "" || title == "<nil>" {
			continue
		}
		score, _ := asInt(m["viral_score"])
		if score < 0 {
			score = 0
		}
		if score > 100 {
			score = 100
		}
		reason := strings.TrimSpace(fmt.Sprint(m["reason"]))
		if reason == "<nil>" {
			reason = ""
		}
		plans = append(plans, ClipPlan{
			Title:      title,
			StartIndex: start,
			EndIndex:   end,
			ViralScore: score,
			Reason:     reason,
		})
	}
	return plans
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}
