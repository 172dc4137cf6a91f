package services

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"testing"

	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
	"github.com/clipforge/clipforge-backend/internal/platform/openai"
)

// stubAIClient returns canned JSON per schema name.
type stubAIClient struct {
	responses map[string]map[string]any
	err       error
	calls     []string
}

func (c *stubAIClient) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	c.calls = append(c.calls, schemaName)
	if c.err != nil {
		return nil, c.err
	}
	return c.responses[schemaName], nil
}

func (c *stubAIClient) TranscribeAudio(ctx context.Context, audio io.Reader, filename string) (*openai.Transcription, error) {
	return nil, fmt.Errorf("not implemented")
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func fourSegments() []types.Segment {
	return []types.Segment{
		{ID: "seg_0", Start: 0, End: 10, Text: "intro"},
		{ID: "seg_1", Start: 10, End: 25, Text: "the big claim"},
		{ID: "seg_2", Start: 25, End: 40, Text: "supporting story"},
		{ID: "seg_3", Start: 40, End: 55, Text: "call to action"},
	}
}

func TestAnalyzeHighlightsFiltersOutOfRange(t *testing.T) {
	ai := &stubAIClient{responses: map[string]map[string]any{
		"transcript_highlights": {
			"highlights": []any{float64(1), float64(3), float64(99), float64(-2), float64(1)},
		},
	}}
	svc := NewAnalyzerService(testLogger(t), ai)

	got, err := svc.AnalyzeHighlights(context.Background(), fourSegments())
	if err != nil {
		t.Fatalf("AnalyzeHighlights: %v", err)
	}
	if !reflect.DeepEqual(got, []int{1, 3}) {
		t.Fatalf("got %v want [1 3]", got)
	}
}

func TestAnalyzeHighlightsDegradesOnMalformedOutput(t *testing.T) {
	ai := &stubAIClient{responses: map[string]map[string]any{
		"transcript_highlights": {"highlights": "not an array"},
	}}
	svc := NewAnalyzerService(testLogger(t), ai)

	got, err := svc.AnalyzeHighlights(context.Background(), fourSegments())
	if err != nil {
		t.Fatalf("AnalyzeHighlights: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected zero highlights, got %v", got)
	}
}

func TestAnalyzeHighlightsDegradesOnUnparseableResponse(t *testing.T) {
	ai := &stubAIClient{err: fmt.Errorf("%w: failed to parse model JSON: invalid character", openai.ErrMalformedOutput)}
	svc := NewAnalyzerService(testLogger(t), ai)

	got, err := svc.AnalyzeHighlights(context.Background(), fourSegments())
	if err != nil {
		t.Fatalf("AnalyzeHighlights: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected zero highlights, got %v", got)
	}
}

func TestPlanClipsDegradesOnRefusal(t *testing.T) {
	ai := &stubAIClient{err: fmt.Errorf("%w: model refused: no", openai.ErrMalformedOutput)}
	svc := NewAnalyzerService(testLogger(t), ai)

	got, err := svc.PlanClips(context.Background(), fourSegments())
	if err != nil {
		t.Fatalf("PlanClips: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no plans, got %v", got)
	}
}

func TestAnalyzeHighlightsPropagatesTransportError(t *testing.T) {
	ai := &stubAIClient{err: fmt.Errorf("boom")}
	svc := NewAnalyzerService(testLogger(t), ai)

	if _, err := svc.AnalyzeHighlights(context.Background(), fourSegments()); err == nil {
		t.Fatal("expected error")
	}
}

func TestPlanClipsDropsInvalidAndClampsScore(t *testing.T) {
	ai := &stubAIClient{responses: map[string]map[string]any{
		"clip_plans": {
			"clips": []any{
				map[string]any{"title": "Keeper", "start_index": float64(1), "end_index": float64(2), "viral_score": float64(150), "reason": "strong hook"},
				map[string]any{"title": "Out of range", "start_index": float64(2), "end_index": float64(9), "viral_score": float64(50), "reason": "x"},
				map[string]any{"title": "Inverted", "start_index": float64(3), "end_index": float64(1), "viral_score": float64(50), "reason": "x"},
				map[string]any{"title": "", "start_index": float64(0), "end_index": float64(1), "viral_score": float64(50), "reason": "no title"},
				"not an object",
			},
		},
	}}
	svc := NewAnalyzerService(testLogger(t), ai)

	got, err := svc.PlanClips(context.Background(), fourSegments())
	if err != nil {
		t.Fatalf("PlanClips: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 plan, got %d: %+v", len(got), got)
	}
	plan := got[0]
	if plan.Title != "Keeper" || plan.StartIndex != 1 || plan.EndIndex != 2 {
		t.Fatalf("unexpected plan %+v", plan)
	}
	if plan.ViralScore != 100 {
		t.Fatalf("expected score clamped to 100, got %d", plan.ViralScore)
	}
}

func TestPlanClipsEmptyTranscriptShortCircuits(t *testing.T) {
	ai := &stubAIClient{}
	svc := NewAnalyzerService(testLogger(t), ai)

	got, err := svc.PlanClips(context.Background(), nil)
	if err != nil {
		t.Fatalf("PlanClips: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no plans, got %v", got)
	}
	if len(ai.calls) != 0 {
		t.Fatalf("expected no model calls, got %v", ai.calls)
	}
}
