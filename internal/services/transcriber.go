package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"

	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/envutil"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
	"github.com/clipforge/clipforge-backend/internal/platform/gcpspeech"
	"github.com/clipforge/clipforge-backend/internal/platform/openai"
)

// TranscriptResult is a provider-neutral transcript: full text plus ordered,
// non-overlapping segments.
type TranscriptResult struct {
	Text     string
	Duration float64
	Segments []types.Segment
}

type Transcriber interface {
	Transcribe(ctx context.Context, fileURL string) (*TranscriptResult, error)
}

// NewTranscriber picks the speech backend from TRANSCRIBE_PROVIDER
// (whisper | gcp_speech). Whisper is the default; the GCP provider is only
// usable for media that already lives in our buckets.
func NewTranscriber(baseLog *logger.Logger, ai openai.Client, speech gcpspeech.Provider) (Transcriber, error) {
	provider := strings.ToLower(envutil.Str("TRANSCRIBE_PROVIDER", "whisper"))
	switch provider {
	case "whisper":
		if ai == nil {
			return nil, fmt.Errorf("whisper transcriber requires an OpenAI client")
		}
		return &whisperTranscriber{log: baseLog.With("service", "Transcriber", "provider", "whisper"), ai: ai}, nil
	case "gcp_speech":
		if speech == nil {
			return nil, fmt.Errorf("gcp_speech transcriber requires a speech provider")
		}
		return &gcpTranscriber{log: baseLog.With("service", "Transcriber", "provider", "gcp_speech"), speech: speech}, nil
	default:
		return nil, fmt.Errorf("unknown TRANSCRIBE_PROVIDER %q", provider)
	}
}

type whisperTranscriber struct {
	log *logger.Logger
	ai  openai.Client
}

func (t *whisperTranscriber) Transcribe(ctx context.Context, fileURL string) (*TranscriptResult, error) {
	if strings.TrimSpace(fileURL) == "" {
		return nil, fmt.Errorf("missing file url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build media request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch media: unexpected status %d", resp.StatusCode)
	}

	tr, err := t.ai.TranscribeAudio(ctx, resp.Body, filenameFromURL(fileURL))
	if err != nil {
		return nil, fmt.Errorf("whisper transcription: %w", err)
	}

	segs := make([]types.Segment, 0, len(tr.Segments))
	for _, s := range tr.Segments {
		segs = append(segs, types.Segment{
			Start:      s.Start,
			End:        s.End,
			Text:       strings.TrimSpace(s.Text),
			Confidence: 1,
		})
	}
	out := &TranscriptResult{
		Text:     strings.TrimSpace(tr.Text),
		Duration: tr.Duration,
		Segments: NormalizeSegments(segs),
	}
	t.log.Info("Transcription complete", "segments", len(out.Segments), "duration", out.Duration)
	return out, nil
}

type gcpTranscriber struct {
	log    *logger.Logger
	speech gcpspeech.Provider
}

func (t *gcpTranscriber) Transcribe(ctx context.Context, fileURL string) (*TranscriptResult, error) {
	gcsURI, err := toGCSURI(fileURL)
	if err != nil {
		return nil, err
	}
	res, err := t.speech.TranscribeGCS(ctx, gcsURI, envutil.Str("TRANSCRIBE_LANGUAGE", "en-US"))
	if err != nil {
		return nil, fmt.Errorf("gcp transcription: %w", err)
	}

	segs := make([]types.Segment, 0, len(res.Segments))
	for _, s := range res.Segments {
		var speaker *string
		if s.SpeakerTag > 0 {
			sp := fmt.Sprintf("speaker_%d", s.SpeakerTag)
			speaker = &sp
		}
		segs = append(segs, types.Segment{
			Start:      s.Start,
			End:        s.End,
			Text:       strings.TrimSpace(s.Text),
			Speaker:    speaker,
			Confidence: s.Confidence,
		})
	}
	out := &TranscriptResult{
		Text:     strings.TrimSpace(res.Text),
		Duration: res.Duration,
		Segments: NormalizeSegments(segs),
	}
	t.log.Info("Transcription complete", "segments", len(out.Segments), "duration", out.Duration)
	return out, nil
}

// NormalizeSegments sorts by start time, drops empty or inverted spans, and
// truncates each segment at the next one's start so the result is strictly
// ordered and non-overlapping. IDs are reassigned positionally.
func NormalizeSegments(segs []types.Segment) []types.Segment {
	if len(segs) == 0 {
		return []types.Segment{}
	}

	kept := make([]types.Segment, 0, len(segs))
	for _, s := range segs {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		if s.Start < 0 || s.End <= s.Start {
			continue
		}
		kept = append(kept, s)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Start == kept[j].Start {
			return kept[i].End < kept[j].End
		}
		return kept[i].Start < kept[j].Start
	})

	out := make([]types.Segment, 0, len(kept))
	for _, s := range kept {
		if n := len(out); n > 0 {
			prev := &out[n-1]
			if s.Start < prev.End {
				prev.End = s.Start
				if prev.End <= prev.Start {
					out = out[:n-1]
				}
			}
		}
		out = append(out, s)
	}
	for i := range out {
		out[i].ID = fmt.Sprintf("seg_%d", i)
	}
	return out
}

// toGCSURI rewrites a public storage URL into the gs:// form the speech API
// accepts. gs:// URIs pass through unchanged.
func toGCSURI(fileURL string) (string, error) {
	fileURL = strings.TrimSpace(fileURL)
	if strings.HasPrefix(fileURL, "gs://") {
		return fileURL, nil
	}
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("parse file url: %w", err)
	}
	if u.Host != "storage.googleapis.com" {
		return "", fmt.Errorf("file url %q is not a storage url", fileURL)
	}
	trimmed := strings.TrimPrefix(u.Path, "/")
	bucket, key, ok := strings.Cut(trimmed, "/")
	if !ok || bucket == "" || key == "" {
		return "", fmt.Errorf("file url %q has no bucket/key", fileURL)
	}
	return fmt.Sprintf("gs://%s/%s", bucket, key), nil
}

func filenameFromURL(fileURL string) string {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "audio.mp4"
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "audio.mp4"
	}
	return name
}
