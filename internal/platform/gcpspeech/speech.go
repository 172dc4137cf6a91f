package gcpspeech

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
)

// Segment is one time-aligned span of the recognized transcript.
type Segment struct {
	Start      float64
	End        float64
	Text       string
	SpeakerTag int
	Confidence float64
}

type Result struct {
	Text     string
	Duration float64
	Segments []Segment
}

type Provider interface {
	// TranscribeGCS runs LongRunningRecognize against a gs:// URI.
	TranscribeGCS(ctx context.Context, gcsURI string, languageCode string) (*Result, error)
	Close() error
}

type provider struct {
	log    *logger.Logger
	client *speech.Client

	maxRetries int
}

func NewProvider(log *logger.Logger) (Provider, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "SpeechProvider")

	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))

	ctx := context.Background()

	var c *speech.Client
	var err error
	if creds != "" {
		c, err = speech.NewClient(ctx, option.WithCredentialsFile(creds))
	} else {
		c, err = speech.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}

	return &provider{
		log:        slog,
		client:     c,
		maxRetries: 4,
	}, nil
}

func (p *provider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *provider) TranscribeGCS(ctx context.Context, gcsURI string, languageCode string) (*Result, error) {
	// GCS long audio can take a while
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	if !strings.HasPrefix(gcsURI, "gs://") {
		return nil, fmt.Errorf("gcsURI must be gs://... got %q", gcsURI)
	}
	if languageCode == "" {
		languageCode = "en-US"
	}

	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			LanguageCode:               languageCode,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
			Encoding:                   inferEncoding(gcsURI),
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: gcsURI},
		},
	}

	resp, err := p.retryLR(ctx, func() (*speechpb.LongRunningRecognizeResponse, error) {
		op, err := p.client.LongRunningRecognize(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("speech longrunningrecognize: %w", err)
	}

	return parseResponse(resp), nil
}

func inferEncoding(gcsURI string) speechpb.RecognitionConfig_AudioEncoding {
	switch strings.ToLower(filepath.Ext(gcsURI)) {
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case ".flac":
		return speechpb.RecognitionConfig_FLAC
	case ".mp3":
		return speechpb.RecognitionConfig_MP3
	case ".ogg", ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		// the API can usually auto-detect
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

type word struct {
	w   string
	s   float64
	e   float64
	spk int
	c   float64
}

func parseResponse(resp *speechpb.LongRunningRecognizeResponse) *Result {
	out := &Result{}
	if resp == nil || len(resp.Results) == 0 {
		return out
	}

	var full strings.Builder
	words := []word{}

	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		alt := r.Alternatives[0]
		if strings.TrimSpace(alt.Transcript) == "" {
			continue
		}
		if full.Len() > 0 {
			full.WriteString(" ")
		}
		full.WriteString(strings.TrimSpace(alt.Transcript))

		for _, ww := range alt.Words {
			if ww == nil {
				continue
			}
			words = append(words, word{
				w:   ww.Word,
				s:   durToSec(ww.StartTime),
				e:   durToSec(ww.EndTime),
				spk: int(ww.SpeakerTag),
				c:   float64(ww.Confidence),
			})
		}
	}

	out.Text = strings.TrimSpace(full.String())

	if len(words) > 0 {
		out.Segments = groupByTime(words, 10.0)
		out.Duration = words[len(words)-1].e
	} else if out.Text != "" {
		out.Segments = []Segment{{Text: out.Text}}
	}
	return out
}

// groupByTime windows the word stream into ~windowSec segments.
func groupByTime(words []word, windowSec float64) []Segment {
	if len(words) == 0 {
		return nil
	}
	if windowSec <= 0 {
		windowSec = 10
	}

	segs := []Segment{}
	curStart := words[0].s
	curEnd := words[0].e
	curSpk := words[0].spk
	var buf strings.Builder
	var confSum float64
	var confN int

	flush := func() {
		txt := strings.TrimSpace(buf.String())
		if txt == "" {
			return
		}
		var conf float64
		if confN > 0 {
			conf = confSum / float64(confN)
		}
		segs = append(segs, Segment{
			Start:      curStart,
			End:        curEnd,
			Text:       txt,
			SpeakerTag: curSpk,
			Confidence: conf,
		})
		buf.Reset()
		confSum = 0
		confN = 0
	}

	for _, w := range words {
		if (w.s-curStart) >= windowSec && buf.Len() > 0 {
			flush()
			curStart = w.s
			curEnd = w.e
			curSpk = w.spk
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(w.w)
		if w.e > curEnd {
			curEnd = w.e
		}
		if w.c > 0 {
			confSum += w.c
			confN++
		}
	}
	flush()
	return segs
}

func durToSec(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return float64(d.Seconds) + float64(d.Nanos)/1e9
}

func (p *provider) retryLR(ctx context.Context, fn func() (*speechpb.LongRunningRecognizeResponse, error)) (*speechpb.LongRunningRecognizeResponse, error) {
	backoff := 750 * time.Millisecond
	var last error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err

		code := status.Code(err)
		if code != codes.Unavailable && code != codes.ResourceExhausted && code != codes.DeadlineExceeded {
			return nil, err
		}
		if attempt == p.maxRetries {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return nil, last
}
