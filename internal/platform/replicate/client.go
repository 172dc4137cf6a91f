package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
)

// RenderRequest describes one clip extraction job.
type RenderRequest struct {
	SourceURL   string
	StartTime   float64
	EndTime     float64
	AspectRatio string
	Subtitles   bool
}

// RenderResult carries the rendered artifact URLs returned by the model.
type RenderResult struct {
	VideoURL     string
	ThumbnailURL string
}

type Client interface {
	// RenderClip creates a prediction and polls it to completion.
	RenderClip(ctx context.Context, req RenderRequest) (*RenderResult, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiToken   string
	version    string
	httpClient *http.Client

	pollInterval time.Duration
	maxWait      time.Duration
}

func NewClient(log *logger.Logger) (Client, error) {
	apiToken := os.Getenv("REPLICATE_API_TOKEN")
	if apiToken == "" {
		return nil, fmt.Errorf("missing REPLICATE_API_TOKEN")
	}

	baseURL := os.Getenv("REPLICATE_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.replicate.com"
	}

	version := os.Getenv("REPLICATE_CLIP_MODEL_VERSION")
	if version == "" {
		return nil, fmt.Errorf("missing REPLICATE_CLIP_MODEL_VERSION")
	}

	maxWaitSec := 900
	if v := os.Getenv("REPLICATE_MAX_WAIT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			maxWaitSec = parsed
		}
	}

	return &client{
		log:          log.With("service", "ReplicateClient"),
		baseURL:      baseURL,
		apiToken:     apiToken,
		version:      version,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		pollInterval: 3 * time.Second,
		maxWait:      time.Duration(maxWaitSec) * time.Second,
	}, nil
}

type prediction struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output any    `json:"output"`
	Error  any    `json:"error"`
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("replicate http %d: %s", resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("replicate decode error: %w; raw=%s", err, string(raw))
	}
	return nil
}

func (c *client) RenderClip(ctx context.Context, req RenderRequest) (*RenderResult, error) {
	if req.SourceURL == "" {
		return nil, errors.New("source url required")
	}
	if req.EndTime <= req.StartTime {
		return nil, fmt.Errorf("invalid clip range [%f, %f]", req.StartTime, req.EndTime)
	}

	create := map[string]any{
		"version": c.version,
		"input": map[string]any{
			"video_url":    req.SourceURL,
			"start_time":   req.StartTime,
			"end_time":     req.EndTime,
			"aspect_ratio": req.AspectRatio,
			"subtitles":    req.Subtitles,
		},
	}

	var p prediction
	if err := c.do(ctx, "POST", "/v1/predictions", create, &p); err != nil {
		return nil, fmt.Errorf("create prediction: %w", err)
	}
	if p.ID == "" {
		return nil, errors.New("replicate returned no prediction id")
	}

	deadline := time.Now().Add(c.maxWait)
	for {
		switch p.Status {
		case "succeeded":
			return parseOutput(p.Output)
		case "failed", "canceled":
			return nil, fmt.Errorf("prediction %s %s: %v", p.ID, p.Status, p.Error)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("prediction %s timed out after %s", p.ID, c.maxWait)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		if err := c.do(ctx, "GET", "/v1/predictions/"+p.ID, nil, &p); err != nil {
			return nil, fmt.Errorf("poll prediction %s: %w", p.ID, err)
		}
	}
}

// parseOutput tolerates both the single-URL and the {video, thumbnail}
// output shapes replicate models return.
func parseOutput(output any) (*RenderResult, error) {
	switch v := output.(type) {
	case string:
		return &RenderResult{VideoURL: v}, nil
	case []any:
		res := &RenderResult{}
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if i == 0 {
				res.VideoURL = s
			} else if res.ThumbnailURL == "" {
				res.ThumbnailURL = s
			}
		}
		if res.VideoURL == "" {
			return nil, errors.New("prediction output had no video url")
		}
		return res, nil
	case map[string]any:
		res := &RenderResult{}
		if s, ok := v["video"].(string); ok {
			res.VideoURL = s
		}
		if s, ok := v["thumbnail"].(string); ok {
			res.ThumbnailURL = s
		}
		if res.VideoURL == "" {
			return nil, errors.New("prediction output had no video url")
		}
		return res, nil
	default:
		return nil, fmt.Errorf("unexpected prediction output type %T", output)
	}
}
