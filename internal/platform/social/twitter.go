package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
)

type twitterPublisher struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

func NewTwitterPublisher(log *logger.Logger) Publisher {
	baseURL := os.Getenv("TWITTER_API_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.twitter.com"
	}
	return &twitterPublisher{
		log:        log.With("service", "TwitterPublisher"),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *twitterPublisher) Platform() types.Platform { return types.PlatformTwitter }

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

func (p *twitterPublisher) Publish(ctx context.Context, accessToken string, req PublishRequest) (*PublishResult, error) {
	if accessToken == "" {
		return nil, errors.New("missing access token")
	}
	body := req.Body
	if req.MediaURL != "" {
		body = body + "\n" + req.MediaURL
	}
	// tweets hard-cap at 280 chars
	if len([]rune(body)) > 280 {
		runes := []rune(body)
		body = string(runes[:277]) + "..."
	}

	payload, err := json.Marshal(tweetRequest{Text: body})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/2/tweets", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post tweet: %w", err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("twitter http %d: %s", resp.StatusCode, string(raw))
	}

	var out tweetResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("twitter decode error: %w", err)
	}
	if out.Data.ID == "" {
		return nil, errors.New("twitter returned no tweet id")
	}
	return &PublishResult{
		PostID: out.Data.ID,
		URL:    fmt.Sprintf("https://twitter.com/i/web/status/%s", out.Data.ID),
	}, nil
}
