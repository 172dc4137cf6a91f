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

type linkedinPublisher struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

func NewLinkedInPublisher(log *logger.Logger) Publisher {
	baseURL := os.Getenv("LINKEDIN_API_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.linkedin.com"
	}
	return &linkedinPublisher{
		log:        log.With("service", "LinkedInPublisher"),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *linkedinPublisher) Platform() types.Platform { return types.PlatformLinkedIn }

type linkedinProfile struct {
	Sub string `json:"sub"`
}

// author URN comes from the userinfo endpoint; LinkedIn posts need an
// explicit author.
func (p *linkedinPublisher) fetchAuthorURN(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v2/userinfo", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("linkedin userinfo: %w", err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return "", readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("linkedin userinfo http %d: %s", resp.StatusCode, string(raw))
	}

	var profile linkedinProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return "", fmt.Errorf("linkedin userinfo decode: %w", err)
	}
	if profile.Sub == "" {
		return "", errors.New("linkedin userinfo returned no sub")
	}
	return "urn:li:person:" + profile.Sub, nil
}

type linkedinPost struct {
	Author         string `json:"author"`
	Commentary     string `json:"commentary"`
	Visibility     string `json:"visibility"`
	LifecycleState string `json:"lifecycleState"`
	Distribution   struct {
		FeedDistribution string `json:"feedDistribution"`
	} `json:"distribution"`
}

func (p *linkedinPublisher) Publish(ctx context.Context, accessToken string, req PublishRequest) (*PublishResult, error) {
	if accessToken == "" {
		return nil, errors.New("missing access token")
	}

	author, err := p.fetchAuthorURN(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	body := req.Body
	if req.MediaURL != "" {
		body = body + "\n" + req.MediaURL
	}

	post := linkedinPost{
		Author:         author,
		Commentary:     body,
		Visibility:     "PUBLIC",
		LifecycleState: "PUBLISHED",
	}
	post.Distribution.FeedDistribution = "MAIN_FEED"

	payload, err := json.Marshal(post)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/rest/posts", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("LinkedIn-Version", "202401")
	httpReq.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post to linkedin: %w", err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("linkedin http %d: %s", resp.StatusCode, string(raw))
	}

	postID := resp.Header.Get("x-restli-id")
	if postID == "" {
		return nil, errors.New("linkedin returned no post id")
	}
	return &PublishResult{
		PostID: postID,
		URL:    fmt.Sprintf("https://www.linkedin.com/feed/update/%s/", postID),
	}, nil
}
