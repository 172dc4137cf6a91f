package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/clipforge/clipforge-backend/internal/data/repos"
	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/apierr"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
	"github.com/clipforge/clipforge-backend/internal/platform/gcs"
	"github.com/clipforge/clipforge-backend/internal/platform/openai"
)

const (
	GeneratedTypeSocialPost   = "social_post"
	GeneratedTypeQuoteGraphic = "quote_graphic"
)

// GenerateResult reports per-platform outcomes. A platform appears either in
// Items (as its draft) or in Failed, never both.
type GenerateResult struct {
	Items  []*types.GeneratedContent `json:"items"`
	Failed map[types.Platform]string `json:"failed,omitempty"`
	Quotes []*types.GeneratedContent `json:"quotes,omitempty"`
}

type GeneratorService interface {
	// GenerateForContent drafts one post per requested platform plus pull
	// quotes. Platform failures are isolated; the call only errors when
	// every platform fails or the content is not ready.
	GenerateForContent(dbc dbctx.Context, userID, contentID uuid.UUID, platforms []types.Platform, withQuotes bool) (*GenerateResult, error)
}

type generatorService struct {
	db          *gorm.DB
	log         *logger.Logger
	ai          openai.Client
	contentRepo repos.ContentRepo
	genRepo     repos.GeneratedContentRepo
	quoteCards  QuoteCardService
	buckets     gcs.BucketService
}

func NewGeneratorService(
	db *gorm.DB,
	baseLog *logger.Logger,
	ai openai.Client,
	contentRepo repos.ContentRepo,
	genRepo repos.GeneratedContentRepo,
	quoteCards QuoteCardService,
	buckets gcs.BucketService,
) GeneratorService {
	return &generatorService{
		db:          db,
		log:         baseLog.With("service", "GeneratorService"),
		ai:          ai,
		contentRepo: contentRepo,
		genRepo:     genRepo,
		quoteCards:  quoteCards,
		buckets:     buckets,
	}
}

var socialPostSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"post":     map[string]any{"type": "string"},
		"hashtags": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required":             []string{"post", "hashtags"},
	"additionalProperties": false,
}

var pullQuoteSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"quotes": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text":    map[string]any{"type": "string"},
					"context": map[string]any{"type": "string"},
				},
				"required":             []string{"text", "context"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"quotes"},
	"additionalProperties": false,
}

// platformCharLimit returns the hard character budget passed to the model.
// Zero means unconstrained long form.
func platformCharLimit(p types.Platform) int {
	switch p {
	case types.PlatformTwitter:
		return 280
	case types.PlatformLinkedIn:
		return 3000
	case types.PlatformInstagram, types.PlatformTikTok:
		return 2200
	case types.PlatformYouTube:
		return 5000
	default:
		return 0
	}
}

func (s *generatorService) GenerateForContent(dbc dbctx.Context, userID, contentID uuid.UUID, platforms []types.Platform, withQuotes bool) (*GenerateResult, error) {
	if len(platforms) == 0 && !withQuotes {
		return nil, apierr.BadRequest("no_targets", fmt.Errorf("no platforms requested"))
	}
	for _, p := range platforms {
		if !types.ValidPlatform(p) {
			return nil, apierr.BadRequest("invalid_platform", fmt.Errorf("unknown platform %q", p))
		}
	}

	content, err := s.contentRepo.GetForUser(dbc, userID, contentID)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, apierr.NotFound("content_not_found", fmt.Errorf("content %s not found", contentID))
	}
	if content.Status != types.ContentStatusReady {
		return nil, apierr.BadRequest("content_not_ready", fmt.Errorf("content %s is %s, not ready", contentID, content.Status))
	}
	transcript := strings.TrimSpace(content.Transcription)
	if transcript == "" {
		return nil, apierr.BadRequest("no_transcript", fmt.Errorf("content %s has no transcript", contentID))
	}

	result := &GenerateResult{
		Items:  []*types.GeneratedContent{},
		Failed: map[types.Platform]string{},
	}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(contextOrBackground(dbc))
	for _, platform := range platforms {
		platform := platform
		g.Go(func() error {
			item, err := s.generateForPlatform(dbctx.Context{Ctx: ctx, Tx: dbc.Tx}, content, platform)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warn("Platform generation failed", "platform", platform, "content_id", contentID, "error", err)
				result.Failed[platform] = err.Error()
				return nil
			}
			result.Items = append(result.Items, item)
			return nil
		})
	}
	if withQuotes {
		g.Go(func() error {
			quotes, err := s.generateQuoteGraphics(dbctx.Context{Ctx: ctx, Tx: dbc.Tx}, content)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warn("Quote extraction failed", "content_id", contentID, "error", err)
				return nil
			}
			result.Quotes = quotes
			return nil
		})
	}
	_ = g.Wait()

	if len(platforms) > 0 && len(result.Items) == 0 && len(result.Quotes) == 0 {
		return nil, fmt.Errorf("generation failed for all %d platforms", len(platforms))
	}
	return result, nil
}

func (s *generatorService) generateForPlatform(dbc dbctx.Context, content *types.Content, platform types.Platform) (*types.GeneratedContent, error) {
	system := fmt.Sprintf("You repurpose long-form video transcripts into native %s posts. Write in the creator's voice, no preamble.", platform)
	user := fmt.Sprintf("Write one %s post from this transcript", platform)
	if limit := platformCharLimit(platform); limit > 0 {
		user += fmt.Sprintf(" (hard limit %d characters)", limit)
	}
	user += ".\n\nTranscript:\n" + truncateForPrompt(content.Transcription, 12000)

	out, err := s.ai.GenerateJSON(dbc.Ctx, system, user, "social_post", socialPostSchema)
	if err != nil {
		return nil, fmt.Errorf("generate %s post: %w", platform, err)
	}
	body := strings.TrimSpace(fmt.Sprint(out["post"]))
	if body == "" || body == "<nil>" {
		return nil, fmt.Errorf("generate %s post: empty body", platform)
	}
	if limit := platformCharLimit(platform); limit > 0 {
		body = truncateRunes(body, limit)
	}

	meta := map[string]any{}
	if tags, ok := out["hashtags"].([]any); ok && len(tags) > 0 {
		meta["hashtags"] = tags
	}
	metaJSON := mustJSON(meta)

	p := platform
	item := &types.GeneratedContent{
		ID:        uuid.New(),
		ContentID: &content.ID,
		UserID:    content.UserID,
		Type:      GeneratedTypeSocialPost,
		Platform:  &p,
		Body:      body,
		Metadata:  metaJSON,
		Status:    types.GeneratedContentStatusDraft,
	}
	if _, err := s.genRepo.Create(dbc, []*types.GeneratedContent{item}); err != nil {
		return nil, fmt.Errorf("persist %s draft: %w", platform, err)
	}
	return item, nil
}

func (s *generatorService) generateQuoteGraphics(dbc dbctx.Context, content *types.Content) ([]*types.GeneratedContent, error) {
	system := "You extract short, punchy pull quotes (max 140 characters) from transcripts. Only verbatim or lightly cleaned-up speech."
	user := "Extract up to 3 pull quotes.\n\nTranscript:\n" + truncateForPrompt(content.Transcription, 12000)

	out, err := s.ai.GenerateJSON(dbc.Ctx, system, user, "pull_quotes", pullQuoteSchema)
	if err != nil {
		return nil, fmt.Errorf("extract quotes: %w", err)
	}
	raw, ok := out["quotes"].([]any)
	if !ok {
		return []*types.GeneratedContent{}, nil
	}

	items := make([]*types.GeneratedContent, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		text := strings.TrimSpace(fmt.Sprint(m["text"]))
		if text == "" || text == "<nil>" {
			continue
		}

		meta := map[string]any{}
		if ctxStr := strings.TrimSpace(fmt.Sprint(m["context"])); ctxStr != "" && ctxStr != "<nil>" {
			meta["context"] = ctxStr
		}

		// The card image is best-effort: a render or upload failure still
		// keeps the text quote.
		if imageURL := s.renderQuoteCard(dbc, content, text); imageURL != "" {
			meta["image_url"] = imageURL
		}
		metaJSON := mustJSON(meta)

		item := &types.GeneratedContent{
			ID:        uuid.New(),
			ContentID: &content.ID,
			UserID:    content.UserID,
			Type:      GeneratedTypeQuoteGraphic,
			Body:      text,
			Metadata:  metaJSON,
			Status:    types.GeneratedContentStatusDraft,
		}
		if _, err := s.genRepo.Create(dbc, []*types.GeneratedContent{item}); err != nil {
			s.log.Warn("Persist quote failed (skipped)", "content_id", content.ID, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *generatorService) renderQuoteCard(dbc dbctx.Context, content *types.Content, quote string) string {
	if s.quoteCards == nil || s.buckets == nil {
		return ""
	}
	buf, err := s.quoteCards.Render(quote, content.Title)
	if err != nil {
		s.log.Warn("Quote card render failed (ignored)", "content_id", content.ID, "error", err)
		return ""
	}
	key := fmt.Sprintf("quote_cards/%s/%d.png", content.ID.String(), time.Now().UnixNano())
	if err := s.buckets.UploadFile(contextOrBackground(dbc), gcs.BucketCategoryCards, key, bytes.NewReader(buf.Bytes())); err != nil {
		s.log.Warn("Quote card upload failed (ignored)", "content_id", content.ID, "key", key, "error", err)
		return ""
	}
	return s.buckets.GetPublicURL(gcs.BucketCategoryCards, key)
}

// truncateForPrompt cuts on rune boundaries so a multibyte character is
// never split mid-sequence.
func truncateForPrompt(text string, max int) string {
	if len(text) <= max {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

func mustJSON(m map[string]any) datatypes.JSON {
	b, err := json.Marshal(m)
	if err != nil {
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(b)
}

func contextOrBackground(dbc dbctx.Context) context.Context {
	if dbc.Ctx != nil {
		return dbc.Ctx
	}
	return context.Background()
}
