package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/clipforge/clipforge-backend/internal/data/repos"
	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
	"github.com/clipforge/clipforge-backend/internal/platform/social"
)

const publishBatchSize = 10

// tokenExpirySkew treats tokens expiring within this window as expired so a
// refresh lands before the publish call, not during it.
const tokenExpirySkew = 2 * time.Minute

// PublisherRegistry resolves the publisher for a platform. Satisfied by
// *social.Registry; stubbed in tests.
type PublisherRegistry interface {
	For(platform types.Platform) (social.Publisher, error)
}

type SweepReport struct {
	Claimed   int `json:"claimed"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

type PublishService interface {
	// RunPublishingSweep claims up to publishBatchSize due posts and
	// publishes them. Claiming happens before any network I/O; a crashed
	// sweep leaves rows in publishing, never double-published.
	RunPublishingSweep(ctx context.Context, now time.Time) (*SweepReport, error)
}

type publishService struct {
	db         *gorm.DB
	log        *logger.Logger
	postRepo   repos.ScheduledPostRepo
	genRepo    repos.GeneratedContentRepo
	socialRepo repos.SocialAccountRepo
	registry   PublisherRegistry

	// Injectable for tests.
	refreshToken func(ctx context.Context, platform types.Platform, refreshToken string) (*social.RefreshedToken, error)
}

func NewPublishService(
	db *gorm.DB,
	baseLog *logger.Logger,
	postRepo repos.ScheduledPostRepo,
	genRepo repos.GeneratedContentRepo,
	socialRepo repos.SocialAccountRepo,
	registry PublisherRegistry,
) PublishService {
	return &publishService{
		db:           db,
		log:          baseLog.With("service", "PublishService"),
		postRepo:     postRepo,
		genRepo:      genRepo,
		socialRepo:   socialRepo,
		registry:     registry,
		refreshToken: social.RefreshToken,
	}
}

func (s *publishService) RunPublishingSweep(ctx context.Context, now time.Time) (*SweepReport, error) {
	dbc := dbctx.Context{Ctx: ctx}

	batch, err := s.postRepo.ClaimDue(dbc, now, publishBatchSize)
	if err != nil {
		return nil, fmt.Errorf("claim due posts: %w", err)
	}

	report := &SweepReport{Claimed: len(batch)}
	for _, post := range batch {
		if err := s.publishOne(ctx, post, now); err != nil {
			report.Failed++
			s.log.Warn("Publish failed", "post_id", post.ID, "platform", post.Platform, "error", err)
			// Only the post goes to failed; the generated content stays
			// scheduled so the user can reschedule it.
			if _, merr := s.postRepo.MarkFailed(dbc, post.ID, err.Error()); merr != nil {
				s.log.Error("Mark failed failed", "post_id", post.ID, "error", merr)
			}
			continue
		}
		report.Published++
	}
	if report.Claimed > 0 {
		s.log.Info("Publishing sweep complete", "claimed", report.Claimed, "published", report.Published, "failed", report.Failed)
	}
	return report, nil
}

func (s *publishService) publishOne(ctx context.Context, post *types.ScheduledPost, now time.Time) error {
	dbc := dbctx.Context{Ctx: ctx}

	gen, err := s.genRepo.GetByID(dbc, post.GeneratedContentID)
	if err != nil {
		return fmt.Errorf("load generated content: %w", err)
	}
	if gen == nil {
		return fmt.Errorf("generated content %s missing", post.GeneratedContentID)
	}

	account, err := s.socialRepo.GetActive(dbc, post.UserID, post.Platform)
	if err != nil {
		return fmt.Errorf("load social account: %w", err)
	}
	if account == nil {
		return fmt.Errorf("no active %s account", post.Platform)
	}

	accessToken := account.AccessToken
	if account.TokenExpired(now, tokenExpirySkew) {
		if strings.TrimSpace(account.RefreshToken) == "" {
			return fmt.Errorf("%s token expired and no refresh token on file", post.Platform)
		}
		refreshed, err := s.refreshToken(ctx, post.Platform, account.RefreshToken)
		if err != nil {
			return fmt.Errorf("refresh %s token: %w", post.Platform, err)
		}
		// Persist before publishing so a crash cannot lose the rotated
		// refresh token.
		if err := s.socialRepo.UpdateTokens(dbc, account.ID, refreshed.AccessToken, refreshed.RefreshToken, refreshed.ExpiresAt); err != nil {
			return fmt.Errorf("persist refreshed tokens: %w", err)
		}
		accessToken = refreshed.AccessToken
	}

	publisher, err := s.registry.For(post.Platform)
	if err != nil {
		return err
	}
	result, err := publisher.Publish(ctx, accessToken, social.PublishRequest{
		Body:     gen.Body,
		MediaURL: mediaURLFromMetadata(gen.Metadata),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", post.Platform, err)
	}

	if _, err := s.postRepo.MarkPublished(dbc, post.ID); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	publishedAt := now.UTC()
	if _, err := s.genRepo.TransitionStatus(dbc, gen.ID,
		[]types.GeneratedContentStatus{types.GeneratedContentStatusScheduled},
		types.GeneratedContentStatusPublished,
		map[string]any{
			"published_at":  publishedAt,
			"published_url": result.URL,
		}); err != nil {
		s.log.Error("Mirror publish onto generated content failed", "post_id", post.ID, "error", err)
	}
	s.log.Info("Post published", "post_id", post.ID, "platform", post.Platform, "url", result.URL)
	return nil
}

func mediaURLFromMetadata(meta datatypes.JSON) string {
	if len(meta) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(meta, &m); err != nil {
		return ""
	}
	url, _ := m["image_url"].(string)
	return url
}
