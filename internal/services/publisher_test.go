package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clipforge/clipforge-backend/internal/data/repos"
	"github.com/clipforge/clipforge-backend/internal/data/repos/testutil"
	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/platform/social"
)

type stubPublisher struct {
	platform   types.Platform
	err        error
	lastToken  string
	lastBody   string
	publishedN int
}

func (p *stubPublisher) Platform() types.Platform { return p.platform }

func (p *stubPublisher) Publish(ctx context.Context, accessToken string, req social.PublishRequest) (*social.PublishResult, error) {
	p.lastToken = accessToken
	p.lastBody = req.Body
	if p.err != nil {
		return nil, p.err
	}
	p.publishedN++
	return &social.PublishResult{PostID: "123", URL: "https://example.com/posts/123"}, nil
}

type stubRegistry struct {
	pub *stubPublisher
}

func (r *stubRegistry) For(platform types.Platform) (social.Publisher, error) {
	if r.pub == nil || r.pub.platform != platform {
		return nil, fmt.Errorf("unsupported platform %q", platform)
	}
	return r.pub, nil
}

func seedSocialAccount(t *testing.T, ctx context.Context, tx *gorm.DB, userID uuid.UUID, platform types.Platform, expiresAt *time.Time) *types.SocialAccount {
	t.Helper()
	account := &types.SocialAccount{
		ID:             uuid.New(),
		UserID:         userID,
		Platform:       platform,
		Handle:         "creator",
		AccessToken:    "access-original",
		RefreshToken:   "refresh-original",
		TokenExpiresAt: expiresAt,
		IsActive:       true,
	}
	if err := tx.WithContext(ctx).Create(account).Error; err != nil {
		t.Fatalf("seed social account: %v", err)
	}
	return account
}

func newSweepService(t *testing.T, tx *gorm.DB, registry PublisherRegistry) *publishService {
	t.Helper()
	log := testutil.Logger(t)
	svc := NewPublishService(
		tx,
		log,
		repos.NewScheduledPostRepo(tx, log),
		repos.NewGeneratedContentRepo(tx, log),
		repos.NewSocialAccountRepo(tx, log),
		registry,
	).(*publishService)
	return svc
}

func TestRunPublishingSweepPublishesDuePost(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "sweep-ok@example.com", types.PlanPro, 30)
	gen := testutil.SeedGeneratedContent(t, ctx, tx, user.ID, nil, types.PlatformTwitter, types.GeneratedContentStatusScheduled)
	seedSocialAccount(t, ctx, tx, user.ID, types.PlatformTwitter, nil)
	now := time.Now().UTC()
	post := testutil.SeedScheduledPost(t, ctx, tx, user.ID, gen.ID, types.PlatformTwitter, now.Add(-time.Minute), types.ScheduledPostStatusScheduled)

	pub := &stubPublisher{platform: types.PlatformTwitter}
	svc := newSweepService(t, tx, &stubRegistry{pub: pub})

	report, err := svc.RunPublishingSweep(ctx, now)
	if err != nil {
		t.Fatalf("RunPublishingSweep: %v", err)
	}
	if report.Claimed != 1 || report.Published != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if pub.lastToken != "access-original" {
		t.Fatalf("published with token %q", pub.lastToken)
	}

	var got types.ScheduledPost
	if err := tx.WithContext(ctx).First(&got, "id = ?", post.ID).Error; err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if got.Status != types.ScheduledPostStatusPublished {
		t.Fatalf("post status = %s", got.Status)
	}

	var gotGen types.GeneratedContent
	if err := tx.WithContext(ctx).First(&gotGen, "id = ?", gen.ID).Error; err != nil {
		t.Fatalf("reload generated content: %v", err)
	}
	if gotGen.Status != types.GeneratedContentStatusPublished {
		t.Fatalf("generated content status = %s", gotGen.Status)
	}
	if gotGen.PublishedURL != "https://example.com/posts/123" {
		t.Fatalf("published url = %q", gotGen.PublishedURL)
	}
	if gotGen.PublishedAt == nil {
		t.Fatal("published_at not set")
	}
}

func TestRunPublishingSweepLeavesFuturePosts(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "sweep-future@example.com", types.PlanPro, 30)
	gen := testutil.SeedGeneratedContent(t, ctx, tx, user.ID, nil, types.PlatformTwitter, types.GeneratedContentStatusScheduled)
	now := time.Now().UTC()
	post := testutil.SeedScheduledPost(t, ctx, tx, user.ID, gen.ID, types.PlatformTwitter, now.Add(time.Hour), types.ScheduledPostStatusScheduled)

	pub := &stubPublisher{platform: types.PlatformTwitter}
	svc := newSweepService(t, tx, &stubRegistry{pub: pub})

	report, err := svc.RunPublishingSweep(ctx, now)
	if err != nil {
		t.Fatalf("RunPublishingSweep: %v", err)
	}
	if report.Claimed != 0 {
		t.Fatalf("claimed %d future posts", report.Claimed)
	}

	var got types.ScheduledPost
	if err := tx.WithContext(ctx).First(&got, "id = ?", post.ID).Error; err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if got.Status != types.ScheduledPostStatusScheduled {
		t.Fatalf("future post status = %s", got.Status)
	}
}

func TestRunPublishingSweepMarksFailureOnPublishError(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "sweep-fail@example.com", types.PlanPro, 30)
	gen := testutil.SeedGeneratedContent(t, ctx, tx, user.ID, nil, types.PlatformTwitter, types.GeneratedContentStatusScheduled)
	seedSocialAccount(t, ctx, tx, user.ID, types.PlatformTwitter, nil)
	now := time.Now().UTC()
	post := testutil.SeedScheduledPost(t, ctx, tx, user.ID, gen.ID, types.PlatformTwitter, now.Add(-time.Minute), types.ScheduledPostStatusScheduled)

	pub := &stubPublisher{platform: types.PlatformTwitter, err: fmt.Errorf("rate limited")}
	svc := newSweepService(t, tx, &stubRegistry{pub: pub})

	report, err := svc.RunPublishingSweep(ctx, now)
	if err != nil {
		t.Fatalf("RunPublishingSweep: %v", err)
	}
	if report.Claimed != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	var got types.ScheduledPost
	if err := tx.WithContext(ctx).First(&got, "id = ?", post.ID).Error; err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if got.Status != types.ScheduledPostStatusFailed {
		t.Fatalf("post status = %s", got.Status)
	}
	if got.Error == "" {
		t.Fatal("expected error message on post")
	}

	var gotGen types.GeneratedContent
	if err := tx.WithContext(ctx).First(&gotGen, "id = ?", gen.ID).Error; err != nil {
		t.Fatalf("reload generated content: %v", err)
	}
	if gotGen.Status != types.GeneratedContentStatusScheduled {
		t.Fatalf("generated content should stay schedulable, got %s", gotGen.Status)
	}
}

func TestRunPublishingSweepFailsWithoutActiveAccount(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "sweep-noacct@example.com", types.PlanPro, 30)
	gen := testutil.SeedGeneratedContent(t, ctx, tx, user.ID, nil, types.PlatformTwitter, types.GeneratedContentStatusScheduled)
	now := time.Now().UTC()
	post := testutil.SeedScheduledPost(t, ctx, tx, user.ID, gen.ID, types.PlatformTwitter, now.Add(-time.Minute), types.ScheduledPostStatusScheduled)

	pub := &stubPublisher{platform: types.PlatformTwitter}
	svc := newSweepService(t, tx, &stubRegistry{pub: pub})

	report, err := svc.RunPublishingSweep(ctx, now)
	if err != nil {
		t.Fatalf("RunPublishingSweep: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if pub.publishedN != 0 {
		t.Fatal("publisher should not have been called")
	}

	var got types.ScheduledPost
	if err := tx.WithContext(ctx).First(&got, "id = ?", post.ID).Error; err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if got.Status != types.ScheduledPostStatusFailed {
		t.Fatalf("post status = %s", got.Status)
	}
}

func TestRunPublishingSweepRefreshesExpiredTokenBeforePublish(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "sweep-refresh@example.com", types.PlanPro, 30)
	gen := testutil.SeedGeneratedContent(t, ctx, tx, user.ID, nil, types.PlatformTwitter, types.GeneratedContentStatusScheduled)
	now := time.Now().UTC()
	expired := now.Add(-time.Hour)
	account := seedSocialAccount(t, ctx, tx, user.ID, types.PlatformTwitter, &expired)
	testutil.SeedScheduledPost(t, ctx, tx, user.ID, gen.ID, types.PlatformTwitter, now.Add(-time.Minute), types.ScheduledPostStatusScheduled)

	pub := &stubPublisher{platform: types.PlatformTwitter}
	svc := newSweepService(t, tx, &stubRegistry{pub: pub})

	newExpiry := now.Add(2 * time.Hour)
	svc.refreshToken = func(ctx context.Context, platform types.Platform, refreshToken string) (*social.RefreshedToken, error) {
		if refreshToken != "refresh-original" {
			t.Fatalf("refresh called with %q", refreshToken)
		}
		return &social.RefreshedToken{
			AccessToken:  "access-rotated",
			RefreshToken: "refresh-rotated",
			ExpiresAt:    &newExpiry,
		}, nil
	}

	report, err := svc.RunPublishingSweep(ctx, now)
	if err != nil {
		t.Fatalf("RunPublishingSweep: %v", err)
	}
	if report.Published != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if pub.lastToken != "access-rotated" {
		t.Fatalf("published with token %q, want rotated token", pub.lastToken)
	}

	var got types.SocialAccount
	if err := tx.WithContext(ctx).First(&got, "id = ?", account.ID).Error; err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if got.AccessToken != "access-rotated" || got.RefreshToken != "refresh-rotated" {
		t.Fatalf("tokens not persisted: access=%q refresh=%q", got.AccessToken, got.RefreshToken)
	}
}
