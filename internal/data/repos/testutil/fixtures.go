package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/clipforge/clipforge-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string, plan types.Plan, usageLimit int) *types.User {
	tb.Helper()
	u := &types.User{
		ID:         uuid.New(),
		Email:      email,
		Plan:       plan,
		UsageLimit: usageLimit,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedContent(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, status types.ContentStatus) *types.Content {
	tb.Helper()
	c := &types.Content{
		ID:                    uuid.New(),
		UserID:                userID,
		Title:                 "episode",
		SourceType:            types.SourceUpload,
		Status:                status,
		TranscriptionSegments: datatypes.JSON([]byte("[]")),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed content: %v", err)
	}
	return c
}

func SeedClip(tb testing.TB, ctx context.Context, tx *gorm.DB, contentID, userID uuid.UUID, status types.ClipStatus) *types.Clip {
	tb.Helper()
	c := &types.Clip{
		ID:          uuid.New(),
		ContentID:   contentID,
		UserID:      userID,
		Title:       "clip",
		StartTime:   0,
		EndTime:     30,
		Duration:    30,
		AspectRatio: types.AspectPortrait,
		Status:      status,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed clip: %v", err)
	}
	return c
}

func SeedGeneratedContent(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, contentID *uuid.UUID, platform types.Platform, status types.GeneratedContentStatus) *types.GeneratedContent {
	tb.Helper()
	gc := &types.GeneratedContent{
		ID:        uuid.New(),
		ContentID: contentID,
		UserID:    userID,
		Type:      "social_post",
		Platform:  &platform,
		Body:      "post body",
		Metadata:  datatypes.JSON([]byte("{}")),
		Status:    status,
	}
	if err := tx.WithContext(ctx).Create(gc).Error; err != nil {
		tb.Fatalf("seed generated content: %v", err)
	}
	return gc
}

func SeedScheduledPost(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, generatedContentID uuid.UUID, platform types.Platform, at time.Time, status types.ScheduledPostStatus) *types.ScheduledPost {
	tb.Helper()
	p := &types.ScheduledPost{
		ID:                 uuid.New(),
		UserID:             userID,
		GeneratedContentID: generatedContentID,
		Platform:           platform,
		ScheduledAt:        at,
		Status:             status,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed scheduled post: %v", err)
	}
	return p
}

func SeedJobRun(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, jobType string, status types.JobStatus) *types.JobRun {
	tb.Helper()
	j := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		JobType:     jobType,
		Status:      status,
		Stage:       "queued",
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
	}
	if err := tx.WithContext(ctx).Create(j).Error; err != nil {
		tb.Fatalf("seed job run: %v", err)
	}
	return j
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
