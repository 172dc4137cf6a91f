package repos

import (
	"gorm.io/gorm"

	"github.com/clipforge/clipforge-backend/internal/data/repos/jobs"
	"github.com/clipforge/clipforge-backend/internal/data/repos/media"
	"github.com/clipforge/clipforge-backend/internal/data/repos/publishing"
	"github.com/clipforge/clipforge-backend/internal/data/repos/user"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
)

type UserRepo = user.UserRepo

type ContentRepo = media.ContentRepo
type ClipRepo = media.ClipRepo

type GeneratedContentRepo = publishing.GeneratedContentRepo
type ScheduledPostRepo = publishing.ScheduledPostRepo
type SocialAccountRepo = publishing.SocialAccountRepo

type JobRunRepo = jobs.JobRunRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }

func NewContentRepo(db *gorm.DB, baseLog *logger.Logger) ContentRepo {
	return media.NewContentRepo(db, baseLog)
}
func NewClipRepo(db *gorm.DB, baseLog *logger.Logger) ClipRepo {
	return media.NewClipRepo(db, baseLog)
}

func NewGeneratedContentRepo(db *gorm.DB, baseLog *logger.Logger) GeneratedContentRepo {
	return publishing.NewGeneratedContentRepo(db, baseLog)
}
func NewScheduledPostRepo(db *gorm.DB, baseLog *logger.Logger) ScheduledPostRepo {
	return publishing.NewScheduledPostRepo(db, baseLog)
}
func NewSocialAccountRepo(db *gorm.DB, baseLog *logger.Logger) SocialAccountRepo {
	return publishing.NewSocialAccountRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
