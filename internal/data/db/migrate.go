package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/clipforge/clipforge-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// Identity + quota
		&types.User{},
		&types.SocialAccount{},

		// Source media + derivatives
		&types.Content{},
		&types.Clip{},
		&types.GeneratedContent{},

		// Publishing
		&types.ScheduledPost{},

		// Jobs / worker
		&types.JobRun{},
	)
}

func EnsureIndexes(db *gorm.DB) error {
	// uuid-ossp is already enabled in NewPostgresService, but safe to re-run
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return fmt.Errorf("enable uuid-ossp: %w", err)
	}

	// The publishing sweep scans by due time and status.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_scheduled_posts_due
		ON scheduled_posts (status, scheduled_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_scheduled_posts_due: %w", err)
	}

	// One live schedule per generated content.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_scheduled_posts_live
		ON scheduled_posts (generated_content_id)
		WHERE status IN ('scheduled', 'publishing');
	`).Error; err != nil {
		return fmt.Errorf("create idx_scheduled_posts_live: %w", err)
	}

	// Worker claim loop ordering.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_job_run_claim
		ON job_run (status, created_at)
		WHERE deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_job_run_claim: %w", err)
	}

	// Library listing per user.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_contents_user_created
		ON contents (user_id, created_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_contents_user_created: %w", err)
	}

	return nil
}
