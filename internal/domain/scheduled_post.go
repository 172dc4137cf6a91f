package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScheduledPost wraps a GeneratedContent with publish intent. At most one
// non-terminal row may exist per GeneratedContent; a failed publish is
// retried by scheduling a new post, never by reviving the old row.
type ScheduledPost struct {
	ID                 uuid.UUID           `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID             uuid.UUID           `gorm:"type:uuid;not null;index" json:"user_id"`
	GeneratedContentID uuid.UUID           `gorm:"type:uuid;not null;index" json:"generated_content_id"`
	GeneratedContent   *GeneratedContent   `gorm:"constraint:OnDelete:CASCADE;foreignKey:GeneratedContentID;references:ID" json:"generated_content,omitempty"`
	Platform           Platform            `gorm:"column:platform;not null;index" json:"platform"`
	ScheduledAt        time.Time           `gorm:"column:scheduled_at;not null;index" json:"scheduled_at"`
	Status             ScheduledPostStatus `gorm:"column:status;not null;index" json:"status"`
	Error              string              `gorm:"column:error" json:"error,omitempty"`
	CreatedAt          time.Time           `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time           `gorm:"not null;default:now()" json:"updated_at"`
}

func (ScheduledPost) TableName() string { return "scheduled_posts" }
