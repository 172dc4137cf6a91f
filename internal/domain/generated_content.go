package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Platform string

const (
	PlatformTwitter    Platform = "twitter"
	PlatformLinkedIn   Platform = "linkedin"
	PlatformInstagram  Platform = "instagram"
	PlatformTikTok     Platform = "tiktok"
	PlatformYouTube    Platform = "youtube"
	PlatformBlog       Platform = "blog"
	PlatformNewsletter Platform = "newsletter"
)

func ValidPlatform(p Platform) bool {
	switch p {
	case PlatformTwitter, PlatformLinkedIn, PlatformInstagram, PlatformTikTok,
		PlatformYouTube, PlatformBlog, PlatformNewsletter:
		return true
	default:
		return false
	}
}

// GeneratedContent is a drafted or published piece of derived content.
// ContentID is nil for manually-authored scheduled posts; Platform is nil
// for platform-agnostic types such as quote graphics.
type GeneratedContent struct {
	ID           uuid.UUID              `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ContentID    *uuid.UUID             `gorm:"type:uuid;index" json:"content_id,omitempty"`
	Content      *Content               `gorm:"constraint:OnDelete:CASCADE;foreignKey:ContentID;references:ID" json:"content,omitempty"`
	ClipID       *uuid.UUID             `gorm:"type:uuid;index" json:"clip_id,omitempty"`
	UserID       uuid.UUID              `gorm:"type:uuid;not null;index" json:"user_id"`
	Type         string                 `gorm:"column:type;not null" json:"type"`
	Platform     *Platform              `gorm:"column:platform;index" json:"platform,omitempty"`
	Body         string                 `gorm:"column:content;not null" json:"content"`
	Metadata     datatypes.JSON         `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	Status       GeneratedContentStatus `gorm:"column:status;not null;index" json:"status"`
	ScheduledAt  *time.Time             `gorm:"column:scheduled_at" json:"scheduled_at,omitempty"`
	PublishedAt  *time.Time             `gorm:"column:published_at" json:"published_at,omitempty"`
	PublishedURL string                 `gorm:"column:published_url" json:"published_url,omitempty"`
	CreatedAt    time.Time              `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt    time.Time              `gorm:"not null;default:now()" json:"updated_at"`
}

func (GeneratedContent) TableName() string { return "generated_contents" }
