package domain

import (
	"time"

	"github.com/google/uuid"
)

type AspectRatio string

const (
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
	AspectSquare    AspectRatio = "1:1"
	AspectFourFive  AspectRatio = "4:5"
)

func ValidAspectRatio(a AspectRatio) bool {
	switch a {
	case AspectLandscape, AspectPortrait, AspectSquare, AspectFourFive:
		return true
	default:
		return false
	}
}

type Clip struct {
	ID           uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ContentID    uuid.UUID   `gorm:"type:uuid;not null;index" json:"content_id"`
	Content      *Content    `gorm:"constraint:OnDelete:CASCADE;foreignKey:ContentID;references:ID" json:"content,omitempty"`
	UserID       uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	Title        string      `gorm:"column:title;not null" json:"title"`
	StartTime    float64     `gorm:"column:start_time;not null" json:"start_time"`
	EndTime      float64     `gorm:"column:end_time;not null" json:"end_time"`
	Duration     float64     `gorm:"column:duration;not null" json:"duration"`
	AspectRatio  AspectRatio `gorm:"column:aspect_ratio;not null;default:'9:16'" json:"aspect_ratio"`
	Status       ClipStatus  `gorm:"column:status;not null;index" json:"status"`
	FileURL      string      `gorm:"column:file_url" json:"file_url,omitempty"`
	ThumbnailURL string      `gorm:"column:thumbnail_url" json:"thumbnail_url,omitempty"`
	ViralScore   *int        `gorm:"column:viral_score" json:"viral_score,omitempty"`
	Error        string      `gorm:"column:error" json:"error,omitempty"`
	CreatedAt    time.Time   `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"not null;default:now()" json:"updated_at"`
}

func (Clip) TableName() string { return "clips" }
