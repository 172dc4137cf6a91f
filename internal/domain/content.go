package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SourceType string

const (
	SourceUpload  SourceType = "upload"
	SourceYouTube SourceType = "youtube"
	SourceTikTok  SourceType = "tiktok"
	SourceURL     SourceType = "url"
)

func ValidSourceType(s SourceType) bool {
	switch s {
	case SourceUpload, SourceYouTube, SourceTikTok, SourceURL:
		return true
	default:
		return false
	}
}

// Segment is one timestamped utterance of a transcript. Segments live as a
// jsonb array on Content; they are never shared across contents.
type Segment struct {
	ID          string   `json:"id"`
	Start       float64  `json:"start"`
	End         float64  `json:"end"`
	Text        string   `json:"text"`
	Speaker     *string  `json:"speaker,omitempty"`
	Confidence  float64  `json:"confidence"`
	IsHighlight bool     `json:"is_highlight"`
}

type Content struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title        string         `gorm:"column:title;not null" json:"title"`
	SourceType   SourceType     `gorm:"column:source_type;not null;index" json:"source_type"`
	SourceURL    string         `gorm:"column:source_url" json:"source_url,omitempty"`
	FileURL      string         `gorm:"column:file_url" json:"file_url,omitempty"`
	ThumbnailURL string         `gorm:"column:thumbnail_url" json:"thumbnail_url,omitempty"`
	Duration     *float64       `gorm:"column:duration" json:"duration,omitempty"`
	Status       ContentStatus  `gorm:"column:status;not null;index" json:"status"`
	// Set when the pipeline records a terminal failure so the UI can show
	// which stage was reached.
	Error        string         `gorm:"column:error" json:"error,omitempty"`
	Transcription string        `gorm:"column:transcription" json:"transcription,omitempty"`
	TranscriptionSegments datatypes.JSON `gorm:"column:transcription_segments;type:jsonb" json:"transcription_segments,omitempty"`
	// Guards the quota increment: set exactly once per content, so job
	// retries never double-count usage.
	UsageCounted bool           `gorm:"column:usage_counted;not null;default:false" json:"usage_counted"`
	CreatedAt    time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Content) TableName() string { return "contents" }

// Segments decodes the jsonb segment array. A missing or malformed column
// decodes to nil rather than failing the caller.
func (c *Content) Segments() []Segment {
	if c == nil || len(c.TranscriptionSegments) == 0 {
		return nil
	}
	var segs []Segment
	if err := json.Unmarshal(c.TranscriptionSegments, &segs); err != nil {
		return nil
	}
	return segs
}

func MarshalSegments(segs []Segment) datatypes.JSON {
	if segs == nil {
		segs = []Segment{}
	}
	b, _ := json.Marshal(segs)
	return datatypes.JSON(b)
}
