package domain

import (
	"time"

	"github.com/google/uuid"
)

// SocialAccount stores the OAuth credential for one (user, platform) pair.
// Tokens are refreshed lazily at publish time and the refreshed pair is
// persisted before the publish call is attempted.
type SocialAccount struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_social_accounts_user_platform" json:"user_id"`
	Platform       Platform   `gorm:"column:platform;not null;uniqueIndex:idx_social_accounts_user_platform" json:"platform"`
	Handle         string     `gorm:"column:handle" json:"handle,omitempty"`
	AccessToken    string     `gorm:"column:access_token;not null" json:"-"`
	RefreshToken   string     `gorm:"column:refresh_token" json:"-"`
	TokenExpiresAt *time.Time `gorm:"column:token_expires_at" json:"token_expires_at,omitempty"`
	IsActive       bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt      time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (SocialAccount) TableName() string { return "social_accounts" }

// TokenExpired reports whether the access token is past (or within skew of)
// its expiry. Accounts with no recorded expiry are treated as non-expiring.
func (a *SocialAccount) TokenExpired(now time.Time, skew time.Duration) bool {
	if a.TokenExpiresAt == nil {
		return false
	}
	return !now.Add(skew).Before(*a.TokenExpiresAt)
}
