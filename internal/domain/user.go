package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanStarter Plan = "starter"
	PlanPro     Plan = "pro"
	PlanAgency  Plan = "agency"
)

// Unlimited reports whether the plan bypasses the monthly usage ceiling.
func (p Plan) Unlimited() bool { return p == PlanAgency }

type User struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email          string         `gorm:"column:email;not null;uniqueIndex" json:"email"`
	Plan           Plan           `gorm:"column:plan;not null;default:'free';index" json:"plan"`
	UsageThisMonth int            `gorm:"column:usage_this_month;not null;default:0" json:"usage_this_month"`
	UsageLimit     int            `gorm:"column:usage_limit;not null;default:3" json:"usage_limit"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "users" }
