package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	PlanFree       = "free"
	PlanStarter    = "starter"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

type Subscription struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Plan       string         `gorm:"size:20;not null;default:'free';check:chk_subscriptions_plan,plan IN ('free','starter','pro','enterprise')" json:"plan"`
	Status     string         `gorm:"size:20;not null;default:'active';index;check:chk_subscriptions_status,status IN ('active','cancelled','expired')" json:"status"`
	StartedAt  time.Time      `gorm:"not null" json:"started_at"`
	ExpiresAt  *time.Time     `gorm:"index" json:"expires_at,omitempty"`
	Features   datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"features"`
	ExternalID string         `gorm:"size:255;index" json:"external_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	User       User           `gorm:"foreignKey:UserID" json:"-"`
}

func (s *Subscription) IsActive(now time.Time) bool {
	if s.Status != SubscriptionActive {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}
