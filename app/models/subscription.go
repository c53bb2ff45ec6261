package models

import "time"

const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusInactive  = "inactive"
)

// Subscription binds a tenant to a plan for the window [StartsAt, EndsAt).
// Expiry is never stored; IsCurrent derives it from the clock on every read.
type Subscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TenantID  uint      `gorm:"not null;index:idx_subscriptions_tenant_status,priority:1" json:"tenant_id"`
	PlanID    uint      `gorm:"not null;index" json:"plan_id"`
	Plan      Plan      `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Status    string    `gorm:"type:varchar(16);not null;default:'active';index:idx_subscriptions_tenant_status,priority:2" json:"status"`
	StartsAt  time.Time `gorm:"type:timestamp;not null" json:"starts_at"`
	EndsAt    time.Time `gorm:"type:timestamp;not null" json:"ends_at"`
	Source    string    `gorm:"type:varchar(32);not null;default:'manual'" json:"source"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsExpired reports whether the validity window has ended at now.
func (s *Subscription) IsExpired(now time.Time) bool {
	return !s.EndsAt.After(now)
}

// IsCurrent reports whether the subscription entitles its tenant at now.
func (s *Subscription) IsCurrent(now time.Time) bool {
	if s.Status != SubscriptionStatusActive {
		return false
	}
	if now.Before(s.StartsAt) {
		return false
	}
	return !s.IsExpired(now)
}
