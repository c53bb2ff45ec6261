package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	PlanIntervalTrial     = "trial"
	PlanIntervalMonthly   = "monthly"
	PlanIntervalQuarterly = "quarterly"
	PlanIntervalYearly    = "yearly"
)

// Plan is a catalog entry with per-resource maximums. Subscriptions reference
// it by ID; only catalog edits change it afterwards.
type Plan struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"name" validate:"required,min=2,max=100"`
	MaxInstances     int64     `gorm:"not null;default:0" json:"max_instances" validate:"gte=0"`
	MaxContacts      int64     `gorm:"not null;default:0" json:"max_contacts" validate:"gte=0"`
	MaxCampaigns     int64     `gorm:"not null;default:0" json:"max_campaigns" validate:"gte=0"`
	MaxConversations int64     `gorm:"not null;default:0" json:"max_conversations" validate:"gte=0"`
	MaxMessages      int64     `gorm:"not null;default:0" json:"max_messages" validate:"gte=0"`
	Interval         string    `gorm:"type:varchar(16);not null;default:'monthly'" json:"interval" validate:"oneof=trial monthly quarterly yearly"`
	PriceCents       int64     `gorm:"not null;default:0" json:"price_cents" validate:"gte=0"`
	IsActive         bool      `gorm:"not null" json:"is_active"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Plan) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// PeriodLength returns the validity window granted by one billing period.
func (p *Plan) PeriodLength() time.Duration {
	switch strings.ToLower(strings.TrimSpace(p.Interval)) {
	case PlanIntervalTrial:
		return 7 * 24 * time.Hour
	case PlanIntervalQuarterly:
		return 90 * 24 * time.Hour
	case PlanIntervalYearly:
		return 365 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}
