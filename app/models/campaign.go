package models

import "time"

const (
	CAMPAIGN_STATUS_DRAFT   = "draft"
	CAMPAIGN_STATUS_SENDING = "sending"
	CAMPAIGN_STATUS_SENT    = "sent"
	CAMPAIGN_STATUS_FAILED  = "failed"
)

// Campaign is a bulk send definition. Only campaigns in the sent state
// consume the campaigns quota.
type Campaign struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	TenantID     uint       `gorm:"not null;index:idx_campaigns_tenant_status,priority:1" json:"tenant_id"`
	InstanceName string     `gorm:"type:varchar(100);not null" json:"instance" validate:"required,max=100"`
	Name         string     `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=1,max=150"`
	Body         string     `gorm:"type:text" json:"body" validate:"max=4096"`
	Status       string     `gorm:"type:varchar(16);not null;default:'draft';index:idx_campaigns_tenant_status,priority:2" json:"status"`
	SentAt       *time.Time `gorm:"type:timestamp;default:null" json:"sent_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Campaign) IsSent() bool {
	return c.Status == CAMPAIGN_STATUS_SENT
}
