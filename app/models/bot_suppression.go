package models

import "time"

const (
	SUPPRESSION_REASON_MANUAL_REPLY = "manual_reply"
	SUPPRESSION_REASON_OPERATOR     = "operator"
)

// BotSuppression disables the automated responder for one contact on one
// instance. The row existing is the disabled state; the unique index makes
// concurrent disables collapse into a single row.
type BotSuppression struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TenantID     uint      `gorm:"not null;index:ux_bot_suppressions_key,unique,priority:1" json:"tenant_id"`
	ContactID    string    `gorm:"type:varchar(64);not null;index:ux_bot_suppressions_key,unique,priority:2" json:"contact"`
	InstanceName string    `gorm:"type:varchar(100);not null;index:ux_bot_suppressions_key,unique,priority:3" json:"instance"`
	Reason       string    `gorm:"type:varchar(20);not null;default:'operator'" json:"reason"`
	OperatorID   *uint     `gorm:"default:null" json:"operator_id,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TenantBotState holds the tenant-wide kill switch that is raised when the
// message quota is exhausted. It is combined with the per-contact rows at
// read time instead of writing one row per contact.
type TenantBotState struct {
	TenantID        uint       `gorm:"primaryKey;autoIncrement:false" json:"tenant_id"`
	QuotaSuppressed bool       `gorm:"not null;default:false" json:"quota_suppressed"`
	SuppressedAt    *time.Time `gorm:"type:timestamp;default:null" json:"suppressed_at,omitempty"`
	RestoredAt      *time.Time `gorm:"type:timestamp;default:null" json:"restored_at,omitempty"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
