package models

import "time"

const (
	OPERATOR_ROLE_AGENT = "agent"
	OPERATOR_ROLE_ADMIN = "admin"
)

// Operator is a human agent acting on behalf of a tenant. API requests are
// attributed to an operator through the hash of its API key.
type Operator struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	TenantID   uint       `gorm:"not null;index" json:"tenant_id"`
	Name       string     `gorm:"type:varchar(150);not null" json:"name"`
	Role       string     `gorm:"type:varchar(20);not null;default:'agent'" json:"role"`
	Status     string     `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	APIKeyHash string     `gorm:"type:char(64);uniqueIndex" json:"-"`
	LastSeenAt *time.Time `gorm:"type:timestamp;default:null" json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o *Operator) IsAdmin() bool {
	return o.Role == OPERATOR_ROLE_ADMIN
}
