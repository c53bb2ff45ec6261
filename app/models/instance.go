package models

import "time"

const (
	INSTANCE_STATUS_DISCONNECTED = "disconnected"
	INSTANCE_STATUS_CONNECTED    = "connected"
)

// Instance is a named messaging-provider connection (one WhatsApp line).
type Instance struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TenantID  uint      `gorm:"not null;index:ux_instances_tenant_name,unique,priority:1" json:"tenant_id"`
	Name      string    `gorm:"type:varchar(100);not null;index:ux_instances_tenant_name,unique,priority:2" json:"name" validate:"required,min=1,max=100"`
	Status    string    `gorm:"type:varchar(20);not null;default:'disconnected'" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
