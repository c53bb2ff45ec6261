package models

import "time"

// Contact is an addressable end customer of a tenant.
type Contact struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TenantID   uint      `gorm:"not null;index:ux_contacts_tenant_identifier,unique,priority:1" json:"tenant_id"`
	Identifier string    `gorm:"type:varchar(64);not null;index:ux_contacts_tenant_identifier,unique,priority:2" json:"identifier" validate:"required,min=3,max=64"`
	Name       string    `gorm:"type:varchar(150)" json:"name" validate:"max=150"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
