package models

import "time"

// Conversation groups all messages exchanged with one contact over one
// instance. LastMessageText, LastMessageAt and UnreadCount are a cached
// projection of the Message rows and may briefly lag behind them.
type Conversation struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	TenantID        uint       `gorm:"not null;index:ux_conversations_tenant_contact_instance,unique,priority:1;index:idx_conversations_tenant_activity,priority:1" json:"tenant_id"`
	ContactID       string     `gorm:"type:varchar(64);not null;index:ux_conversations_tenant_contact_instance,unique,priority:2" json:"contact"`
	InstanceName    string     `gorm:"type:varchar(100);not null;index:ux_conversations_tenant_contact_instance,unique,priority:3" json:"instance"`
	DisplayName     string     `gorm:"type:varchar(150)" json:"display_name"`
	LastMessageText string     `gorm:"type:varchar(512)" json:"last_message_text"`
	LastMessageAt   *time.Time `gorm:"type:timestamp(6);default:null;index:idx_conversations_tenant_activity,priority:2" json:"last_message_at,omitempty"`
	UnreadCount     int64      `gorm:"not null;default:0" json:"unread_count"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ActivityAt is the timestamp used to order conversations by recency.
// Conversations without messages sort by their creation time.
func (c *Conversation) ActivityAt() time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

// PreviewText trims a message body to the size of the cached preview column.
func PreviewText(body string) string {
	const maxPreview = 512
	r := []rune(body)
	if len(r) <= maxPreview {
		return body
	}
	return string(r[:maxPreview])
}
