package models

import "time"

const (
	DIRECTION_INBOUND  = "inbound"
	DIRECTION_OUTBOUND = "outbound"
)

const (
	AUTHOR_CONTACT  = "contact"
	AUTHOR_OPERATOR = "operator"
	AUTHOR_BOT      = "bot"
)

const (
	CONTENT_TEXT     = "text"
	CONTENT_IMAGE    = "image"
	CONTENT_AUDIO    = "audio"
	CONTENT_DOCUMENT = "document"
)

// Message is immutable once stored except for the Read flag. The auto
// increment ID doubles as the insertion sequence that breaks CreatedAt ties.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	TenantID       uint      `gorm:"not null;index:idx_messages_tenant_direction_created,priority:1;index:ux_messages_tenant_correlation,unique,priority:1" json:"tenant_id"`
	ConversationID uint      `gorm:"not null;index:idx_messages_conversation_created,priority:1" json:"conversation_id"`
	Direction      string    `gorm:"type:varchar(10);not null;index:idx_messages_tenant_direction_created,priority:2" json:"direction"`
	Author         string    `gorm:"type:varchar(10);not null;default:'contact'" json:"author"`
	OperatorID     *uint     `gorm:"default:null" json:"operator_id,omitempty"`
	Body           string    `gorm:"type:text" json:"body"`
	ContentType    string    `gorm:"type:varchar(20);not null;default:'text'" json:"content_type"`
	Read           bool      `gorm:"not null;default:false" json:"read"`
	CorrelationID  *string   `gorm:"type:varchar(128);default:null;index:ux_messages_tenant_correlation,unique,priority:2" json:"correlation_id,omitempty"`
	CreatedAt      time.Time `gorm:"type:timestamp(6);not null;index:idx_messages_conversation_created,priority:2;index:idx_messages_tenant_direction_created,priority:3" json:"created_at"`

	// SentAt is the time the provider reports. Ordering and quota periods use CreatedAt.
	SentAt *time.Time `gorm:"type:timestamp(6);default:null" json:"sent_at,omitempty"`
}

func (m *Message) IsInbound() bool {
	return m.Direction == DIRECTION_INBOUND
}

// IsHumanReply reports whether an operator wrote the message by hand.
func (m *Message) IsHumanReply() bool {
	return m.Direction == DIRECTION_OUTBOUND && m.Author == AUTHOR_OPERATOR
}

// Before orders messages by creation time, then by insertion sequence.
func (m *Message) Before(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}
