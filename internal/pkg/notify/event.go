package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types published on the bridge
const (
	EventMessageCreated   = "message.created"
	EventConversationRead = "conversation.read"
	EventBotEnabled       = "bot.enabled"
	EventBotDisabled      = "bot.disabled"
	EventBotsDisabledAll  = "bots.disabled_all"
	EventBotsRestored     = "bots.restored"
	EventPresenceUpdated  = "presence.updated"
	EventUsageNearLimit   = "usage.near_limit"
)

// Event is one notification. Data must be JSON encodable so it can cross nodes.
type Event struct {
	ID             string      `json:"id"`
	Type           string      `json:"type"`
	TenantID       uint        `json:"tenant_id"`
	ConversationID uint        `json:"conversation_id,omitempty"`
	Data           interface{} `json:"data,omitempty"`
	Origin         string      `json:"origin,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// NewEvent builds an event for a tenant, optionally scoped to a conversation.
func NewEvent(eventType string, tenantID, conversationID uint, data interface{}) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		TenantID:       tenantID,
		ConversationID: conversationID,
		Data:           data,
		CreatedAt:      time.Now().UTC(),
	}
}

// TenantTopic receives every event of a tenant.
func TenantTopic(tenantID uint) string {
	return fmt.Sprintf("tenant:%d", tenantID)
}

// ConversationTopic receives the events of one conversation.
func ConversationTopic(conversationID uint) string {
	return fmt.Sprintf("conversation:%d", conversationID)
}

// Topics lists every topic an event is delivered on.
func (e Event) Topics() []string {
	topics := []string{TenantTopic(e.TenantID)}
	if e.ConversationID != 0 {
		topics = append(topics, ConversationTopic(e.ConversationID))
	}
	return topics
}
