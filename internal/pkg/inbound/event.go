// Package inbound turns messaging-provider delivery events into conversation
// appends. Events arrive on a NATS subject or through the provider webhook.
package inbound

import (
	"strings"
	"time"

	"github.com/ManuelReschke/ChatFox/internal/pkg/conversation"
)

// Event is one message delivered by the provider.
type Event struct {
	ID        string `json:"id"`
	TenantID  uint   `json:"tenant_id"`
	Instance  string `json:"instance"`
	From      string `json:"from"`
	Name      string `json:"name,omitempty"`
	Body      string `json:"body"`
	Type      string `json:"type,omitempty"`
	// Timestamp is unix seconds or milliseconds.
	Timestamp int64  `json:"timestamp,omitempty"`
}

// unix milliseconds start here (2001-09-09 in seconds)
const millisThreshold = 1_000_000_000_000

func (e Event) sentAt() *time.Time {
	if e.Timestamp <= 0 {
		return nil
	}
	var t time.Time
	if e.Timestamp >= millisThreshold {
		t = time.UnixMilli(e.Timestamp)
	} else {
		t = time.Unix(e.Timestamp, 0)
	}
	t = t.UTC()
	return &t
}

// Message converts the event for the conversation store. The provider message
// id becomes the correlation id, so redeliveries are stored once. The provider
// timestamp is carried as SentAt only; messages are ordered and counted by the
// time they were received.
func (e Event) Message() conversation.InboundMessage {
	return conversation.InboundMessage{
		TenantID:      e.TenantID,
		ContactID:     strings.TrimPrefix(strings.TrimSpace(e.From), "+"),
		Instance:      strings.TrimSpace(e.Instance),
		DisplayName:   e.Name,
		Body:          e.Body,
		ContentType:   strings.ToLower(strings.TrimSpace(e.Type)),
		CorrelationID: strings.TrimSpace(e.ID),
		SentAt:        e.sentAt(),
	}
}
