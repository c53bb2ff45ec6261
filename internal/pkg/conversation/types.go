package conversation

import (
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
	"github.com/go-playground/validator/v10"
)

var validation = validator.New()

var (
	ErrNotFound       = errors.New("conversation not found")
	ErrInvalidMessage = errors.New("invalid message")
)

// BlockedError is returned for conversations hidden by the conversations quota.
type BlockedError struct {
	ConversationID   uint
	MaxConversations int64
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("conversation %d is beyond the conversations quota (%d)", e.ConversationID, e.MaxConversations)
}

// IsBlocked reports whether err is a BlockedError.
func IsBlocked(err error) bool {
	var b *BlockedError
	return errors.As(err, &b)
}

// InboundMessage is a message received from a contact through the provider.
type InboundMessage struct {
	TenantID      uint   `json:"tenant_id"`
	ContactID     string `json:"contact" validate:"required,max=64"`
	Instance      string `json:"instance" validate:"required,max=100"`
	DisplayName   string `json:"display_name" validate:"max=150"`
	Body          string `json:"body" validate:"max=65535"`
	ContentType   string `json:"content_type" validate:"omitempty,oneof=text image audio document"`
	CorrelationID string `json:"correlation_id" validate:"max=128"`

	// SentAt is kept for display; the stored CreatedAt is the receive time.
	SentAt *time.Time `json:"sent_at,omitempty"`
}

func (m *InboundMessage) validate() error {
	if m.TenantID == 0 {
		return fmt.Errorf("%w: tenant is required", ErrInvalidMessage)
	}
	if err := validation.Struct(m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}

// OutboundMessage is a reply written by an operator or the bot.
type OutboundMessage struct {
	TenantID       uint
	ConversationID uint
	OperatorID     *uint
	Author         string
	Body           string
	ContentType    string
}

// AppendResult describes a stored message. Blocked is set when the
// conversation is hidden by the quota; the message is stored regardless.
// Duplicate is set when the correlation id was already seen.
type AppendResult struct {
	Conversation *models.Conversation `json:"conversation"`
	Message      *models.Message      `json:"message"`
	Blocked      bool                 `json:"blocked"`
	Duplicate    bool                 `json:"duplicate"`
}

// ListResult is the operator inbox.
type ListResult struct {
	Items            []models.Conversation `json:"items"`
	BlockedCount     int                   `json:"blocked_count"`
	MaxConversations int64                 `json:"max_conversations"`
}

func timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
