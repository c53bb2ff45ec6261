package repository

import (
	"context"

	"github.com/ManuelReschke/ChatFox/app/models"
	"gorm.io/gorm"
)

// messageRepository implements the MessageRepository interface
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository instance
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create stores a new message
func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// ListByConversation retrieves one page of history in conversation order
func (r *messageRepository) ListByConversation(ctx context.Context, conversationID, beforeID uint, limit int) ([]models.Message, error) {
	query := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if beforeID > 0 {
		query = query.Where("id < ?", beforeID)
	}
	var msgs []models.Message
	err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	// newest page was fetched first; flip it back to reading order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Latest retrieves the newest message of a conversation
func (r *messageRepository) Latest(ctx context.Context, conversationID uint) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// CountUnreadInbound counts inbound messages not yet marked read
func (r *messageRepository) CountUnreadInbound(ctx context.Context, conversationID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND direction = ? AND `read` = ?", conversationID, models.DIRECTION_INBOUND, false).
		Count(&count).Error
	return count, err
}

// MarkInboundRead flags every unread inbound message as read
func (r *messageRepository) MarkInboundRead(ctx context.Context, conversationID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND direction = ? AND `read` = ?", conversationID, models.DIRECTION_INBOUND, false).
		Update("read", true)
	return res.RowsAffected, res.Error
}

// GetByCorrelationID finds a message by the provider id it was delivered with
func (r *messageRepository) GetByCorrelationID(ctx context.Context, tenantID uint, correlationID string) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND correlation_id = ?", tenantID, correlationID).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
