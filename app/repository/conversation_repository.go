package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// conversationRepository implements the ConversationRepository interface
type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new conversation repository instance
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// GetOrCreate inserts the conversation unless its key exists and loads the stored row
func (r *conversationRepository) GetOrCreate(ctx context.Context, conv *models.Conversation) (bool, error) {
	db := r.db.WithContext(ctx)
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(conv)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	err := db.Where("tenant_id = ? AND contact_id = ? AND instance_name = ?",
		conv.TenantID, conv.ContactID, conv.InstanceName).First(conv).Error
	return false, err
}

// GetByID retrieves a conversation of the given tenant
func (r *conversationRepository) GetByID(ctx context.Context, tenantID, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListByTenant retrieves every conversation of the tenant by recency
func (r *conversationRepository) ListByTenant(ctx context.Context, tenantID uint) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("COALESCE(last_message_at, created_at) DESC, id DESC").
		Find(&convs).Error
	return convs, err
}

// ApplyMessage updates the cached preview. MySQL evaluates single-table SET
// clauses left to right, so the text has to be assigned before the timestamp.
func (r *conversationRepository) ApplyMessage(ctx context.Context, msg *models.Message) error {
	if msg.ConversationID == 0 {
		return errors.New("message has no conversation")
	}
	var unread int64
	if msg.IsInbound() && !msg.Read {
		unread = 1
	}
	preview := models.PreviewText(msg.Body)
	return r.db.WithContext(ctx).Exec(`UPDATE conversations SET
		last_message_text = CASE WHEN last_message_at IS NULL OR last_message_at <= ? THEN ? ELSE last_message_text END,
		last_message_at = CASE WHEN last_message_at IS NULL OR last_message_at <= ? THEN ? ELSE last_message_at END,
		unread_count = unread_count + ?,
		updated_at = ?
		WHERE id = ?`,
		msg.CreatedAt, preview,
		msg.CreatedAt, msg.CreatedAt,
		unread, time.Now(), msg.ConversationID,
	).Error
}

// ResetUnread sets the unread counter of a conversation back to zero
func (r *conversationRepository) ResetUnread(ctx context.Context, tenantID, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("unread_count", 0).Error
}

// SaveProjection stores a preview recomputed from the message rows
func (r *conversationRepository) SaveProjection(ctx context.Context, id uint, text string, at *time.Time, unread int64) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message_text": models.PreviewText(text),
			"last_message_at":   at,
			"unread_count":      unread,
		}).Error
}
