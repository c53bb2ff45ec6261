package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
	"gorm.io/gorm"
)

// usageRepository implements the UsageRepository interface
type usageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a new usage repository instance
func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

// CountInstances returns the number of instances owned by the tenant
func (r *usageRepository) CountInstances(ctx context.Context, tenantID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Instance{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	return count, err
}

// CountContacts returns the number of contacts owned by the tenant
func (r *usageRepository) CountContacts(ctx context.Context, tenantID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Contact{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	return count, err
}

// CountSentCampaigns returns the number of campaigns the tenant has sent.
// Drafts are not counted.
func (r *usageRepository) CountSentCampaigns(ctx context.Context, tenantID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("tenant_id = ? AND status = ?", tenantID, models.CAMPAIGN_STATUS_SENT).
		Count(&count).Error
	return count, err
}

// CountConversations returns the number of conversations of the tenant
func (r *usageRepository) CountConversations(ctx context.Context, tenantID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Conversation{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	return count, err
}

// CountInboundMessages returns the inbound messages received since the given time
func (r *usageRepository) CountInboundMessages(ctx context.Context, tenantID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("tenant_id = ? AND direction = ? AND created_at >= ?", tenantID, models.DIRECTION_INBOUND, since).
		Count(&count).Error
	return count, err
}
