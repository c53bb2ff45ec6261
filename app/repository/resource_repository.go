package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
	"gorm.io/gorm"
)

// resourceRepository implements the ResourceRepository interface
type resourceRepository struct {
	db *gorm.DB
}

// NewResourceRepository creates a new resource repository instance
func NewResourceRepository(db *gorm.DB) ResourceRepository {
	return &resourceRepository{db: db}
}

// CreateInstance creates a new provider instance
func (r *resourceRepository) CreateInstance(ctx context.Context, instance *models.Instance) error {
	return r.db.WithContext(ctx).Create(instance).Error
}

// CreateContact creates a new contact
func (r *resourceRepository) CreateContact(ctx context.Context, contact *models.Contact) error {
	return r.db.WithContext(ctx).Create(contact).Error
}

// CreateCampaign creates a new campaign draft
func (r *resourceRepository) CreateCampaign(ctx context.Context, campaign *models.Campaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

// GetCampaign retrieves a campaign of the given tenant
func (r *resourceRepository) GetCampaign(ctx context.Context, tenantID, id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&campaign).Error
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// UpdateCampaignStatus moves a campaign to a new status
func (r *resourceRepository) UpdateCampaignStatus(ctx context.Context, id uint, status string, sentAt *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if sentAt != nil {
		updates["sent_at"] = *sentAt
	}
	return r.db.WithContext(ctx).Model(&models.Campaign{}).Where("id = ?", id).Updates(updates).Error
}
