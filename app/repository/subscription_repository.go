package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
	"gorm.io/gorm"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Assign deactivates the current subscriptions of the tenant and stores sub
func (r *subscriptionRepository) Assign(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Subscription{}).
			Where("tenant_id = ? AND status = ?", sub.TenantID, models.SubscriptionStatusActive).
			Update("status", models.SubscriptionStatusInactive).Error; err != nil {
			return err
		}
		if sub.Status == "" {
			sub.Status = models.SubscriptionStatusActive
		}
		return tx.Omit("Plan").Create(sub).Error
	})
}

// GetActive retrieves the subscription currently entitling the tenant
func (r *subscriptionRepository) GetActive(ctx context.Context, tenantID uint, now time.Time) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Preload("Plan").
		Where("tenant_id = ? AND status = ? AND starts_at <= ? AND ends_at > ?",
			tenantID, models.SubscriptionStatusActive, now, now).
		Order("starts_at DESC, id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByID retrieves a subscription by its ID
func (r *subscriptionRepository) GetByID(ctx context.Context, id uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Preload("Plan").First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateStatus changes the lifecycle status of a subscription
func (r *subscriptionRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// ListByTenant retrieves the subscription history of a tenant, newest first
func (r *subscriptionRepository) ListByTenant(ctx context.Context, tenantID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).Preload("Plan").
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC, id DESC").
		Find(&subs).Error
	return subs, err
}
