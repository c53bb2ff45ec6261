package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// botRepository implements the BotRepository interface
type botRepository struct {
	db *gorm.DB
}

// NewBotRepository creates a new bot repository instance
func NewBotRepository(db *gorm.DB) BotRepository {
	return &botRepository{db: db}
}

// InsertSuppression creates a suppression row, ignoring an existing one
func (r *botRepository) InsertSuppression(ctx context.Context, s *models.BotSuppression) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(s)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteSuppression removes the suppression row for a key
func (r *botRepository) DeleteSuppression(ctx context.Context, tenantID uint, contact, instance string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("tenant_id = ? AND contact_id = ? AND instance_name = ?", tenantID, contact, instance).
		Delete(&models.BotSuppression{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SuppressionExists reports whether the key is suppressed
func (r *botRepository) SuppressionExists(ctx context.Context, tenantID uint, contact, instance string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BotSuppression{}).
		Where("tenant_id = ? AND contact_id = ? AND instance_name = ?", tenantID, contact, instance).
		Count(&count).Error
	return count > 0, err
}

// ListSuppressions retrieves all suppression rows of a tenant
func (r *botRepository) ListSuppressions(ctx context.Context, tenantID uint) ([]models.BotSuppression, error) {
	var rows []models.BotSuppression
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("id ASC").Find(&rows).Error
	return rows, err
}

// GetTenantState retrieves the tenant kill switch
func (r *botRepository) GetTenantState(ctx context.Context, tenantID uint) (*models.TenantBotState, error) {
	var state models.TenantBotState
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.TenantBotState{TenantID: tenantID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// SetQuotaSuppressed performs a compare-and-set on the tenant kill switch
func (r *botRepository) SetQuotaSuppressed(ctx context.Context, tenantID uint, suppressed bool, at time.Time) (bool, error) {
	db := r.db.WithContext(ctx)

	// make sure the row exists so the conditional update below has a target
	seed := models.TenantBotState{TenantID: tenantID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return false, err
	}

	updates := map[string]interface{}{"quota_suppressed": suppressed}
	if suppressed {
		updates["suppressed_at"] = at
	} else {
		updates["restored_at"] = at
	}
	res := db.Model(&models.TenantBotState{}).
		Where("tenant_id = ? AND quota_suppressed = ?", tenantID, !suppressed).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListQuotaSuppressedTenants returns the tenants whose kill switch is raised
func (r *botRepository) ListQuotaSuppressedTenants(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.TenantBotState{}).
		Where("quota_suppressed = ?", true).
		Pluck("tenant_id", &ids).Error
	return ids, err
}
