package repository

import (
	"context"
	"strings"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new tenant account in the database
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID retrieves a tenant account by its ID
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// operatorRepository implements the OperatorRepository interface
type operatorRepository struct {
	db *gorm.DB
}

// NewOperatorRepository creates a new operator repository instance
func NewOperatorRepository(db *gorm.DB) OperatorRepository {
	return &operatorRepository{db: db}
}

// Create creates a new operator in the database
func (r *operatorRepository) Create(ctx context.Context, op *models.Operator) error {
	return r.db.WithContext(ctx).Create(op).Error
}

// GetByID retrieves an operator by its ID
func (r *operatorRepository) GetByID(ctx context.Context, id uint) (*models.Operator, error) {
	var op models.Operator
	if err := r.db.WithContext(ctx).First(&op, id).Error; err != nil {
		return nil, err
	}
	return &op, nil
}

// GetByAPIKeyHash resolves an API key hash to its active operator.
func (r *operatorRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*models.Operator, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var op models.Operator
	err := r.db.WithContext(ctx).
		Where("api_key_hash = ? AND status = ?", trimmed, models.STATUS_ACTIVE).
		First(&op).Error
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// TouchLastSeen records the last authenticated request of an operator
func (r *operatorRepository) TouchLastSeen(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Operator{}).
		Where("id = ?", id).
		UpdateColumn("last_seen_at", at).Error
}
