package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for tenant account operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// OperatorRepository defines the interface for operator lookups
type OperatorRepository interface {
	Create(ctx context.Context, op *models.Operator) error
	GetByID(ctx context.Context, id uint) (*models.Operator, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*models.Operator, error)
	TouchLastSeen(ctx context.Context, id uint, at time.Time) error
}

// PlanRepository defines the interface for the plan catalog
type PlanRepository interface {
	Create(ctx context.Context, plan *models.Plan) error
	GetByID(ctx context.Context, id uint) (*models.Plan, error)
	ListActive(ctx context.Context) ([]models.Plan, error)
}

// SubscriptionRepository defines the interface for tenant subscriptions
type SubscriptionRepository interface {
	// Assign stores sub as the tenant's only active subscription. Every other
	// active subscription of the tenant is set inactive in the same transaction.
	Assign(ctx context.Context, sub *models.Subscription) error
	// GetActive returns the newest active subscription covering now, with its plan loaded.
	GetActive(ctx context.Context, tenantID uint, now time.Time) (*models.Subscription, error)
	GetByID(ctx context.Context, id uint) (*models.Subscription, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
	ListByTenant(ctx context.Context, tenantID uint) ([]models.Subscription, error)
}

// ResourceRepository defines the interface for quota-bounded tenant resources
type ResourceRepository interface {
	CreateInstance(ctx context.Context, instance *models.Instance) error
	CreateContact(ctx context.Context, contact *models.Contact) error
	CreateCampaign(ctx context.Context, campaign *models.Campaign) error
	GetCampaign(ctx context.Context, tenantID, id uint) (*models.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id uint, status string, sentAt *time.Time) error
}

// UsageRepository counts the rows each quota is measured against
type UsageRepository interface {
	CountInstances(ctx context.Context, tenantID uint) (int64, error)
	CountContacts(ctx context.Context, tenantID uint) (int64, error)
	CountSentCampaigns(ctx context.Context, tenantID uint) (int64, error)
	CountConversations(ctx context.Context, tenantID uint) (int64, error)
	CountInboundMessages(ctx context.Context, tenantID uint, since time.Time) (int64, error)
}

// ConversationRepository defines the interface for conversation operations
type ConversationRepository interface {
	// GetOrCreate loads the conversation for (TenantID, ContactID, InstanceName)
	// into conv, inserting it first when it does not exist yet.
	GetOrCreate(ctx context.Context, conv *models.Conversation) (created bool, err error)
	GetByID(ctx context.Context, tenantID, id uint) (*models.Conversation, error)
	// ListByTenant returns all conversations of a tenant, most recently active first.
	ListByTenant(ctx context.Context, tenantID uint) ([]models.Conversation, error)
	// ApplyMessage folds a stored message into the cached preview. The preview
	// only moves forward in time; inbound messages also bump the unread count.
	ApplyMessage(ctx context.Context, msg *models.Message) error
	ResetUnread(ctx context.Context, tenantID, id uint) error
	// SaveProjection overwrites the cached preview with recomputed values.
	SaveProjection(ctx context.Context, id uint, text string, at *time.Time, unread int64) error
}

// MessageRepository defines the interface for message operations
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	// ListByConversation returns up to limit messages older than beforeID
	// (0 = newest), in conversation order.
	ListByConversation(ctx context.Context, conversationID, beforeID uint, limit int) ([]models.Message, error)
	Latest(ctx context.Context, conversationID uint) (*models.Message, error)
	CountUnreadInbound(ctx context.Context, conversationID uint) (int64, error)
	MarkInboundRead(ctx context.Context, conversationID uint) (int64, error)
	GetByCorrelationID(ctx context.Context, tenantID uint, correlationID string) (*models.Message, error)
}

// BotRepository defines the interface for responder suppression state
type BotRepository interface {
	// InsertSuppression creates the row unless the key already exists.
	InsertSuppression(ctx context.Context, s *models.BotSuppression) (created bool, err error)
	DeleteSuppression(ctx context.Context, tenantID uint, contact, instance string) (deleted bool, err error)
	SuppressionExists(ctx context.Context, tenantID uint, contact, instance string) (bool, error)
	ListSuppressions(ctx context.Context, tenantID uint) ([]models.BotSuppression, error)
	// GetTenantState returns the tenant switch, or a zero state when none was stored.
	GetTenantState(ctx context.Context, tenantID uint) (*models.TenantBotState, error)
	// SetQuotaSuppressed flips the tenant switch and reports whether this call changed it.
	SetQuotaSuppressed(ctx context.Context, tenantID uint, suppressed bool, at time.Time) (changed bool, err error)
	ListQuotaSuppressedTenants(ctx context.Context) ([]uint, error)
}

// QueueRepository inspects the Redis keys used by the background job queue
type QueueRepository interface {
	ListLength(ctx context.Context, key string) (int64, error)
	ScanKeys(ctx context.Context, patterns ...string) ([]string, error)
	DeleteKeys(ctx context.Context, keys []string) (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Operator     OperatorRepository
	Plan         PlanRepository
	Subscription SubscriptionRepository
	Resource     ResourceRepository
	Usage        UsageRepository
	Conversation ConversationRepository
	Message      MessageRepository
	Bot          BotRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Operator:     NewOperatorRepository(db),
		Plan:         NewPlanRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Resource:     NewResourceRepository(db),
		Usage:        NewUsageRepository(db),
		Conversation: NewConversationRepository(db),
		Message:      NewMessageRepository(db),
		Bot:          NewBotRepository(db),
	}
}
