package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
	"github.com/ManuelReschke/ChatFox/app/repository"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrPlanInactive         = errors.New("plan is not available")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// Catalog resolves the plan a tenant is entitled to at a point in time.
type Catalog interface {
	// ActivePlan returns (nil, nil, nil) when the tenant has no current subscription.
	ActivePlan(ctx context.Context, tenantID uint, now time.Time) (*models.Plan, *models.Subscription, error)
}

// Service manages the plan catalog and tenant subscriptions.
type Service struct {
	plans    repository.PlanRepository
	subs     repository.SubscriptionRepository
	now      func() time.Time
	onChange []ChangeHook
}

// NewService creates a billing service from injected repositories.
func NewService(plans repository.PlanRepository, subs repository.SubscriptionRepository) *Service {
	return &Service{plans: plans, subs: subs, now: time.Now}
}

// NewServiceFromRepositories creates a billing service from a repository set.
func NewServiceFromRepositories(repos *repository.Repositories) *Service {
	return NewService(repos.Plan, repos.Subscription)
}

// OnChange registers a hook that runs after every assignment or cancellation.
func (s *Service) OnChange(hook ChangeHook) {
	s.onChange = append(s.onChange, hook)
}

// SetClock overrides the time source, used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) notify(tenantID uint) {
	for _, hook := range s.onChange {
		hook(tenantID)
	}
}

// ActivePlan implements Catalog. Expiry is derived from the clock on every call.
func (s *Service) ActivePlan(ctx context.Context, tenantID uint, now time.Time) (*models.Plan, *models.Subscription, error) {
	if tenantID == 0 {
		return nil, nil, errors.New("tenant_id is required")
	}
	sub, err := s.subs.GetActive(ctx, tenantID, now)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if !isEntitlingStatus(sub.Status) || !sub.IsCurrent(now) {
		return nil, nil, nil
	}
	plan := sub.Plan
	return &plan, sub, nil
}

// Plans lists the purchasable catalog.
func (s *Service) Plans(ctx context.Context) ([]models.Plan, error) {
	return s.plans.ListActive(ctx)
}

// CreatePlan validates and stores a catalog entry.
func (s *Service) CreatePlan(ctx context.Context, plan *models.Plan) error {
	plan.Name = strings.TrimSpace(plan.Name)
	if iv := normalizeInterval(plan.Interval); iv != "unknown" {
		plan.Interval = iv
	}
	if err := plan.Validate(); err != nil {
		return err
	}
	return s.plans.Create(ctx, plan)
}

// AssignPlan makes the plan the tenant's only active subscription.
func (s *Service) AssignPlan(ctx context.Context, in AssignInput) (*models.Subscription, error) {
	if in.TenantID == 0 || in.PlanID == 0 {
		return nil, errors.New("tenant_id and plan_id are required")
	}
	plan, err := s.plans.GetByID(ctx, in.PlanID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, ErrPlanInactive
	}

	start := s.now()
	if in.StartsAt != nil {
		start = *in.StartsAt
	}
	periods := in.Periods
	if periods <= 0 {
		periods = 1
	}
	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = "manual"
	}

	sub := &models.Subscription{
		TenantID: in.TenantID,
		PlanID:   plan.ID,
		Status:   models.SubscriptionStatusActive,
		StartsAt: start,
		EndsAt:   start.Add(time.Duration(periods) * plan.PeriodLength()),
		Source:   source,
	}
	if err := s.subs.Assign(ctx, sub); err != nil {
		return nil, fmt.Errorf("assign plan: %w", err)
	}
	sub.Plan = *plan
	log.Infof("[Billing] Tenant %d assigned plan %q until %s", in.TenantID, plan.Name, sub.EndsAt.Format(time.RFC3339))
	s.notify(in.TenantID)
	return sub, nil
}

// StartTrial assigns a single trial period of the plan.
func (s *Service) StartTrial(ctx context.Context, tenantID, planID uint) (*models.Subscription, error) {
	return s.AssignPlan(ctx, AssignInput{TenantID: tenantID, PlanID: planID, Periods: 1, Source: "trial"})
}

// Cancel ends a subscription immediately. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, tenantID, subscriptionID uint) error {
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSubscriptionNotFound
	}
	if err != nil {
		return err
	}
	if sub.TenantID != tenantID {
		return ErrSubscriptionNotFound
	}
	if sub.Status == models.SubscriptionStatusCancelled {
		return nil
	}
	if err := s.subs.UpdateStatus(ctx, sub.ID, models.SubscriptionStatusCancelled); err != nil {
		return err
	}
	log.Infof("[Billing] Tenant %d cancelled subscription %d", tenantID, sub.ID)
	s.notify(tenantID)
	return nil
}

// History lists every subscription a tenant ever had, newest first.
func (s *Service) History(ctx context.Context, tenantID uint) ([]models.Subscription, error) {
	return s.subs.ListByTenant(ctx, tenantID)
}
