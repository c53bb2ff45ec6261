package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
)

type userRepository struct{ s *Store }

func (r *userRepository) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return duplicate()
		}
	}
	if user.ID == 0 {
		user.ID = r.s.next("users")
	}
	now := r.s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = *user
	return nil
}

func (r *userRepository) GetByID(_ context.Context, id uint) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, notFound()
	}
	return &u, nil
}

type operatorRepository struct{ s *Store }

func (r *operatorRepository) Create(_ context.Context, op *models.Operator) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if op.APIKeyHash != "" {
		for _, o := range r.s.operators {
			if o.APIKeyHash == op.APIKeyHash {
				return duplicate()
			}
		}
	}
	if op.ID == 0 {
		op.ID = r.s.next("operators")
	}
	if op.Role == "" {
		op.Role = models.OPERATOR_ROLE_AGENT
	}
	if op.Status == "" {
		op.Status = models.STATUS_ACTIVE
	}
	now := r.s.now()
	op.CreatedAt, op.UpdatedAt = now, now
	r.s.operators[op.ID] = *op
	return nil
}

func (r *operatorRepository) GetByID(_ context.Context, id uint) (*models.Operator, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.operators[id]
	if !ok {
		return nil, notFound()
	}
	return &o, nil
}

func (r *operatorRepository) GetByAPIKeyHash(_ context.Context, hash string) (*models.Operator, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, notFound()
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, id := range sortedKeys(r.s.operators) {
		o := r.s.operators[id]
		if o.APIKeyHash == trimmed && o.Status == models.STATUS_ACTIVE {
			return &o, nil
		}
	}
	return nil, notFound()
}

func (r *operatorRepository) TouchLastSeen(_ context.Context, id uint, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.operators[id]
	if !ok {
		return nil
	}
	o.LastSeenAt = &at
	r.s.operators[id] = o
	return nil
}

type planRepository struct{ s *Store }

func (r *planRepository) Create(_ context.Context, plan *models.Plan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.plans {
		if p.Name == plan.Name {
			return duplicate()
		}
	}
	if plan.ID == 0 {
		plan.ID = r.s.next("plans")
	}
	now := r.s.now()
	plan.CreatedAt, plan.UpdatedAt = now, now
	r.s.plans[plan.ID] = *plan
	return nil
}

func (r *planRepository) GetByID(_ context.Context, id uint) (*models.Plan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.plans[id]
	if !ok {
		return nil, notFound()
	}
	return &p, nil
}

func (r *planRepository) ListActive(_ context.Context) ([]models.Plan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var plans []models.Plan
	for _, id := range sortedKeys(r.s.plans) {
		if p := r.s.plans[id]; p.IsActive {
			plans = append(plans, p)
		}
	}
	sort.SliceStable(plans, func(i, j int) bool { return plans[i].PriceCents < plans[j].PriceCents })
	return plans, nil
}

type subscriptionRepository struct{ s *Store }

func (r *subscriptionRepository) Assign(_ context.Context, sub *models.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.plans[sub.PlanID]; !ok {
		return notFound()
	}
	for id, existing := range r.s.subscriptions {
		if existing.TenantID == sub.TenantID && existing.Status == models.SubscriptionStatusActive {
			existing.Status = models.SubscriptionStatusInactive
			r.s.subscriptions[id] = existing
		}
	}
	if sub.Status == "" {
		sub.Status = models.SubscriptionStatusActive
	}
	if sub.ID == 0 {
		sub.ID = r.s.next("subscriptions")
	}
	now := r.s.now()
	sub.CreatedAt, sub.UpdatedAt = now, now
	stored := *sub
	stored.Plan = models.Plan{}
	r.s.subscriptions[sub.ID] = stored
	return nil
}

// withPlan must be called with mu held
func (r *subscriptionRepository) withPlan(sub models.Subscription) *models.Subscription {
	sub.Plan = r.s.plans[sub.PlanID]
	return &sub
}

func (r *subscriptionRepository) GetActive(_ context.Context, tenantID uint, now time.Time) (*models.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var best *models.Subscription
	for _, id := range sortedKeys(r.s.subscriptions) {
		sub := r.s.subscriptions[id]
		if sub.TenantID != tenantID || !sub.IsCurrent(now) {
			continue
		}
		if best == nil || !sub.StartsAt.Before(best.StartsAt) {
			best = r.withPlan(sub)
		}
	}
	if best == nil {
		return nil, notFound()
	}
	return best, nil
}

func (r *subscriptionRepository) GetByID(_ context.Context, id uint) (*models.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sub, ok := r.s.subscriptions[id]
	if !ok {
		return nil, notFound()
	}
	return r.withPlan(sub), nil
}

func (r *subscriptionRepository) UpdateStatus(_ context.Context, id uint, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subscriptions[id]
	if !ok {
		return nil
	}
	sub.Status = status
	sub.UpdatedAt = r.s.now()
	r.s.subscriptions[id] = sub
	return nil
}

func (r *subscriptionRepository) ListByTenant(_ context.Context, tenantID uint) ([]models.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var subs []models.Subscription
	keys := sortedKeys(r.s.subscriptions)
	for i := len(keys) - 1; i >= 0; i-- {
		if sub := r.s.subscriptions[keys[i]]; sub.TenantID == tenantID {
			subs = append(subs, *r.withPlan(sub))
		}
	}
	return subs, nil
}
