package jobqueue

import (
	"context"
	"fmt"

	"github.com/ManuelReschke/ChatFox/internal/pkg/entitlements"
	"github.com/gofiber/fiber/v2/log"
)

// SuppressedTenants lists tenants whose bots are switched off by the quota.
type SuppressedTenants interface {
	ListQuotaSuppressedTenants(ctx context.Context) ([]uint, error)
}

// QuotaRestorer lowers the tenant kill switch when usage allows it.
type QuotaRestorer interface {
	RestoreTenant(ctx context.Context, tenantID uint, u entitlements.Usage) (bool, error)
}

// Reconciler restores bots of tenants whose messages quota recovered, after
// an upgrade or a new billing period.
type Reconciler struct {
	tenants SuppressedTenants
	usage   UsageRecomputer
	gate    QuotaRestorer
}

func NewReconciler(tenants SuppressedTenants, usage UsageRecomputer, gate QuotaRestorer) *Reconciler {
	return &Reconciler{tenants: tenants, usage: usage, gate: gate}
}

// ReconcileTenant recomputes messages usage and restores the tenant when it
// is back under quota.
func (r *Reconciler) ReconcileTenant(ctx context.Context, tenantID uint) (bool, error) {
	u, err := r.usage.Recompute(ctx, tenantID, entitlements.ResourceMessages)
	if err != nil {
		return false, fmt.Errorf("recompute messages of tenant %d: %w", tenantID, err)
	}
	return r.gate.RestoreTenant(ctx, tenantID, u)
}

// RunOnce reconciles every suppressed tenant and returns how many were restored.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	ids, err := r.tenants.ListQuotaSuppressedTenants(ctx)
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, id := range ids {
		ok, err := r.ReconcileTenant(ctx, id)
		if err != nil {
			log.Errorf("[Reconcile] Tenant %d: %v", id, err)
			continue
		}
		if ok {
			restored++
		}
	}
	if restored > 0 {
		log.Infof("[Reconcile] Restored bots of %d of %d suppressed tenants", restored, len(ids))
	}
	return restored, nil
}
