package billing

import "time"

// AssignInput describes a plan assignment. Periods multiplies the plan's
// billing interval; StartsAt defaults to now.
type AssignInput struct {
	TenantID uint
	PlanID   uint
	StartsAt *time.Time
	Periods  int
	Source   string
}

// ChangeHook is invoked after a tenant's entitlement changed.
type ChangeHook func(tenantID uint)
