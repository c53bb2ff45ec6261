package entitlements

import (
	"errors"
	"fmt"
)

// ErrNoActivePlan is returned for quota-gated actions of a tenant without an
// active, unexpired subscription. It is distinct from a plan whose allowance
// for the resource is zero.
var ErrNoActivePlan = errors.New("no active plan")

// QuotaExceededError reports a blocked action together with the figures the
// caller shows to the user.
type QuotaExceededError struct {
	Resource Resource
	Current  int64
	Max      int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s quota exceeded (%d/%d)", e.Resource, e.Current, e.Max)
}

// IsQuotaExceeded reports whether err carries a QuotaExceededError.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
