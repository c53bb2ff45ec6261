package usercontext

// Shared Locals keys used across controllers and middlewares
const (
	KeyOperatorContext = "OPERATOR_CONTEXT"
	KeyOperatorID      = "operator_id"
	KeyTenantID        = "tenant_id"
	KeyIsAdmin         = "isAdmin"
	KeyFromProtected   = "from_protected"
)
