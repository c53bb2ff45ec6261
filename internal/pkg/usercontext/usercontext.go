package usercontext

import "github.com/gofiber/fiber/v2"

// OperatorContext identifies the operator behind an API request and the
// tenant it acts for
type OperatorContext struct {
	OperatorID    uint   `json:"operator_id"`
	TenantID      uint   `json:"tenant_id"`
	Name          string `json:"name"`
	Authenticated bool   `json:"authenticated"`
	IsAdmin       bool   `json:"is_admin"`
}

// Set stores the operator context on the request
func Set(c *fiber.Ctx, oc OperatorContext) {
	c.Locals(KeyOperatorContext, oc)
	c.Locals(KeyFromProtected, oc.Authenticated)
	c.Locals(KeyOperatorID, oc.OperatorID)
	c.Locals(KeyTenantID, oc.TenantID)
	c.Locals(KeyIsAdmin, oc.IsAdmin)
}

// Get retrieves the operator context from fiber context
// Returns an unauthenticated context if none is set
func Get(c *fiber.Ctx) OperatorContext {
	if oc, ok := c.Locals(KeyOperatorContext).(OperatorContext); ok {
		return oc
	}
	return OperatorContext{}
}

// IsAuthenticated checks if the request carries a valid operator key
func IsAuthenticated(c *fiber.Ctx) bool {
	return Get(c).Authenticated
}

// IsAdmin checks if the current operator is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return Get(c).IsAdmin
}

// GetTenantID returns the tenant of the current operator, or 0
func GetTenantID(c *fiber.Ctx) uint {
	return Get(c).TenantID
}

// GetOperatorID returns the current operator's ID, or 0
func GetOperatorID(c *fiber.Ctx) uint {
	return Get(c).OperatorID
}
