package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ChatFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/ChatFox/internal/pkg/usage"
)

// UsageController reports quota consumption.
type UsageController struct {
	ledger *usage.Ledger
}

func NewUsageController(ledger *usage.Ledger) *UsageController {
	return &UsageController{ledger: ledger}
}

func usageJSON(u entitlements.Usage) fiber.Map {
	return fiber.Map{
		"resource":       u.Resource,
		"current":        u.Current,
		"max":            u.Max,
		"remaining":      u.Remaining(),
		"classification": u.Classification(),
		"has_plan":       u.HasPlan,
	}
}

// HandleUsage returns the usage of one resource kind.
func (uc *UsageController) HandleUsage(c *fiber.Ctx) error {
	resource, err := entitlements.ParseResource(c.Params("resource"))
	if err != nil {
		return errorJSON(c, fiber.StatusNotFound, "not_found", err.Error())
	}
	u, err := uc.ledger.Usage(c.UserContext(), tenantOf(c), resource)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(usageJSON(u))
}

// HandleSnapshot returns the usage of every resource kind.
func (uc *UsageController) HandleSnapshot(c *fiber.Ctx) error {
	snap, err := uc.ledger.Snapshot(c.UserContext(), tenantOf(c))
	if err != nil {
		return respondError(c, err)
	}
	out := fiber.Map{}
	for r, u := range snap {
		out[string(r)] = usageJSON(u)
	}
	return c.JSON(out)
}
