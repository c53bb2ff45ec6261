package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ChatFox/internal/pkg/botgate"
	"github.com/ManuelReschke/ChatFox/internal/pkg/usercontext"
)

// BotController toggles the automated responder per contact.
type BotController struct {
	gate *botgate.Gate
}

func NewBotController(gate *botgate.Gate) *BotController {
	return &BotController{gate: gate}
}

func botKey(c *fiber.Ctx) botgate.Key {
	return botgate.Key{
		TenantID:  tenantOf(c),
		ContactID: strings.TrimSpace(c.Params("contact")),
		Instance:  strings.TrimSpace(c.Query("instance")),
	}
}

// HandleStatus returns the per-contact switch and the effective state.
func (bc *BotController) HandleStatus(c *fiber.Ctx) error {
	status, err := bc.gate.EffectiveEnabled(c.UserContext(), botKey(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(status)
}

// HandleEnable re-enables the responder. Enabling an enabled bot succeeds.
func (bc *BotController) HandleEnable(c *fiber.Ctx) error {
	key := botKey(c)
	if _, err := bc.gate.Enable(c.UserContext(), key); err != nil {
		return respondError(c, err)
	}
	return bc.HandleStatus(c)
}

// HandleDisable suppresses the responder. Disabling a disabled bot succeeds.
func (bc *BotController) HandleDisable(c *fiber.Ctx) error {
	key := botKey(c)
	var operatorID *uint
	if id := usercontext.GetOperatorID(c); id != 0 {
		operatorID = &id
	}
	reason := strings.TrimSpace(c.Query("reason", "manual"))
	if _, err := bc.gate.Disable(c.UserContext(), key, reason, operatorID); err != nil {
		return respondError(c, err)
	}
	return bc.HandleStatus(c)
}
