package controllers

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ChatFox/internal/pkg/billing"
	"github.com/ManuelReschke/ChatFox/internal/pkg/botgate"
	"github.com/ManuelReschke/ChatFox/internal/pkg/conversation"
	"github.com/ManuelReschke/ChatFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/ChatFox/internal/pkg/presence"
	"github.com/ManuelReschke/ChatFox/internal/pkg/provider"
	"github.com/ManuelReschke/ChatFox/internal/pkg/resources"
	"github.com/ManuelReschke/ChatFox/internal/pkg/usercontext"
)

var validate = validator.New()

func errorJSON(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

// respondError maps engine errors to HTTP answers. Quota errors carry the
// figures the client shows to the user.
func respondError(c *fiber.Ctx, err error) error {
	var quota *entitlements.QuotaExceededError
	var blocked *conversation.BlockedError
	var reqErr *provider.RequestError
	var vErrs validator.ValidationErrors

	switch {
	case errors.As(err, &quota):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":    "quota_exceeded",
			"message":  quota.Error(),
			"resource": quota.Resource,
			"current":  quota.Current,
			"max":      quota.Max,
		})
	case errors.Is(err, entitlements.ErrNoActivePlan):
		return errorJSON(c, fiber.StatusPaymentRequired, "no_active_plan", "An active plan is required")
	case errors.As(err, &blocked):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":             "conversation_blocked",
			"message":           blocked.Error(),
			"conversation_id":   blocked.ConversationID,
			"max_conversations": blocked.MaxConversations,
		})
	case errors.Is(err, provider.ErrProviderUnavailable), errors.As(err, &reqErr):
		return errorJSON(c, fiber.StatusBadGateway, "provider_error", err.Error())
	case errors.Is(err, conversation.ErrNotFound),
		errors.Is(err, resources.ErrCampaignNotFound),
		errors.Is(err, billing.ErrPlanNotFound),
		errors.Is(err, billing.ErrSubscriptionNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return errorJSON(c, fiber.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, resources.ErrAlreadyExists), errors.Is(err, resources.ErrCampaignSent), errors.Is(err, gorm.ErrDuplicatedKey):
		return errorJSON(c, fiber.StatusConflict, "conflict", err.Error())
	case errors.Is(err, billing.ErrPlanInactive):
		return errorJSON(c, fiber.StatusUnprocessableEntity, "plan_inactive", err.Error())
	case errors.Is(err, conversation.ErrInvalidMessage),
		errors.Is(err, botgate.ErrInvalidKey),
		errors.Is(err, presence.ErrInvalidOperator),
		errors.As(err, &vErrs):
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	log.Errorf("[API] %s %s failed: %v", c.Method(), c.Path(), err)
	return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Request failed")
}

// idParam parses a positive numeric route parameter.
func idParam(c *fiber.Ctx, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

var errInvalidBody = errors.New("invalid request body")

// bindJSON parses and validates a request body.
func bindJSON(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return errInvalidBody
	}
	return validate.Struct(dst)
}

func badRequest(c *fiber.Ctx, err error) error {
	return errorJSON(c, fiber.StatusBadRequest, "bad_request", err.Error())
}

func tenantOf(c *fiber.Ctx) uint {
	return usercontext.GetTenantID(c)
}
