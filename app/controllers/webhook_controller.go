package controllers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ChatFox/internal/pkg/conversation"
	"github.com/ManuelReschke/ChatFox/internal/pkg/inbound"
	"github.com/ManuelReschke/ChatFox/internal/pkg/provider"
)

const SignatureHeader = "X-Provider-Signature"

// WebhookController accepts provider delivery events over HTTP.
type WebhookController struct {
	conversations *conversation.Service
	secret        string
}

func NewWebhookController(conversations *conversation.Service, secret string) *WebhookController {
	return &WebhookController{conversations: conversations, secret: secret}
}

// HandleProviderEvent stores one inbound message. The tenant comes from the
// path, never from the payload. A blocked conversation still stores the
// message and the provider gets 200, since redelivery would not help.
func (wc *WebhookController) HandleProviderEvent(c *fiber.Ctx) error {
	tenantID, ok := idParam(c, "tenant")
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid tenant")
	}
	if wc.secret != "" && !provider.VerifyWebhookSignature(c.Body(), c.Get(SignatureHeader), wc.secret) {
		return errorJSON(c, fiber.StatusUnauthorized, "unauthorized", "Invalid signature")
	}

	var ev inbound.Event
	if err := json.Unmarshal(c.Body(), &ev); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid event payload")
	}
	ev.TenantID = tenantID

	res, err := wc.conversations.AppendInbound(c.UserContext(), ev.Message())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inbound.Ack{
		OK:             true,
		ConversationID: res.Message.ConversationID,
		MessageID:      res.Message.ID,
		Blocked:        res.Blocked,
		Duplicate:      res.Duplicate,
	})
}
