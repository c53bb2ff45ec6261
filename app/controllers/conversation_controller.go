package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ChatFox/app/models"
	"github.com/ManuelReschke/ChatFox/internal/pkg/conversation"
	"github.com/ManuelReschke/ChatFox/internal/pkg/usercontext"
)

// ConversationController serves the operator inbox.
type ConversationController struct {
	conversations *conversation.Service
}

func NewConversationController(conversations *conversation.Service) *ConversationController {
	return &ConversationController{conversations: conversations}
}

type openConversationRequest struct {
	Contact     string `json:"contact" validate:"required,max=64"`
	Instance    string `json:"instance" validate:"required,max=100"`
	DisplayName string `json:"display_name" validate:"max=150"`
}

type appendMessageRequest struct {
	Direction     string `json:"direction" validate:"required,oneof=inbound outbound"`
	Author        string `json:"author" validate:"omitempty,oneof=operator bot"`
	Body          string `json:"body" validate:"required,max=65535"`
	ContentType   string `json:"content_type" validate:"omitempty,oneof=text image audio document"`
	CorrelationID string `json:"correlation_id" validate:"max=128"`
}

// HandleOpen returns the conversation with a contact, creating it when needed.
func (cc *ConversationController) HandleOpen(c *fiber.Ctx) error {
	var req openConversationRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err)
	}
	conv, created, err := cc.conversations.Open(c.UserContext(), tenantOf(c), req.Contact, req.Instance, req.DisplayName)
	if err != nil {
		return respondError(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"conversation": conv, "created": created})
}

// HandleList returns the visible conversations, optionally for one instance.
func (cc *ConversationController) HandleList(c *fiber.Ctx) error {
	res, err := cc.conversations.List(c.UserContext(), tenantOf(c), c.Query("instance"))
	if err != nil {
		return respondError(c, err)
	}
	if res.Items == nil {
		res.Items = []models.Conversation{}
	}
	return c.JSON(res)
}

// HandleAppend stores a message. Inbound messages of a blocked conversation
// are stored but answered with 409.
func (cc *ConversationController) HandleAppend(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid conversation id")
	}
	var req appendMessageRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err)
	}
	ctx := c.UserContext()
	tenantID := tenantOf(c)

	var res *conversation.AppendResult
	if req.Direction == models.DIRECTION_INBOUND {
		conv, _, err := cc.conversations.Get(ctx, tenantID, id)
		if err != nil {
			return respondError(c, err)
		}
		res, err = cc.conversations.AppendInbound(ctx, conversation.InboundMessage{
			TenantID:      tenantID,
			ContactID:     conv.ContactID,
			Instance:      conv.InstanceName,
			Body:          req.Body,
			ContentType:   req.ContentType,
			CorrelationID: req.CorrelationID,
		})
		if err != nil {
			return respondError(c, err)
		}
	} else {
		var operatorID *uint
		if opID := usercontext.GetOperatorID(c); opID != 0 {
			operatorID = &opID
		}
		var err error
		res, err = cc.conversations.SendOutbound(ctx, conversation.OutboundMessage{
			TenantID:       tenantID,
			ConversationID: id,
			OperatorID:     operatorID,
			Author:         req.Author,
			Body:           req.Body,
			ContentType:    req.ContentType,
		})
		if err != nil {
			return respondError(c, err)
		}
	}

	body := fiber.Map{
		"message":      res.Message,
		"unread_count": res.Conversation.UnreadCount,
		"duplicate":    res.Duplicate,
	}
	if res.Blocked {
		body["error"] = "conversation_blocked"
		body["message_stored"] = true
		return c.Status(fiber.StatusConflict).JSON(body)
	}
	return c.JSON(body)
}

// HandleMessages pages through the history, newest page first.
func (cc *ConversationController) HandleMessages(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid conversation id")
	}
	var before uint64
	if v := c.Query("before"); v != "" {
		var err error
		if before, err = strconv.ParseUint(v, 10, 64); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid before cursor")
		}
	}
	msgs, err := cc.conversations.Messages(c.UserContext(), tenantOf(c), id, uint(before), c.QueryInt("limit", conversation.DefaultHistoryLimit))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"items": msgs})
}

// HandleRead clears the unread counter.
func (cc *ConversationController) HandleRead(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid conversation id")
	}
	conv, err := cc.conversations.MarkRead(c.UserContext(), tenantOf(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"conversation": conv})
}
