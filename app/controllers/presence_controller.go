package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ChatFox/internal/pkg/conversation"
	"github.com/ManuelReschke/ChatFox/internal/pkg/presence"
	"github.com/ManuelReschke/ChatFox/internal/pkg/usercontext"
)

// PresenceController reports who is looking at a conversation.
type PresenceController struct {
	hub           *presence.Hub
	conversations *conversation.Service
}

func NewPresenceController(hub *presence.Hub, conversations *conversation.Service) *PresenceController {
	return &PresenceController{hub: hub, conversations: conversations}
}

type joinRequest struct {
	Role string `json:"role" validate:"omitempty,oneof=primary collaborator observer"`
}

type heartbeatRequest struct {
	Typing bool `json:"typing"`
}

// conversationOf resolves the conversation id and checks it belongs to the
// tenant of the operator.
func (pc *PresenceController) conversationOf(c *fiber.Ctx) (uint, error) {
	id, ok := idParam(c, "id")
	if !ok {
		return 0, conversation.ErrNotFound
	}
	if _, _, err := pc.conversations.Get(c.UserContext(), tenantOf(c), id); err != nil {
		return 0, err
	}
	return id, nil
}

func operatorOf(c *fiber.Ctx) presence.Operator {
	oc := usercontext.Get(c)
	return presence.Operator{ID: oc.OperatorID, Name: oc.Name}
}

func (pc *PresenceController) HandleJoin(c *fiber.Ctx) error {
	id, err := pc.conversationOf(c)
	if err != nil {
		return respondError(c, err)
	}
	var req joinRequest
	if len(c.Body()) > 0 {
		if err := bindJSON(c, &req); err != nil {
			return badRequest(c, err)
		}
	}
	snap, err := pc.hub.Join(c.UserContext(), tenantOf(c), id, operatorOf(c), presence.ParseRole(req.Role))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(snap)
}

func (pc *PresenceController) HandleHeartbeat(c *fiber.Ctx) error {
	id, err := pc.conversationOf(c)
	if err != nil {
		return respondError(c, err)
	}
	var req heartbeatRequest
	if len(c.Body()) > 0 {
		if err := bindJSON(c, &req); err != nil {
			return badRequest(c, err)
		}
	}
	snap, err := pc.hub.Heartbeat(c.UserContext(), tenantOf(c), id, operatorOf(c), req.Typing)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(snap)
}

func (pc *PresenceController) HandleLeave(c *fiber.Ctx) error {
	id, err := pc.conversationOf(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := pc.hub.Leave(c.UserContext(), tenantOf(c), id, usercontext.GetOperatorID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleList returns fresh collaborators and who is typing.
func (pc *PresenceController) HandleList(c *fiber.Ctx) error {
	id, err := pc.conversationOf(c)
	if err != nil {
		return respondError(c, err)
	}
	snap, err := pc.hub.ListActive(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(snap)
}
