package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ChatFox/internal/pkg/resources"
)

// ResourceController creates the quota-bounded tenant resources.
type ResourceController struct {
	resources *resources.Service
}

func NewResourceController(svc *resources.Service) *ResourceController {
	return &ResourceController{resources: svc}
}

type createInstanceRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type createContactRequest struct {
	Identifier string `json:"identifier" validate:"required,max=64"`
	Name       string `json:"name" validate:"max=150"`
}

type createCampaignRequest struct {
	Instance string `json:"instance" validate:"required,max=100"`
	Name     string `json:"name" validate:"required,max=150"`
	Body     string `json:"body" validate:"max=4096"`
}

func (rc *ResourceController) HandleCreateInstance(c *fiber.Ctx) error {
	var req createInstanceRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err)
	}
	inst, err := rc.resources.CreateInstance(c.UserContext(), tenantOf(c), req.Name)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(inst)
}

func (rc *ResourceController) HandleCreateContact(c *fiber.Ctx) error {
	var req createContactRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err)
	}
	contact, err := rc.resources.CreateContact(c.UserContext(), tenantOf(c), req.Identifier, req.Name)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(contact)
}

// HandleCreateCampaign stores a draft; drafts are not gated.
func (rc *ResourceController) HandleCreateCampaign(c *fiber.Ctx) error {
	var req createCampaignRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err)
	}
	campaign, err := rc.resources.CreateCampaign(c.UserContext(), tenantOf(c), req.Instance, req.Name, req.Body)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(campaign)
}

func (rc *ResourceController) HandleSendCampaign(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid campaign id")
	}
	campaign, err := rc.resources.SendCampaign(c.UserContext(), tenantOf(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(campaign)
}
