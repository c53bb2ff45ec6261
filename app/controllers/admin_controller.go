package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ChatFox/app/models"
	"github.com/ManuelReschke/ChatFox/internal/pkg/billing"
	"github.com/ManuelReschke/ChatFox/internal/pkg/botgate"
	"github.com/ManuelReschke/ChatFox/internal/pkg/jobqueue"
)

// AdminController manages plans, subscriptions and background work.
type AdminController struct {
	billing *billing.Service
	bots    *botgate.Gate
	jobs    *jobqueue.Manager
}

func NewAdminController(billingService *billing.Service, bots *botgate.Gate, jobs *jobqueue.Manager) *AdminController {
	return &AdminController{billing: billingService, bots: bots, jobs: jobs}
}

type createPlanRequest struct {
	Name             string `json:"name"`
	Interval         string `json:"interval"`
	PriceCents       int64  `json:"price_cents"`
	MaxInstances     int64  `json:"max_instances"`
	MaxContacts      int64  `json:"max_contacts"`
	MaxCampaigns     int64  `json:"max_campaigns"`
	MaxConversations int64  `json:"max_conversations"`
	MaxMessages      int64  `json:"max_messages"`
	Inactive         bool   `json:"inactive"`
}

type assignPlanRequest struct {
	PlanID   uint       `json:"plan_id" validate:"required"`
	StartsAt *time.Time `json:"starts_at"`
	Periods  int        `json:"periods" validate:"gte=0,lte=120"`
	Source   string     `json:"source" validate:"max=50"`
	Trial    bool       `json:"trial"`
}

// HandlePlans lists the purchasable catalog.
func (ac *AdminController) HandlePlans(c *fiber.Ctx) error {
	plans, err := ac.billing.Plans(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	if plans == nil {
		plans = []models.Plan{}
	}
	return c.JSON(fiber.Map{"items": plans})
}

func (ac *AdminController) HandleCreatePlan(c *fiber.Ctx) error {
	var req createPlanRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, errInvalidBody)
	}
	plan := &models.Plan{
		Name:             req.Name,
		Interval:         req.Interval,
		PriceCents:       req.PriceCents,
		MaxInstances:     req.MaxInstances,
		MaxContacts:      req.MaxContacts,
		MaxCampaigns:     req.MaxCampaigns,
		MaxConversations: req.MaxConversations,
		MaxMessages:      req.MaxMessages,
		IsActive:         !req.Inactive,
	}
	if err := ac.billing.CreatePlan(c.UserContext(), plan); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(plan)
}

// HandleAssign makes a plan the tenant's only active subscription.
func (ac *AdminController) HandleAssign(c *fiber.Ctx) error {
	tenantID, ok := idParam(c, "tenant")
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid tenant")
	}
	var req assignPlanRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err)
	}

	var sub *models.Subscription
	var err error
	if req.Trial {
		sub, err = ac.billing.StartTrial(c.UserContext(), tenantID, req.PlanID)
	} else {
		sub, err = ac.billing.AssignPlan(c.UserContext(), billing.AssignInput{
			TenantID: tenantID,
			PlanID:   req.PlanID,
			StartsAt: req.StartsAt,
			Periods:  req.Periods,
			Source:   req.Source,
		})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

func (ac *AdminController) HandleHistory(c *fiber.Ctx) error {
	tenantID, ok := idParam(c, "tenant")
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid tenant")
	}
	subs, err := ac.billing.History(c.UserContext(), tenantID)
	if err != nil {
		return respondError(c, err)
	}
	if subs == nil {
		subs = []models.Subscription{}
	}
	return c.JSON(fiber.Map{"items": subs})
}

func (ac *AdminController) HandleCancel(c *fiber.Ctx) error {
	tenantID, ok := idParam(c, "tenant")
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid tenant")
	}
	subID, ok := idParam(c, "id")
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid subscription id")
	}
	if err := ac.billing.Cancel(c.UserContext(), tenantID, subID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleBots shows the tenant kill switch and every per-contact suppression.
func (ac *AdminController) HandleBots(c *fiber.Ctx) error {
	tenantID, ok := idParam(c, "tenant")
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid tenant")
	}
	ctx := c.UserContext()
	suppressed, err := ac.bots.QuotaSuppressed(ctx, tenantID)
	if err != nil {
		return respondError(c, err)
	}
	rows, err := ac.bots.Suppressions(ctx, tenantID)
	if err != nil {
		return respondError(c, err)
	}
	if rows == nil {
		rows = []models.BotSuppression{}
	}
	return c.JSON(fiber.Map{"quota_suppressed": suppressed, "suppressions": rows})
}

// HandleQueueStats reports the background job queue.
func (ac *AdminController) HandleQueueStats(c *fiber.Ctx) error {
	stats, err := ac.jobs.Stats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"running": ac.jobs.IsRunning(),
		"queue":   ac.jobs.GetQueue() != nil,
		"stats":   stats,
	})
}

func (ac *AdminController) HandleQueuePurge(c *fiber.Ctx) error {
	n, err := ac.jobs.PurgeFailed(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"purged": n})
}

// HandleReconcile runs the quota reconciliation right away.
func (ac *AdminController) HandleReconcile(c *fiber.Ctx) error {
	n, err := ac.jobs.ReconcileNow(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"restored": n})
}
