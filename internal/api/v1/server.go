package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// Pong is the ping response
type Pong struct {
	Ping string `json:"ping"`
}

// ServerInterface lists every operation of public/docs/v1/openapi.yml
type ServerInterface interface {
	GetPing(c *fiber.Ctx) error

	PostConversation(c *fiber.Ctx) error
	ListConversations(c *fiber.Ctx) error
	PostMessage(c *fiber.Ctx) error
	ListMessages(c *fiber.Ctx) error
	PostRead(c *fiber.Ctx) error

	GetBot(c *fiber.Ctx) error
	EnableBot(c *fiber.Ctx) error
	DisableBot(c *fiber.Ctx) error

	GetUsageSnapshot(c *fiber.Ctx) error
	GetUsage(c *fiber.Ctx) error

	PostInstance(c *fiber.Ctx) error
	PostContact(c *fiber.Ctx) error
	PostCampaign(c *fiber.Ctx) error
	SendCampaign(c *fiber.Ctx) error

	JoinPresence(c *fiber.Ctx) error
	HeartbeatPresence(c *fiber.Ctx) error
	LeavePresence(c *fiber.Ctx) error
	GetPresence(c *fiber.Ctx) error

	StreamEvents(c *fiber.Ctx) error
	PostProviderWebhook(c *fiber.Ctx) error

	ListPlans(c *fiber.Ctx) error
	PostPlan(c *fiber.Ctx) error
	PostSubscription(c *fiber.Ctx) error
	ListSubscriptions(c *fiber.Ctx) error
	CancelSubscription(c *fiber.Ctx) error
	GetTenantBots(c *fiber.Ctx) error
	GetQueueStats(c *fiber.Ctx) error
	PurgeQueue(c *fiber.Ctx) error
	PostReconcile(c *fiber.Ctx) error
}

// Route binds one documented operation to its handler
type Route struct {
	Method  string
	Path    string
	Handler fiber.Handler
	Public  bool
	Admin   bool
}

// Routes returns the operation table. Paths use fiber syntax.
func Routes(si ServerInterface) []Route {
	return []Route{
		{Method: fiber.MethodGet, Path: "/ping", Handler: si.GetPing, Public: true},
		{Method: fiber.MethodPost, Path: "/webhooks/provider/:tenant", Handler: si.PostProviderWebhook, Public: true},

		{Method: fiber.MethodPost, Path: "/conversations", Handler: si.PostConversation},
		{Method: fiber.MethodGet, Path: "/conversations", Handler: si.ListConversations},
		{Method: fiber.MethodPost, Path: "/conversations/:id/messages", Handler: si.PostMessage},
		{Method: fiber.MethodGet, Path: "/conversations/:id/messages", Handler: si.ListMessages},
		{Method: fiber.MethodPost, Path: "/conversations/:id/read", Handler: si.PostRead},

		{Method: fiber.MethodGet, Path: "/contacts/:contact/bot", Handler: si.GetBot},
		{Method: fiber.MethodPost, Path: "/contacts/:contact/bot\\:enable", Handler: si.EnableBot},
		{Method: fiber.MethodPost, Path: "/contacts/:contact/bot\\:disable", Handler: si.DisableBot},

		{Method: fiber.MethodGet, Path: "/usage", Handler: si.GetUsageSnapshot},
		{Method: fiber.MethodGet, Path: "/usage/:resource", Handler: si.GetUsage},

		{Method: fiber.MethodPost, Path: "/instances", Handler: si.PostInstance},
		{Method: fiber.MethodPost, Path: "/contacts", Handler: si.PostContact},
		{Method: fiber.MethodPost, Path: "/campaigns", Handler: si.PostCampaign},
		{Method: fiber.MethodPost, Path: "/campaigns/:id/send", Handler: si.SendCampaign},

		{Method: fiber.MethodPost, Path: "/conversations/:id/presence/join", Handler: si.JoinPresence},
		{Method: fiber.MethodPost, Path: "/conversations/:id/presence/heartbeat", Handler: si.HeartbeatPresence},
		{Method: fiber.MethodPost, Path: "/conversations/:id/presence/leave", Handler: si.LeavePresence},
		{Method: fiber.MethodGet, Path: "/conversations/:id/presence", Handler: si.GetPresence},

		{Method: fiber.MethodGet, Path: "/events", Handler: si.StreamEvents},

		{Method: fiber.MethodGet, Path: "/plans", Handler: si.ListPlans},
		{Method: fiber.MethodPost, Path: "/admin/plans", Handler: si.PostPlan, Admin: true},
		{Method: fiber.MethodPost, Path: "/admin/tenants/:tenant/subscriptions", Handler: si.PostSubscription, Admin: true},
		{Method: fiber.MethodGet, Path: "/admin/tenants/:tenant/subscriptions", Handler: si.ListSubscriptions, Admin: true},
		{Method: fiber.MethodDelete, Path: "/admin/tenants/:tenant/subscriptions/:id", Handler: si.CancelSubscription, Admin: true},
		{Method: fiber.MethodGet, Path: "/admin/tenants/:tenant/bots", Handler: si.GetTenantBots, Admin: true},
		{Method: fiber.MethodGet, Path: "/admin/queue", Handler: si.GetQueueStats, Admin: true},
		{Method: fiber.MethodDelete, Path: "/admin/queue/failed", Handler: si.PurgeQueue, Admin: true},
		{Method: fiber.MethodPost, Path: "/admin/reconcile", Handler: si.PostReconcile, Admin: true},
	}
}

// Middlewares guard the non-public operations
type Middlewares struct {
	Auth  fiber.Handler
	Admin fiber.Handler
}

// RegisterHandlers mounts every operation on the router.
func RegisterHandlers(router fiber.Router, si ServerInterface, mw Middlewares) {
	for _, r := range Routes(si) {
		handlers := make([]fiber.Handler, 0, 3)
		if !r.Public && mw.Auth != nil {
			handlers = append(handlers, mw.Auth)
		}
		if r.Admin && mw.Admin != nil {
			handlers = append(handlers, mw.Admin)
		}
		handlers = append(handlers, r.Handler)
		router.Add(r.Method, r.Path, handlers...)
	}
}
