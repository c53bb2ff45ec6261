package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ChatFox/app/controllers"
	"github.com/ManuelReschke/ChatFox/internal/pkg/engine"
)

// APIServer implements the ServerInterface by delegating to the controllers
type APIServer struct {
	conversations *controllers.ConversationController
	bots          *controllers.BotController
	usage         *controllers.UsageController
	resources     *controllers.ResourceController
	presence      *controllers.PresenceController
	events        *controllers.EventsController
	webhooks      *controllers.WebhookController
	admin         *controllers.AdminController
}

// NewAPIServer creates a new API server instance on top of the engine
func NewAPIServer(e *engine.Engine) *APIServer {
	return &APIServer{
		conversations: controllers.NewConversationController(e.Conversations),
		bots:          controllers.NewBotController(e.Bots),
		usage:         controllers.NewUsageController(e.Ledger),
		resources:     controllers.NewResourceController(e.Resources),
		presence:      controllers.NewPresenceController(e.Presence, e.Conversations),
		events:        controllers.NewEventsController(e.Bridge, e.Conversations),
		webhooks:      controllers.NewWebhookController(e.Conversations, e.Config.WebhookSecret),
		admin:         controllers.NewAdminController(e.Billing, e.Bots, e.Jobs),
	}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Pong{Ping: "pong"})
}

func (s *APIServer) PostConversation(c *fiber.Ctx) error {
	return s.conversations.HandleOpen(c)
}

func (s *APIServer) ListConversations(c *fiber.Ctx) error {
	return s.conversations.HandleList(c)
}

func (s *APIServer) PostMessage(c *fiber.Ctx) error {
	return s.conversations.HandleAppend(c)
}

func (s *APIServer) ListMessages(c *fiber.Ctx) error {
	return s.conversations.HandleMessages(c)
}

func (s *APIServer) PostRead(c *fiber.Ctx) error {
	return s.conversations.HandleRead(c)
}

func (s *APIServer) GetBot(c *fiber.Ctx) error {
	return s.bots.HandleStatus(c)
}

func (s *APIServer) EnableBot(c *fiber.Ctx) error {
	return s.bots.HandleEnable(c)
}

func (s *APIServer) DisableBot(c *fiber.Ctx) error {
	return s.bots.HandleDisable(c)
}

func (s *APIServer) GetUsageSnapshot(c *fiber.Ctx) error {
	return s.usage.HandleSnapshot(c)
}

func (s *APIServer) GetUsage(c *fiber.Ctx) error {
	return s.usage.HandleUsage(c)
}

func (s *APIServer) PostInstance(c *fiber.Ctx) error {
	return s.resources.HandleCreateInstance(c)
}

func (s *APIServer) PostContact(c *fiber.Ctx) error {
	return s.resources.HandleCreateContact(c)
}

func (s *APIServer) PostCampaign(c *fiber.Ctx) error {
	return s.resources.HandleCreateCampaign(c)
}

func (s *APIServer) SendCampaign(c *fiber.Ctx) error {
	return s.resources.HandleSendCampaign(c)
}

func (s *APIServer) JoinPresence(c *fiber.Ctx) error {
	return s.presence.HandleJoin(c)
}

func (s *APIServer) HeartbeatPresence(c *fiber.Ctx) error {
	return s.presence.HandleHeartbeat(c)
}

func (s *APIServer) LeavePresence(c *fiber.Ctx) error {
	return s.presence.HandleLeave(c)
}

func (s *APIServer) GetPresence(c *fiber.Ctx) error {
	return s.presence.HandleList(c)
}

func (s *APIServer) StreamEvents(c *fiber.Ctx) error {
	return s.events.HandleStream(c)
}

// PostProviderWebhook is authenticated by the payload signature instead of an API key.
func (s *APIServer) PostProviderWebhook(c *fiber.Ctx) error {
	return s.webhooks.HandleProviderEvent(c)
}

func (s *APIServer) ListPlans(c *fiber.Ctx) error {
	return s.admin.HandlePlans(c)
}

func (s *APIServer) PostPlan(c *fiber.Ctx) error {
	return s.admin.HandleCreatePlan(c)
}

func (s *APIServer) PostSubscription(c *fiber.Ctx) error {
	return s.admin.HandleAssign(c)
}

func (s *APIServer) ListSubscriptions(c *fiber.Ctx) error {
	return s.admin.HandleHistory(c)
}

func (s *APIServer) CancelSubscription(c *fiber.Ctx) error {
	return s.admin.HandleCancel(c)
}

func (s *APIServer) GetTenantBots(c *fiber.Ctx) error {
	return s.admin.HandleBots(c)
}

func (s *APIServer) GetQueueStats(c *fiber.Ctx) error {
	return s.admin.HandleQueueStats(c)
}

func (s *APIServer) PurgeQueue(c *fiber.Ctx) error {
	return s.admin.HandleQueuePurge(c)
}

func (s *APIServer) PostReconcile(c *fiber.Ctx) error {
	return s.admin.HandleReconcile(c)
}
