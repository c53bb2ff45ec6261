package router

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuelReschke/ChatFox/internal/pkg/engine"
	"github.com/ManuelReschke/ChatFox/internal/pkg/middleware"
)

// HttpRouter serves the operational endpoints: health, metrics and the
// fiber monitor.
type HttpRouter struct {
	engine *engine.Engine
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", h.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/monitor",
		middleware.APIKeyAuthMiddleware(h.engine.Repos.Operator),
		middleware.RequireAdmin,
		monitor.New(monitor.Config{Title: "ChatFox Monitor"}))
}

// handleHealth reports the state of the optional dependencies. Only a
// failing Redis makes the node unhealthy once it was configured.
func (h HttpRouter) handleHealth(c *fiber.Ctx) error {
	status := fiber.Map{
		"status":    "ok",
		"jobs":      h.engine.Jobs.IsRunning(),
		"redis":     "disabled",
		"storage":   h.engine.Config.Storage,
		"timestamp": time.Now().UTC(),
	}
	if h.engine.Redis != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.engine.Redis.Ping(ctx).Err(); err != nil {
			status["status"] = "degraded"
			status["redis"] = err.Error()
			return c.Status(fiber.StatusServiceUnavailable).JSON(status)
		}
		status["redis"] = "ok"
	}
	return c.JSON(status)
}

func NewHttpRouter(e *engine.Engine) *HttpRouter {
	return &HttpRouter{engine: e}
}
