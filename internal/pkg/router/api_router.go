package router

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	apiv1 "github.com/ManuelReschke/ChatFox/internal/api/v1"
	"github.com/ManuelReschke/ChatFox/internal/pkg/engine"
	"github.com/ManuelReschke/ChatFox/internal/pkg/env"
	"github.com/ManuelReschke/ChatFox/internal/pkg/middleware"
)

type ApiRouter struct {
	engine *engine.Engine
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(h.limiterConfig()))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	apiv1.RegisterHandlers(v1, apiv1.NewAPIServer(h.engine), apiv1.Middlewares{
		Auth:  middleware.APIKeyAuthMiddleware(h.engine.Repos.Operator),
		Admin: middleware.RequireAdmin,
	})
}

// limiterConfig counts per API key (or IP) and shares the counters between
// nodes through Redis when it is available.
func (h ApiRouter) limiterConfig() limiter.Config {
	cfg := limiter.Config{
		Max:        env.GetEnvInt("API_RATE_LIMIT", 300),
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if key := c.Get("X-API-Key"); key != "" {
				return "key:" + key
			}
			return c.IP()
		},
		// provider webhooks and the event stream are never throttled
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return strings.HasPrefix(p, "/api/v1/webhooks/") || p == "/api/v1/events"
		},
	}
	if h.engine.Redis == nil {
		return cfg
	}

	host, port := "localhost", 6379
	opts := h.engine.Redis.Options()
	if hst, p, err := net.SplitHostPort(opts.Addr); err == nil {
		host = hst
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}
	// database 1 keeps limiter keys apart from the cache and the job queue
	cfg.Storage = redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: opts.Password,
		Database: env.GetEnvInt("LIMITER_CACHE_DB", 1),
		Reset:    false,
	})
	log.Infof("[Router] API rate limit %d/min shared through Redis %s:%d", cfg.Max, host, port)
	return cfg
}

func NewApiRouter(e *engine.Engine) *ApiRouter {
	return &ApiRouter{engine: e}
}
