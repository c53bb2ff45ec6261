package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ChatFox/internal/pkg/engine"
)

// Router installs a group of routes on the app
type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App, e *engine.Engine) {
	// operational endpoints first so they stay outside the API rate limit
	setup(app, NewHttpRouter(e), NewApiRouter(e))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
