package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	apiv1 "github.com/ManuelReschke/ChatFox/internal/api/v1"
	"github.com/ManuelReschke/ChatFox/internal/pkg/engine"
	"github.com/ManuelReschke/ChatFox/internal/pkg/env"
	"github.com/ManuelReschke/ChatFox/internal/pkg/router"
)

func main() {
	app, e := NewApplication()
	if err := e.Start(); err != nil {
		log.Fatalf("[Main] Starting engine failed: %v", err)
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("[Main] Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Errorf("[Main] HTTP shutdown: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	e.Stop()
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *engine.Engine) {
	env.SetupEnvFile()

	// repo root or cmd/chatfox
	docPath := ""
	for _, base := range []string{"./", "../../"} {
		if _, err := os.Stat(base + apiv1.DocumentPath); err == nil {
			docPath = base + apiv1.DocumentPath
			break
		}
	}
	if docPath == "" {
		panic("could not find " + apiv1.DocumentPath)
	}

	doc, err := apiv1.LoadDocument(docPath)
	if err != nil {
		panic(err)
	}
	log.Infof("[Main] Serving %s %s", doc.Info.Title, doc.Info.Version)

	e := engine.Setup(engine.ConfigFromEnv())

	app := fiber.New(fiber.Config{
		AppName:   "ChatFox",
		BodyLimit: 4 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: docPath,
		Path:     "v1",
	}))

	// ROUTER
	router.InstallRouter(app, e)

	return app, e
}
