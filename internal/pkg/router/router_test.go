package router

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ChatFox/app/repository/memory"
	"github.com/ManuelReschke/ChatFox/internal/pkg/engine"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	e := engine.New(engine.Config{Storage: engine.StorageMemory, PresenceTimeout: 45 * time.Second}, engine.Deps{Repos: memory.NewRepositories()})
	app := fiber.New()
	InstallRouter(app, e)
	return app
}

func TestOperationalRoutes(t *testing.T) {
	app := newApp(t)

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{"/healthz", fiber.StatusOK, `"redis":"disabled"`},
		{"/metrics", fiber.StatusOK, "go_goroutines"},
		{"/monitor", fiber.StatusUnauthorized, "unauthorized"},
		{"/api/", fiber.StatusOK, "Hello from api"},
		{"/api/v1/ping", fiber.StatusOK, "pong"},
		{"/api/v1/conversations", fiber.StatusUnauthorized, "Missing API key"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, string(body), tt.contains)
		})
	}
}
