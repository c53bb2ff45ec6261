package middleware

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ChatFox/app/models"
	"github.com/ManuelReschke/ChatFox/app/repository/memory"
	"github.com/ManuelReschke/ChatFox/internal/pkg/usercontext"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	repos := memory.NewRepositories()
	require.NoError(t, repos.Operator.Create(context.Background(), &models.Operator{
		TenantID: 5, Name: "Ana", Role: models.OPERATOR_ROLE_AGENT, Status: models.STATUS_ACTIVE, APIKeyHash: models.HashAPIKey("agent-key"),
	}))
	require.NoError(t, repos.Operator.Create(context.Background(), &models.Operator{
		TenantID: 5, Name: "Root", Role: models.OPERATOR_ROLE_ADMIN, Status: models.STATUS_ACTIVE, APIKeyHash: models.HashAPIKey("admin-key"),
	}))

	app := fiber.New()
	app.Use(APIKeyAuthMiddleware(repos.Operator))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.JSON(usercontext.Get(c))
	})
	app.Get("/admin", RequireAdmin, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestAPIKeyAuth(t *testing.T) {
	app := newApp(t)

	tests := []struct {
		name   string
		path   string
		header string
		value  string
		status int
	}{
		{"missing key", "/me", "", "", fiber.StatusUnauthorized},
		{"unknown key", "/me", "X-API-Key", "nope", fiber.StatusUnauthorized},
		{"valid key", "/me", "X-API-Key", "agent-key", fiber.StatusOK},
		{"bearer token", "/me", "Authorization", "Bearer agent-key", fiber.StatusOK},
		{"agent on admin route", "/admin", "X-API-Key", "agent-key", fiber.StatusForbidden},
		{"admin on admin route", "/admin", "X-API-Key", "admin-key", fiber.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
