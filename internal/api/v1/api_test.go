package apiv1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ChatFox/app/models"
	"github.com/ManuelReschke/ChatFox/app/repository/memory"
	"github.com/ManuelReschke/ChatFox/internal/pkg/engine"
	"github.com/ManuelReschke/ChatFox/internal/pkg/middleware"
	"github.com/ManuelReschke/ChatFox/internal/pkg/provider"
)

const (
	tenant      = 5
	agentKey    = "agent-key"
	adminKey    = "admin-key"
	webhookKey  = "whsec"
	otherTenant = 6
)

type testAPI struct {
	app *fiber.App
	e   *engine.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()
	repos := memory.NewRepositories()
	for _, op := range []*models.Operator{
		{TenantID: tenant, Name: "Ana", Role: models.OPERATOR_ROLE_AGENT, Status: models.STATUS_ACTIVE, APIKeyHash: models.HashAPIKey(agentKey)},
		{TenantID: tenant, Name: "Root", Role: models.OPERATOR_ROLE_ADMIN, Status: models.STATUS_ACTIVE, APIKeyHash: models.HashAPIKey(adminKey)},
		{TenantID: otherTenant, Name: "Eve", Role: models.OPERATOR_ROLE_AGENT, Status: models.STATUS_ACTIVE, APIKeyHash: models.HashAPIKey("other-key")},
	} {
		require.NoError(t, repos.Operator.Create(ctx, op))
	}

	e := engine.New(engine.Config{
		Storage:         engine.StorageMemory,
		PresenceTimeout: 45 * time.Second,
		WebhookSecret:   webhookKey,
	}, engine.Deps{Repos: repos})

	app := fiber.New()
	RegisterHandlers(app.Group("/api/v1"), NewAPIServer(e), Middlewares{
		Auth:  middleware.APIKeyAuthMiddleware(repos.Operator),
		Admin: middleware.RequireAdmin,
	})
	return &testAPI{app: app, e: e}
}

func (a *testAPI) do(t *testing.T, method, path, key string, body interface{}, headers ...string) (int, map[string]interface{}) {
	t.Helper()
	var payload []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		payload = b
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, bytes.NewReader(payload))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

// subscribe creates a plan through the admin API and assigns it to the tenant.
func (a *testAPI) subscribe(t *testing.T, plan map[string]interface{}) {
	t.Helper()
	status, created := a.do(t, "POST", "/admin/plans", adminKey, plan)
	require.Equal(t, fiber.StatusCreated, status, created)
	status, sub := a.do(t, "POST", fmt.Sprintf("/admin/tenants/%d/subscriptions", tenant), adminKey, map[string]interface{}{
		"plan_id": created["id"],
	})
	require.Equal(t, fiber.StatusCreated, status, sub)
}

func (a *testAPI) deliver(t *testing.T, id, from, body string) (int, map[string]interface{}) {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{"id": id, "instance": "main", "from": from, "body": body})
	require.NoError(t, err)
	return a.do(t, "POST", fmt.Sprintf("/webhooks/provider/%d", tenant), "", payload,
		"X-Provider-Signature", provider.SignWebhook(payload, webhookKey))
}

func TestPingAndAuth(t *testing.T) {
	a := newTestAPI(t)

	status, body := a.do(t, "GET", "/ping", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "pong", body["ping"])

	status, _ = a.do(t, "GET", "/conversations", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = a.do(t, "POST", "/admin/plans", agentKey, map[string]interface{}{"name": "Pro"})
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestConversationQuotaOverHTTP(t *testing.T) {
	a := newTestAPI(t)
	a.subscribe(t, map[string]interface{}{"name": "Solo", "interval": "monthly", "max_conversations": 1, "max_messages": 100})

	status, first := a.deliver(t, "wamid-1", "+111", "hello")
	require.Equal(t, fiber.StatusOK, status, first)
	status, second := a.deliver(t, "wamid-2", "+222", "hi there")
	require.Equal(t, fiber.StatusOK, status, second)
	assert.Equal(t, true, first["ok"])
	hidden := uint(first["conversation_id"].(float64))
	visible := uint(second["conversation_id"].(float64))

	status, list := a.do(t, "GET", "/conversations", agentKey, nil)
	require.Equal(t, fiber.StatusOK, status)
	items := list["items"].([]interface{})
	require.Len(t, items, 1)
	assert.EqualValues(t, visible, items[0].(map[string]interface{})["id"])
	assert.EqualValues(t, 1, list["blocked_count"])
	assert.EqualValues(t, 1, list["max_conversations"])

	t.Run("blocked conversation rejects replies", func(t *testing.T) {
		status, body := a.do(t, "POST", fmt.Sprintf("/conversations/%d/messages", hidden), agentKey, map[string]interface{}{
			"direction": "outbound", "body": "sorry",
		})
		assert.Equal(t, fiber.StatusConflict, status)
		assert.Equal(t, "conversation_blocked", body["error"])

		status, _ = a.do(t, "GET", fmt.Sprintf("/conversations/%d/messages", hidden), agentKey, nil)
		assert.Equal(t, fiber.StatusConflict, status)
	})

	t.Run("blocked conversation still stores inbound", func(t *testing.T) {
		status, body := a.do(t, "POST", fmt.Sprintf("/conversations/%d/messages", hidden), agentKey, map[string]interface{}{
			"direction": "inbound", "body": "anyone?",
		})
		assert.Equal(t, fiber.StatusConflict, status)
		assert.Equal(t, true, body["message_stored"])
		assert.NotNil(t, body["message"])
	})

	t.Run("visible conversation accepts replies", func(t *testing.T) {
		status, body := a.do(t, "POST", fmt.Sprintf("/conversations/%d/messages", visible), agentKey, map[string]interface{}{
			"direction": "outbound", "body": "welcome",
		})
		require.Equal(t, fiber.StatusOK, status, body)

		status, history := a.do(t, "GET", fmt.Sprintf("/conversations/%d/messages", visible), agentKey, nil)
		require.Equal(t, fiber.StatusOK, status)
		assert.Len(t, history["items"], 2)
	})

	t.Run("operator reply disabled the bot", func(t *testing.T) {
		status, bot := a.do(t, "GET", "/contacts/222/bot?instance=main", agentKey, nil)
		require.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, false, bot["enabled"])

		status, bot = a.do(t, "POST", "/contacts/222/bot:enable?instance=main", agentKey, nil)
		require.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, true, bot["enabled"])
		assert.Equal(t, true, bot["effective"])
	})

	t.Run("other tenants cannot see the conversation", func(t *testing.T) {
		status, _ := a.do(t, "GET", fmt.Sprintf("/conversations/%d/messages", visible), "other-key", nil)
		assert.Equal(t, fiber.StatusNotFound, status)
	})
}

func TestWebhookSignature(t *testing.T) {
	a := newTestAPI(t)
	payload := []byte(`{"id":"x","instance":"main","from":"1","body":"hi"}`)

	status, _ := a.do(t, "POST", fmt.Sprintf("/webhooks/provider/%d", tenant), "", payload, "X-Provider-Signature", "sha256=00")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = a.do(t, "POST", "/webhooks/provider/abc", "", payload)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestWebhookRedeliveryIsStoredOnce(t *testing.T) {
	a := newTestAPI(t)
	a.subscribe(t, map[string]interface{}{"name": "Team", "interval": "monthly", "max_conversations": 5, "max_messages": 100})

	status, first := a.deliver(t, "wamid-9", "333", "once")
	require.Equal(t, fiber.StatusOK, status)
	status, again := a.deliver(t, "wamid-9", "333", "once")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, first["message_id"], again["message_id"])
	assert.Equal(t, true, again["duplicate"])

	status, usage := a.do(t, "GET", "/usage/messages", agentKey, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, usage["current"])
	assert.EqualValues(t, 100, usage["max"])
	assert.Equal(t, "allowed", usage["classification"])
	assert.Equal(t, true, usage["has_plan"])
}

func TestResourceQuotaOverHTTP(t *testing.T) {
	a := newTestAPI(t)

	status, body := a.do(t, "POST", "/instances", agentKey, map[string]interface{}{"name": "main"})
	assert.Equal(t, fiber.StatusPaymentRequired, status)
	assert.Equal(t, "no_active_plan", body["error"])

	a.subscribe(t, map[string]interface{}{"name": "Starter", "interval": "monthly", "max_instances": 1, "max_campaigns": 1})

	status, _ = a.do(t, "POST", "/instances", agentKey, map[string]interface{}{"name": "main"})
	assert.Equal(t, fiber.StatusCreated, status)
	status, body = a.do(t, "POST", "/instances", agentKey, map[string]interface{}{"name": "second"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "quota_exceeded", body["error"])
	assert.EqualValues(t, 1, body["current"])
	assert.EqualValues(t, 1, body["max"])

	// drafts are free, only sending counts
	var ids []interface{}
	for i := 0; i < 2; i++ {
		status, c := a.do(t, "POST", "/campaigns", agentKey, map[string]interface{}{"instance": "main", "name": fmt.Sprintf("promo %d", i)})
		require.Equal(t, fiber.StatusCreated, status)
		ids = append(ids, c["id"])
	}
	status, _ = a.do(t, "POST", fmt.Sprintf("/campaigns/%v/send", ids[0]), agentKey, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = a.do(t, "POST", fmt.Sprintf("/campaigns/%v/send", ids[1]), agentKey, nil)
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = a.do(t, "GET", "/usage/bogus", agentKey, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestPresenceOverHTTP(t *testing.T) {
	a := newTestAPI(t)
	status, open := a.do(t, "POST", "/conversations", agentKey, map[string]interface{}{"contact": "444", "instance": "main"})
	require.Equal(t, fiber.StatusCreated, status, open)
	id := open["conversation"].(map[string]interface{})["id"]

	status, snap := a.do(t, "POST", fmt.Sprintf("/conversations/%v/presence/join", id), agentKey, map[string]interface{}{"role": "primary"})
	require.Equal(t, fiber.StatusOK, status, snap)
	assert.Len(t, snap["collaborators"], 1)

	status, snap = a.do(t, "POST", fmt.Sprintf("/conversations/%v/presence/heartbeat", id), agentKey, map[string]interface{}{"typing": true})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []interface{}{"Ana"}, snap["typing"])

	status, _ = a.do(t, "POST", fmt.Sprintf("/conversations/%v/presence/leave", id), agentKey, nil)
	assert.Equal(t, fiber.StatusNoContent, status)

	status, snap = a.do(t, "GET", fmt.Sprintf("/conversations/%v/presence", id), agentKey, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, snap["collaborators"])

	status, _ = a.do(t, "GET", fmt.Sprintf("/conversations/%v/presence", id), "other-key", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}
