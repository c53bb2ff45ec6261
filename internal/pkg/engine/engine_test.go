package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ChatFox/app/models"
	"github.com/ManuelReschke/ChatFox/app/repository/memory"
	"github.com/ManuelReschke/ChatFox/internal/pkg/billing"
	"github.com/ManuelReschke/ChatFox/internal/pkg/conversation"
	"github.com/ManuelReschke/ChatFox/internal/pkg/notify"
)

func testConfig() Config {
	return Config{
		Storage:           StorageMemory,
		PresenceTimeout:   45 * time.Second,
		Workers:           1,
		ReconcileInterval: time.Hour,
		PruneInterval:     time.Hour,
	}
}

func TestUpgradeRestoresBotsAndConversations(t *testing.T) {
	ctx := context.Background()
	e := New(testConfig(), Deps{Repos: memory.NewRepositories()})
	const tenant uint = 9

	sub := e.Bridge.Subscribe(16, notify.TenantTopic(tenant))
	defer sub.Close()

	res, err := e.Conversations.AppendInbound(ctx, conversation.InboundMessage{TenantID: tenant, ContactID: "5511", Instance: "main", Body: "hi"})
	require.NoError(t, err)
	assert.True(t, res.Blocked)

	suppressed, err := e.Bots.QuotaSuppressed(ctx, tenant)
	require.NoError(t, err)
	assert.True(t, suppressed)

	plan := &models.Plan{Name: "Pro", Interval: models.PlanIntervalMonthly, MaxConversations: 5, MaxMessages: 100, IsActive: true}
	require.NoError(t, e.Billing.CreatePlan(ctx, plan))
	_, err = e.Billing.AssignPlan(ctx, billing.AssignInput{TenantID: tenant, PlanID: plan.ID})
	require.NoError(t, err)

	suppressed, err = e.Bots.QuotaSuppressed(ctx, tenant)
	require.NoError(t, err)
	assert.False(t, suppressed)

	list, err := e.Conversations.List(ctx, tenant, "")
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
	assert.Zero(t, list.BlockedCount)

	var types []string
	for len(sub.C) > 0 {
		types = append(types, (<-sub.C).Type)
	}
	assert.Contains(t, types, notify.EventBotsDisabledAll)
	assert.Contains(t, types, notify.EventBotsRestored)
}

func TestStartStopWithoutRedisOrNATS(t *testing.T) {
	e := New(testConfig(), Deps{Repos: memory.NewRepositories()})
	require.NoError(t, e.Start())
	assert.True(t, e.Jobs.IsRunning())
	assert.Nil(t, e.Jobs.GetQueue())
	e.Stop()
	assert.False(t, e.Jobs.IsRunning())
}
