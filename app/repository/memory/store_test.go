package memory

import (
	"context"
	"testing"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestConversationGetOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()

	first := &models.Conversation{TenantID: 1, ContactID: "5511999", InstanceName: "main"}
	created, err := repos.Conversation.GetOrCreate(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	second := &models.Conversation{TenantID: 1, ContactID: "5511999", InstanceName: "main"}
	created, err = repos.Conversation.GetOrCreate(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	other := &models.Conversation{TenantID: 2, ContactID: "5511999", InstanceName: "main"}
	created, err = repos.Conversation.GetOrCreate(ctx, other)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestApplyMessageNeverMovesPreviewBackwards(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()
	conv := &models.Conversation{TenantID: 1, ContactID: "c", InstanceName: "i"}
	_, err := repos.Conversation.GetOrCreate(ctx, conv)
	require.NoError(t, err)

	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	newer := &models.Message{ConversationID: conv.ID, Direction: models.DIRECTION_INBOUND, Body: "newer", CreatedAt: t0.Add(time.Minute)}
	older := &models.Message{ConversationID: conv.ID, Direction: models.DIRECTION_INBOUND, Body: "older", CreatedAt: t0}

	require.NoError(t, repos.Conversation.ApplyMessage(ctx, newer))
	require.NoError(t, repos.Conversation.ApplyMessage(ctx, older))

	got, err := repos.Conversation.GetByID(ctx, 1, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "newer", got.LastMessageText)
	assert.True(t, got.LastMessageAt.Equal(t0.Add(time.Minute)))
	assert.Equal(t, int64(2), got.UnreadCount)
}

func TestSetQuotaSuppressedIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()
	now := time.Now()

	changed, err := repos.Bot.SetQuotaSuppressed(ctx, 7, true, now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repos.Bot.SetQuotaSuppressed(ctx, 7, true, now)
	require.NoError(t, err)
	assert.False(t, changed)

	ids, err := repos.Bot.ListQuotaSuppressedTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint{7}, ids)

	changed, err = repos.Bot.SetQuotaSuppressed(ctx, 7, false, now)
	require.NoError(t, err)
	assert.True(t, changed)

	state, err := repos.Bot.GetTenantState(ctx, 7)
	require.NoError(t, err)
	assert.False(t, state.QuotaSuppressed)
	assert.NotNil(t, state.RestoredAt)
}

func TestSuppressionInsertCollapsesDuplicates(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()

	created, err := repos.Bot.InsertSuppression(ctx, &models.BotSuppression{TenantID: 1, ContactID: "c", InstanceName: "i"})
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repos.Bot.InsertSuppression(ctx, &models.BotSuppression{TenantID: 1, ContactID: "c", InstanceName: "i"})
	require.NoError(t, err)
	assert.False(t, created)

	rows, err := repos.Bot.ListSuppressions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	deleted, err := repos.Bot.DeleteSuppression(ctx, 1, "c", "i")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = repos.Bot.DeleteSuppression(ctx, 1, "c", "i")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestAssignReplacesActiveSubscription(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()
	now := time.Now()

	plan := &models.Plan{Name: "Starter", MaxMessages: 100, IsActive: true}
	require.NoError(t, repos.Plan.Create(ctx, plan))

	first := &models.Subscription{TenantID: 3, PlanID: plan.ID, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)}
	require.NoError(t, repos.Subscription.Assign(ctx, first))
	second := &models.Subscription{TenantID: 3, PlanID: plan.ID, StartsAt: now.Add(-time.Minute), EndsAt: now.Add(time.Hour)}
	require.NoError(t, repos.Subscription.Assign(ctx, second))

	active, err := repos.Subscription.GetActive(ctx, 3, now)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.Equal(t, int64(100), active.Plan.MaxMessages)

	old, err := repos.Subscription.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusInactive, old.Status)

	_, err = repos.Subscription.GetActive(ctx, 3, now.Add(2*time.Hour))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMessageHistoryPaging(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repos.Message.Create(ctx, &models.Message{
			TenantID: 1, ConversationID: 9, Direction: models.DIRECTION_INBOUND,
			Body: string(rune('a' + i)), CreatedAt: t0.Add(time.Duration(i) * time.Second),
		}))
	}

	page, err := repos.Message.ListByConversation(ctx, 9, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "d", page[0].Body)
	assert.Equal(t, "e", page[1].Body)

	page, err = repos.Message.ListByConversation(ctx, 9, page[0].ID, 10)
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.Equal(t, "a", page[0].Body)

	n, err := repos.Message.MarkInboundRead(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	unread, err := repos.Message.CountUnreadInbound(ctx, 9)
	require.NoError(t, err)
	assert.Zero(t, unread)
}
