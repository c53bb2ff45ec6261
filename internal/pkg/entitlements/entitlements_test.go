package entitlements

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ChatFox/app/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		current, max int64
		want         Classification
	}{
		{current: 0, max: 10, want: Allowed},
		{current: 7, max: 10, want: Allowed},
		{current: 8, max: 10, want: NearLimit},
		{current: 9, max: 10, want: NearLimit},
		{current: 10, max: 10, want: Blocked},
		{current: 11, max: 10, want: Blocked},
		{current: 0, max: 0, want: Blocked},
		{current: 79, max: 100, want: Allowed},
		{current: 80, max: 100, want: NearLimit},
		{current: 99, max: 100, want: NearLimit},
	}

	for _, tt := range tests {
		if got := Classify(tt.current, tt.max); got != tt.want {
			t.Fatalf("Classify(%d, %d) = %q, want %q", tt.current, tt.max, got, tt.want)
		}
	}
}

func TestParseResource(t *testing.T) {
	r, err := ParseResource(" Messages ")
	require.NoError(t, err)
	assert.Equal(t, ResourceMessages, r)

	_, err = ParseResource("images")
	assert.Error(t, err)
}

func TestLimitFor(t *testing.T) {
	plan := &models.Plan{MaxInstances: 1, MaxContacts: 2, MaxCampaigns: 3, MaxConversations: 4, MaxMessages: 5}

	assert.Equal(t, int64(1), LimitFor(plan, ResourceInstances))
	assert.Equal(t, int64(2), LimitFor(plan, ResourceContacts))
	assert.Equal(t, int64(3), LimitFor(plan, ResourceCampaigns))
	assert.Equal(t, int64(4), LimitFor(plan, ResourceConversations))
	assert.Equal(t, int64(5), LimitFor(plan, ResourceMessages))
	assert.Equal(t, int64(0), LimitFor(nil, ResourceMessages))
}

func TestCheckCreate(t *testing.T) {
	err := CheckCreate(Usage{Resource: ResourceContacts, Current: 10, Max: 10, HasPlan: true})
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, int64(10), qe.Current)
	assert.Equal(t, int64(10), qe.Max)
	assert.True(t, IsQuotaExceeded(err))

	assert.NoError(t, CheckCreate(Usage{Resource: ResourceContacts, Current: 9, Max: 10, HasPlan: true}))
	assert.ErrorIs(t, CheckCreate(Usage{Resource: ResourceContacts}), ErrNoActivePlan)
}

func TestCheckCreate_CampaignsExempt(t *testing.T) {
	assert.NoError(t, CheckCreate(Usage{Resource: ResourceCampaigns, Current: 50, Max: 1, HasPlan: true}))
	assert.NoError(t, CheckCreate(Usage{Resource: ResourceCampaigns}))

	err := CheckCampaignSend(Usage{Resource: ResourceCampaigns, Current: 1, Max: 1, HasPlan: true})
	assert.True(t, IsQuotaExceeded(err))
}

func conversationAt(id uint, ts int64) models.Conversation {
	at := time.Unix(ts, 0)
	return models.Conversation{ID: id, LastMessageAt: &at}
}

func TestSelectVisible_MostRecentWins(t *testing.T) {
	base := []models.Conversation{
		conversationAt(1, 10),
		conversationAt(2, 9),
		conversationAt(3, 8),
		conversationAt(4, 7),
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		input := make([]models.Conversation, len(base))
		copy(input, base)
		rng.Shuffle(len(input), func(a, b int) { input[a], input[b] = input[b], input[a] })

		visible, blocked := SelectVisible(input, 2)
		require.Len(t, visible, 2)
		require.Len(t, blocked, 2)
		assert.Equal(t, int64(10), visible[0].LastMessageAt.Unix())
		assert.Equal(t, int64(9), visible[1].LastMessageAt.Unix())
		assert.Equal(t, int64(8), blocked[0].LastMessageAt.Unix())
		assert.Equal(t, int64(7), blocked[1].LastMessageAt.Unix())
	}
}

func TestSelectVisible_UnderLimit(t *testing.T) {
	input := []models.Conversation{conversationAt(1, 5), conversationAt(2, 6)}

	visible, blocked := SelectVisible(input, 10)
	assert.Len(t, visible, 2)
	assert.Empty(t, blocked)
	assert.Equal(t, uint(2), visible[0].ID)

	// the caller's slice is left untouched
	assert.Equal(t, uint(1), input[0].ID)
}

func TestSelectVisible_ZeroMaxBlocksAll(t *testing.T) {
	visible, blocked := SelectVisible([]models.Conversation{conversationAt(1, 5)}, 0)
	assert.Empty(t, visible)
	assert.Len(t, blocked, 1)
}

func TestSelectVisible_TiesAndEmptyConversations(t *testing.T) {
	created := time.Unix(100, 0)
	input := []models.Conversation{
		conversationAt(1, 50),
		conversationAt(2, 50),
		{ID: 3, CreatedAt: created},
	}

	visible, blocked := SelectVisible(input, 2)
	require.Len(t, visible, 2)
	assert.Equal(t, uint(3), visible[0].ID)
	assert.Equal(t, uint(2), visible[1].ID)
	assert.Equal(t, uint(1), blocked[0].ID)

	ids := VisibleIDs(input, 2)
	assert.Contains(t, ids, uint(3))
	assert.NotContains(t, ids, uint(1))
}

func TestUsageRemaining(t *testing.T) {
	assert.Equal(t, int64(3), Usage{Current: 7, Max: 10}.Remaining())
	assert.Equal(t, int64(0), Usage{Current: 12, Max: 10}.Remaining())
	assert.Equal(t, NearLimit, Usage{Current: 8, Max: 10}.Classification())
}
