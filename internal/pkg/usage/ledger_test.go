package usage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
	"github.com/ManuelReschke/ChatFox/app/repository"
	"github.com/ManuelReschke/ChatFox/app/repository/memory"
	"github.com/ManuelReschke/ChatFox/internal/pkg/billing"
	"github.com/ManuelReschke/ChatFox/internal/pkg/entitlements"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repos   *repository.Repositories
	billing *billing.Service
	plan    *models.Plan
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := memory.NewRepositories()
	svc := billing.NewServiceFromRepositories(repos)
	plan := &models.Plan{
		Name: "Pro", Interval: models.PlanIntervalMonthly, IsActive: true,
		MaxInstances: 2, MaxContacts: 10, MaxCampaigns: 1, MaxConversations: 5, MaxMessages: 3,
	}
	require.NoError(t, svc.CreatePlan(context.Background(), plan))
	return &fixture{repos: repos, billing: svc, plan: plan}
}

func (f *fixture) inbound(t *testing.T, tenant uint, at time.Time) {
	t.Helper()
	require.NoError(t, f.repos.Message.Create(context.Background(), &models.Message{
		TenantID: tenant, ConversationID: 1, Direction: models.DIRECTION_INBOUND, Body: "hi", CreatedAt: at,
	}))
}

func TestUsageWithoutPlanIsHardLockout(t *testing.T) {
	f := newFixture(t)
	ledger := NewLedger(f.repos.Usage, f.billing, 0)

	for _, r := range entitlements.AllResources {
		u, err := ledger.Usage(context.Background(), 1, r)
		require.NoError(t, err)
		assert.False(t, u.HasPlan, r)
		assert.Zero(t, u.Max, r)
		assert.Equal(t, entitlements.Blocked, u.Classification(), r)
	}
}

func TestMessagesCountedFromPeriodStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := time.Now().Add(-time.Hour)
	_, err := f.billing.AssignPlan(ctx, billing.AssignInput{TenantID: 1, PlanID: f.plan.ID, StartsAt: &start})
	require.NoError(t, err)

	f.inbound(t, 1, start.Add(-time.Minute)) // previous period
	f.inbound(t, 1, start.Add(time.Minute))
	f.inbound(t, 1, start.Add(2*time.Minute))
	f.inbound(t, 2, start.Add(2*time.Minute)) // other tenant
	require.NoError(t, f.repos.Message.Create(ctx, &models.Message{
		TenantID: 1, ConversationID: 1, Direction: models.DIRECTION_OUTBOUND, CreatedAt: start.Add(3 * time.Minute),
	}))

	ledger := NewLedger(f.repos.Usage, f.billing, 0)
	u, err := ledger.Usage(ctx, 1, entitlements.ResourceMessages)
	require.NoError(t, err)
	assert.True(t, u.HasPlan)
	assert.Equal(t, int64(2), u.Current)
	assert.Equal(t, int64(3), u.Max)
	assert.Equal(t, entitlements.NearLimit, u.Classification())
}

func TestCampaignUsageCountsSentOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.billing.AssignPlan(ctx, billing.AssignInput{TenantID: 1, PlanID: f.plan.ID})
	require.NoError(t, err)

	draft := &models.Campaign{TenantID: 1, Name: "draft", InstanceName: "main"}
	sent := &models.Campaign{TenantID: 1, Name: "sent", InstanceName: "main", Status: models.CAMPAIGN_STATUS_SENT}
	require.NoError(t, f.repos.Resource.CreateCampaign(ctx, draft))
	require.NoError(t, f.repos.Resource.CreateCampaign(ctx, sent))

	ledger := NewLedger(f.repos.Usage, f.billing, 0)
	u, err := ledger.Usage(ctx, 1, entitlements.ResourceCampaigns)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.Current)
}

func TestCachedUsageIsBoundedStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.billing.AssignPlan(ctx, billing.AssignInput{TenantID: 1, PlanID: f.plan.ID})
	require.NoError(t, err)

	now := time.Now()
	ledger := NewLedger(f.repos.Usage, f.billing, 10*time.Second)
	ledger.SetClock(func() time.Time { return now })

	u, err := ledger.Usage(ctx, 1, entitlements.ResourceInstances)
	require.NoError(t, err)
	assert.Zero(t, u.Current)

	require.NoError(t, f.repos.Resource.CreateInstance(ctx, &models.Instance{TenantID: 1, Name: "main"}))

	u, err = ledger.Usage(ctx, 1, entitlements.ResourceInstances)
	require.NoError(t, err)
	assert.Zero(t, u.Current, "served from cache")

	u, err = ledger.Recompute(ctx, 1, entitlements.ResourceInstances)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.Current)

	require.NoError(t, f.repos.Resource.CreateInstance(ctx, &models.Instance{TenantID: 1, Name: "backup"}))
	now = now.Add(11 * time.Second)
	u, err = ledger.Usage(ctx, 1, entitlements.ResourceInstances)
	require.NoError(t, err)
	assert.Equal(t, int64(2), u.Current, "expired entry recomputed")
}

func TestInvalidateDropsTenantEntries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ledger := NewLedger(f.repos.Usage, f.billing, time.Minute)

	u, err := ledger.Usage(ctx, 1, entitlements.ResourceContacts)
	require.NoError(t, err)
	assert.False(t, u.HasPlan)

	_, err = f.billing.AssignPlan(ctx, billing.AssignInput{TenantID: 1, PlanID: f.plan.ID})
	require.NoError(t, err)
	ledger.Invalidate(1)

	u, err = ledger.Usage(ctx, 1, entitlements.ResourceContacts)
	require.NoError(t, err)
	assert.True(t, u.HasPlan)
	assert.Equal(t, int64(10), u.Max)
}

func TestSnapshotCoversAllResources(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.billing.AssignPlan(ctx, billing.AssignInput{TenantID: 1, PlanID: f.plan.ID})
	require.NoError(t, err)

	ledger := NewLedger(f.repos.Usage, f.billing, time.Second)
	snap, err := ledger.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, snap, len(entitlements.AllResources))
	assert.Equal(t, int64(5), snap[entitlements.ResourceConversations].Max)
}

func TestConcurrentUsageCalls(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.billing.AssignPlan(ctx, billing.AssignInput{TenantID: 1, PlanID: f.plan.ID})
	require.NoError(t, err)
	ledger := NewLedger(f.repos.Usage, f.billing, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := ledger.Usage(ctx, 1, entitlements.ResourceConversations)
			assert.NoError(t, err)
			assert.Equal(t, int64(5), u.Max)
		}()
	}
	wg.Wait()
}

// stallingCounter blocks the first armed CountInstances call after it has
// counted, until release is closed.
type stallingCounter struct {
	repository.UsageRepository
	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func newStallingCounter(inner repository.UsageRepository) *stallingCounter {
	return &stallingCounter{UsageRepository: inner, reached: make(chan struct{}), release: make(chan struct{})}
}

func (c *stallingCounter) CountInstances(ctx context.Context, tenantID uint) (int64, error) {
	n, err := c.UsageRepository.CountInstances(ctx, tenantID)
	if c.armed.CompareAndSwap(true, false) {
		close(c.reached)
		<-c.release
	}
	return n, err
}

func TestRecomputeDoesNotJoinSlowLookup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.billing.AssignPlan(ctx, billing.AssignInput{TenantID: 1, PlanID: f.plan.ID})
	require.NoError(t, err)

	counter := newStallingCounter(f.repos.Usage)
	ledger := NewLedger(counter, f.billing, time.Minute)

	counter.armed.Store(true)
	slow := make(chan entitlements.Usage, 1)
	go func() {
		u, err := ledger.Usage(ctx, 1, entitlements.ResourceInstances)
		assert.NoError(t, err)
		slow <- u
	}()
	<-counter.reached

	require.NoError(t, f.repos.Resource.CreateInstance(ctx, &models.Instance{TenantID: 1, Name: "main"}))

	recomputed := make(chan entitlements.Usage, 1)
	go func() {
		u, err := ledger.Recompute(ctx, 1, entitlements.ResourceInstances)
		assert.NoError(t, err)
		recomputed <- u
	}()

	select {
	case u := <-recomputed:
		assert.Equal(t, int64(1), u.Current)
	case <-time.After(2 * time.Second):
		close(counter.release)
		t.Fatal("recompute waited for the lookup that started before the write")
	}

	close(counter.release)
	assert.Zero(t, (<-slow).Current)

	// the older count must not replace the recomputed figure
	u, err := ledger.Usage(ctx, 1, entitlements.ResourceInstances)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.Current)
}

func TestInvalidateRejectsCountsStartedBefore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	counter := newStallingCounter(f.repos.Usage)
	ledger := NewLedger(counter, f.billing, time.Minute)

	counter.armed.Store(true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		u, err := ledger.Usage(ctx, 1, entitlements.ResourceInstances)
		assert.NoError(t, err)
		assert.False(t, u.HasPlan)
	}()
	<-counter.reached

	_, err := f.billing.AssignPlan(ctx, billing.AssignInput{TenantID: 1, PlanID: f.plan.ID})
	require.NoError(t, err)
	ledger.Invalidate(1)
	close(counter.release)
	<-done

	u, err := ledger.Usage(ctx, 1, entitlements.ResourceInstances)
	require.NoError(t, err)
	assert.True(t, u.HasPlan)
}
