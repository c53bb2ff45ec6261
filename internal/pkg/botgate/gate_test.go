package botgate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
	"github.com/ManuelReschke/ChatFox/app/repository"
	"github.com/ManuelReschke/ChatFox/app/repository/memory"
	"github.com/ManuelReschke/ChatFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/ChatFox/internal/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	mu     sync.Mutex
	events []notify.Event
}

func (l *eventLog) Publish(_ context.Context, ev notify.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) count(eventType string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

func newGate() (*Gate, *eventLog, *repository.Repositories) {
	repos := memory.NewRepositories()
	events := &eventLog{}
	return NewGate(repos.Bot, events), events, repos
}

var key = Key{TenantID: 1, ContactID: "5511999990000", Instance: "main"}

func TestDefaultIsEnabled(t *testing.T) {
	g, _, _ := newGate()
	enabled, err := g.IsEnabled(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestDisableEnableAreIdempotent(t *testing.T) {
	ctx := context.Background()
	g, events, repos := newGate()

	changed, err := g.Disable(ctx, key, "", nil)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = g.Disable(ctx, key, "", nil)
	require.NoError(t, err)
	assert.False(t, changed)

	rows, err := repos.Bot.ListSuppressions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.SUPPRESSION_REASON_OPERATOR, rows[0].Reason)

	changed, err = g.Enable(ctx, key)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = g.Enable(ctx, key)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, 1, events.count(notify.EventBotDisabled))
	assert.Equal(t, 1, events.count(notify.EventBotEnabled))
}

func TestConcurrentDisablesLeaveOneRow(t *testing.T) {
	ctx := context.Background()
	g, events, repos := newGate()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Disable(ctx, key, models.SUPPRESSION_REASON_OPERATOR, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rows, err := repos.Bot.ListSuppressions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, events.count(notify.EventBotDisabled))

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Enable(ctx, key)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	enabled, err := g.IsEnabled(ctx, key)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestConcurrentEnablesClearOnce(t *testing.T) {
	ctx := context.Background()
	g, events, repos := newGate()
	_, err := g.Disable(ctx, key, models.SUPPRESSION_REASON_OPERATOR, nil)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := g.Enable(ctx, key)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, changed)
	assert.Equal(t, 1, events.count(notify.EventBotEnabled))
	rows, err := repos.Bot.ListSuppressions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, rows)
	enabled, err := g.IsEnabled(ctx, key)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestInvalidKey(t *testing.T) {
	g, _, _ := newGate()
	_, err := g.Disable(context.Background(), Key{TenantID: 1, ContactID: " "}, "", nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestDisableAllFiresOnceAndReenableSurvivesRecovery(t *testing.T) {
	ctx := context.Background()
	g, events, _ := newGate()
	exhausted := entitlements.Usage{Resource: entitlements.ResourceMessages, Current: 100, Max: 100, HasPlan: true}

	// contact was re-enabled by an operator before the quota ran out
	_, err := g.Disable(ctx, key, "", nil)
	require.NoError(t, err)
	_, err = g.Enable(ctx, key)
	require.NoError(t, err)

	changed, err := g.DisableAll(ctx, 1, exhausted)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = g.DisableAll(ctx, 1, entitlements.Usage{Current: 101, Max: 100, HasPlan: true})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, events.count(notify.EventBotsDisabledAll))

	status, err := g.EffectiveEnabled(ctx, key)
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.True(t, status.QuotaSuppressed)
	assert.False(t, status.Effective)

	// still blocked: no restore
	changed, err = g.RestoreTenant(ctx, 1, exhausted)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = g.RestoreTenant(ctx, 1, entitlements.Usage{Current: 0, Max: 500, HasPlan: true})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, events.count(notify.EventBotsRestored))

	status, err = g.EffectiveEnabled(ctx, key)
	require.NoError(t, err)
	assert.True(t, status.Effective)
}

func TestRestoreWithoutPlanIsIgnored(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newGate()
	_, err := g.DisableAll(ctx, 1, entitlements.Usage{})
	require.NoError(t, err)

	changed, err := g.RestoreTenant(ctx, 1, entitlements.Usage{HasPlan: false, Max: 0})
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestConcurrentDisableAllPublishesOnce(t *testing.T) {
	ctx := context.Background()
	g, events, _ := newGate()
	u := entitlements.Usage{Current: 10, Max: 10, HasPlan: true}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.DisableAll(ctx, 1, u)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, events.count(notify.EventBotsDisabledAll))
}

type failingBotRepo struct {
	repository.BotRepository
	mu       sync.Mutex
	failures int
}

func (r *failingBotRepo) InsertSuppression(ctx context.Context, s *models.BotSuppression) (bool, error) {
	r.mu.Lock()
	if r.failures > 0 {
		r.failures--
		r.mu.Unlock()
		return false, errors.New("db unavailable")
	}
	r.mu.Unlock()
	return r.BotRepository.InsertSuppression(ctx, s)
}

type recordingScheduler struct {
	keys []Key
	err  error
}

func (s *recordingScheduler) ScheduleBotSuppress(_ context.Context, key Key, _ *uint) error {
	s.keys = append(s.keys, key)
	return s.err
}

func TestDisableForReplySchedulesRetry(t *testing.T) {
	repos := memory.NewRepositories()
	g := NewGate(&failingBotRepo{BotRepository: repos.Bot, failures: 1}, nil)
	sched := &recordingScheduler{}
	g.SetRetryScheduler(sched)

	g.DisableForReply(context.Background(), key, nil)
	assert.Equal(t, []Key{key}, sched.keys)
}

func TestDisableForReplyFallsBackInProcess(t *testing.T) {
	repos := memory.NewRepositories()
	g := NewGate(&failingBotRepo{BotRepository: repos.Bot, failures: 2}, nil)
	g.fallbackDelay = 5 * time.Millisecond
	g.SetRetryScheduler(&recordingScheduler{err: errors.New("queue down")})

	g.DisableForReply(context.Background(), key, nil)

	assert.Eventually(t, func() bool {
		exists, _ := repos.Bot.SuppressionExists(context.Background(), key.TenantID, key.ContactID, key.Instance)
		return exists
	}, time.Second, 5*time.Millisecond)
}
