package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ManuelReschke/ChatFox/internal/pkg/cache/cachetest"
	"github.com/ManuelReschke/ChatFox/internal/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type events struct {
	mu  sync.Mutex
	all []notify.Event
}

func (e *events) Publish(_ context.Context, ev notify.Event) {
	e.mu.Lock()
	e.all = append(e.all, ev)
	e.mu.Unlock()
}

func (e *events) len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.all)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestHub(store Store) (*Hub, *events, *clock) {
	ev := &events{}
	c := &clock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	h := NewHub(store, ev, 45*time.Second)
	h.SetClock(c.now)
	return h, ev, c
}

func TestClampTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, ClampTimeout(0))
	assert.Equal(t, MinTimeout, ClampTimeout(5*time.Second))
	assert.Equal(t, MaxTimeout, ClampTimeout(5*time.Minute))
	assert.Equal(t, 40*time.Second, ClampTimeout(40*time.Second))
}

func runHubScenario(t *testing.T, store Store) {
	ctx := context.Background()
	h, ev, c := newTestHub(store)
	alice := Operator{ID: 1, Name: "Alice"}
	bob := Operator{ID: 2, Name: "Bob"}

	_, err := h.Join(ctx, 7, 100, alice, RolePrimary)
	require.NoError(t, err)
	_, err = h.Join(ctx, 7, 100, bob, "")
	require.NoError(t, err)

	snap, err := h.Heartbeat(ctx, 7, 100, bob, true)
	require.NoError(t, err)
	require.Len(t, snap.Collaborators, 2)
	assert.Equal(t, RolePrimary, snap.Collaborators[0].Role)
	assert.Equal(t, RoleCollaborator, snap.Collaborators[1].Role)
	assert.Equal(t, []string{"Bob"}, snap.Typing)

	// Alice stops heartbeating; Bob keeps going
	c.t = c.t.Add(30 * time.Second)
	_, err = h.Heartbeat(ctx, 7, 100, bob, false)
	require.NoError(t, err)
	c.t = c.t.Add(20 * time.Second)

	snap, err = h.ListActive(ctx, 100)
	require.NoError(t, err)
	require.Len(t, snap.Collaborators, 1, "stale record excluded without leave")
	assert.Equal(t, "Bob", snap.Collaborators[0].OperatorName)
	assert.Empty(t, snap.Typing)

	removed, err := h.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	require.NoError(t, h.Leave(ctx, 7, 100, bob.ID))
	require.NoError(t, h.Leave(ctx, 7, 100, bob.ID))
	snap, err = h.ListActive(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, snap.Collaborators)
	assert.Greater(t, ev.len(), 3)
}

func TestHubWithMemoryStore(t *testing.T) {
	runHubScenario(t, NewMemoryStore())
}

func TestHubWithRedisStore(t *testing.T) {
	rdb := cachetest.Client(t, 13)
	runHubScenario(t, NewRedisStore(rdb, time.Hour))
}

func TestHeartbeatRejoinsPrunedOperator(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newTestHub(NewMemoryStore())

	snap, err := h.Heartbeat(ctx, 1, 5, Operator{ID: 3, Name: "Carol"}, false)
	require.NoError(t, err)
	require.Len(t, snap.Collaborators, 1)
	assert.Equal(t, RoleCollaborator, snap.Collaborators[0].Role)

	_, err = h.Join(ctx, 1, 5, Operator{ID: 4}, RoleObserver)
	assert.ErrorIs(t, err, ErrInvalidOperator)
}
