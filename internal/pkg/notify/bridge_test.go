package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return Event{}
}

func TestPublishRoutesByTopic(t *testing.T) {
	b := NewBridge()
	tenant := b.Subscribe(4, TenantTopic(1))
	conv := b.Subscribe(4, ConversationTopic(10))
	other := b.Subscribe(4, TenantTopic(2))
	defer tenant.Close()
	defer conv.Close()
	defer other.Close()

	b.Publish(context.Background(), NewEvent(EventMessageCreated, 1, 10, map[string]string{"body": "hi"}))

	ev := receive(t, tenant)
	assert.Equal(t, EventMessageCreated, ev.Type)
	assert.Equal(t, b.NodeID(), ev.Origin)
	assert.Equal(t, EventMessageCreated, receive(t, conv).Type)
	assert.Len(t, other.C, 0)
}

func TestSubscriberOnBothTopicsGetsOneCopy(t *testing.T) {
	b := NewBridge()
	sub := b.Subscribe(4, TenantTopic(1), ConversationTopic(10))
	defer sub.Close()

	b.Publish(context.Background(), NewEvent(EventConversationRead, 1, 10, nil))
	receive(t, sub)
	assert.Len(t, sub.C, 0)
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	b := NewBridge()
	slow := b.Subscribe(1, TenantTopic(1))
	fast := b.Subscribe(8, TenantTopic(1))
	defer fast.Close()

	for i := 0; i < 3; i++ {
		b.Publish(context.Background(), NewEvent(EventPresenceUpdated, 1, 0, nil))
	}

	assert.Equal(t, 1, b.SubscriberCount(TenantTopic(1)))
	_, ok := <-slow.C
	assert.True(t, ok, "buffered event still readable")
	_, ok = <-slow.C
	assert.False(t, ok, "channel closed after drop")
	assert.Len(t, fast.C, 3)

	slow.Close()
}

type recordingRelay struct {
	events []Event
	err    error
}

func (r *recordingRelay) Forward(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestPublishForwardsToRelay(t *testing.T) {
	b := NewBridge()
	relay := &recordingRelay{err: errors.New("offline")}
	b.SetRelay(relay)

	sub := b.Subscribe(1, TenantTopic(3))
	defer sub.Close()
	b.Publish(context.Background(), NewEvent(EventBotsDisabledAll, 3, 0, nil))

	require.Len(t, relay.events, 1)
	assert.Equal(t, b.NodeID(), relay.events[0].Origin)
	assert.Equal(t, EventBotsDisabledAll, receive(t, sub).Type)
}

func TestCloseIsIdempotent(t *testing.T) {
	b := NewBridge()
	sub := b.Subscribe(1, TenantTopic(1))
	sub.Close()
	sub.Close()
	assert.Zero(t, b.SubscriberCount(TenantTopic(1)))
}
