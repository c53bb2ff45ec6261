// Package notify fans engine events out to connected operators. Delivery is
// best effort: a subscriber that cannot keep up is dropped, never waited for.
package notify

import (
	"context"
	"sync"

	"github.com/ManuelReschke/ChatFox/internal/pkg/metrics"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

const DefaultBuffer = 64

// Publisher is the narrow interface the engine components publish through.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Relay forwards locally published events to other nodes.
type Relay interface {
	Forward(ctx context.Context, ev Event) error
}

// Subscription receives the events of its topics on C until it is closed.
type Subscription struct {
	ID     string
	Topics []string
	C      <-chan Event

	ch     chan Event
	once   sync.Once
	bridge *Bridge
}

// Close unsubscribes and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.bridge.remove(s)
}

// Bridge is the in-process topic hub.
type Bridge struct {
	node string

	mu     sync.RWMutex
	topics map[string]map[string]*Subscription

	relay Relay
}

// NewBridge creates a bridge with a random node id.
func NewBridge() *Bridge {
	return &Bridge{
		node:   uuid.NewString(),
		topics: make(map[string]map[string]*Subscription),
	}
}

// NodeID identifies this process on the relay.
func (b *Bridge) NodeID() string {
	return b.node
}

// SetRelay enables cross-node fan-out.
func (b *Bridge) SetRelay(r Relay) {
	b.mu.Lock()
	b.relay = r
	b.mu.Unlock()
}

// Subscribe registers a subscriber for the given topics.
func (b *Bridge) Subscribe(buffer int, topics ...string) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{ID: uuid.NewString(), Topics: topics, C: ch, ch: ch, bridge: b}

	b.mu.Lock()
	for _, t := range topics {
		if b.topics[t] == nil {
			b.topics[t] = make(map[string]*Subscription)
		}
		b.topics[t][sub.ID] = sub
	}
	b.mu.Unlock()
	return sub
}

// SubscriberCount returns the number of subscriptions listening on a topic.
func (b *Bridge) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Publish delivers the event locally and forwards it through the relay.
func (b *Bridge) Publish(ctx context.Context, ev Event) {
	if ev.Origin == "" {
		ev.Origin = b.node
	}
	metrics.EventsPublished.WithLabelValues(ev.Type).Inc()
	b.Deliver(ev)

	b.mu.RLock()
	relay := b.relay
	b.mu.RUnlock()
	if relay != nil {
		if err := relay.Forward(ctx, ev); err != nil {
			log.Warnf("[Notify] Relay of %s failed: %v", ev.Type, err)
		}
	}
}

// Deliver fans an event out to local subscribers only.
func (b *Bridge) Deliver(ev Event) {
	var slow []*Subscription

	b.mu.RLock()
	seen := make(map[string]struct{})
	for _, topic := range ev.Topics() {
		for id, sub := range b.topics[topic] {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			select {
			case sub.ch <- ev:
			default:
				slow = append(slow, sub)
			}
		}
	}
	b.mu.RUnlock()

	for _, sub := range slow {
		metrics.EventsDropped.Inc()
		log.Warnf("[Notify] Dropping slow subscriber %s", sub.ID)
		b.remove(sub)
	}
}

func (b *Bridge) remove(sub *Subscription) {
	sub.once.Do(func() {
		b.mu.Lock()
		for _, t := range sub.Topics {
			delete(b.topics[t], sub.ID)
			if len(b.topics[t]) == 0 {
				delete(b.topics, t)
			}
		}
		close(sub.ch)
		b.mu.Unlock()
	})
}
