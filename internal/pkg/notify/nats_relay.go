package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/nats-io/nats.go"
)

const DefaultEventsSubject = "chatfox.events"

// NATSRelay mirrors bridge events to every node subscribed to the subject.
type NATSRelay struct {
	nc      *nats.Conn
	subject string
	bridge  *Bridge
	sub     *nats.Subscription
}

// NewNATSRelay creates a relay for the bridge. Call Start to receive remote events.
func NewNATSRelay(nc *nats.Conn, subject string, bridge *Bridge) *NATSRelay {
	if subject == "" {
		subject = DefaultEventsSubject
	}
	return &NATSRelay{nc: nc, subject: subject, bridge: bridge}
}

// Forward implements Relay
func (r *NATSRelay) Forward(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := nats.NewMsg(r.subject)
	msg.Data = data
	msg.Header.Set("Chatfox-Origin", ev.Origin)
	msg.Header.Set("Chatfox-Event", ev.Type)
	if err := r.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Start subscribes to the subject and registers the relay on the bridge.
func (r *NATSRelay) Start() error {
	sub, err := r.nc.Subscribe(r.subject, r.handle)
	if err != nil {
		return err
	}
	r.sub = sub
	r.bridge.SetRelay(r)
	log.Infof("[Notify] Relaying events on %s as node %s", r.subject, r.bridge.NodeID())
	return nil
}

// Stop drains the subscription and detaches the relay.
func (r *NATSRelay) Stop() {
	r.bridge.SetRelay(nil)
	if r.sub != nil {
		_ = r.sub.Drain()
	}
}

func (r *NATSRelay) handle(msg *nats.Msg) {
	if msg.Header.Get("Chatfox-Origin") == r.bridge.NodeID() {
		return
	}
	var ev Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		log.Warnf("[Notify] Ignoring malformed relayed event: %v", err)
		return
	}
	if ev.Origin == r.bridge.NodeID() {
		return
	}
	r.bridge.Deliver(ev)
}
