package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ManuelReschke/ChatFox/internal/pkg/conversation"
	"github.com/gofiber/fiber/v2/log"
	"github.com/nats-io/nats.go"
)

const (
	DefaultSubject = "chatfox.inbound"
	DefaultGroup   = "chatfox-inbound"
)

// Appender stores inbound messages.
type Appender interface {
	AppendInbound(ctx context.Context, in conversation.InboundMessage) (*conversation.AppendResult, error)
}

// Ack is the reply sent to request/reply publishers.
type Ack struct {
	OK             bool   `json:"ok"`
	ConversationID uint   `json:"conversation_id,omitempty"`
	MessageID      uint   `json:"message_id,omitempty"`
	Blocked        bool   `json:"blocked,omitempty"`
	Duplicate      bool   `json:"duplicate,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Consumer reads provider events from a NATS subject. The queue group spreads
// them over all nodes.
type Consumer struct {
	nc       *nats.Conn
	subject  string
	group    string
	appender Appender
	timeout  time.Duration
	sub      *nats.Subscription
}

func NewConsumer(nc *nats.Conn, subject string, appender Appender) *Consumer {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Consumer{
		nc:       nc,
		subject:  subject,
		group:    DefaultGroup,
		appender: appender,
		timeout:  10 * time.Second,
	}
}

// Start subscribes to the subject.
func (c *Consumer) Start() error {
	sub, err := c.nc.QueueSubscribe(c.subject, c.group, c.handle)
	if err != nil {
		return err
	}
	c.sub = sub
	log.Infof("[Inbound] Consuming provider events on %s (group %s)", c.subject, c.group)
	return nil
}

// Stop drains the subscription.
func (c *Consumer) Stop() {
	if c.sub != nil {
		if err := c.sub.Drain(); err != nil {
			log.Warnf("[Inbound] Drain failed: %v", err)
		}
	}
}

func (c *Consumer) handle(msg *nats.Msg) {
	ack := c.process(msg.Data)
	if msg.Reply == "" {
		return
	}
	data, _ := json.Marshal(ack)
	if err := msg.Respond(data); err != nil {
		log.Warnf("[Inbound] Reply failed: %v", err)
	}
}

func (c *Consumer) process(data []byte) Ack {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Warnf("[Inbound] Ignoring malformed event: %v", err)
		return Ack{Error: "malformed event"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	res, err := c.appender.AppendInbound(ctx, ev.Message())
	if err != nil {
		if errors.Is(err, conversation.ErrInvalidMessage) {
			log.Warnf("[Inbound] Rejected event %s: %v", ev.ID, err)
		} else {
			log.Errorf("[Inbound] Storing event %s failed: %v", ev.ID, err)
		}
		return Ack{Error: err.Error()}
	}
	return Ack{
		OK:             true,
		ConversationID: res.Message.ConversationID,
		MessageID:      res.Message.ID,
		Blocked:        res.Blocked,
		Duplicate:      res.Duplicate,
	}
}
