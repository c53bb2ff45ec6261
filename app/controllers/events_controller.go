package controllers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ChatFox/internal/pkg/conversation"
	"github.com/ManuelReschke/ChatFox/internal/pkg/notify"
)

const sseKeepAlive = 15 * time.Second

// EventsController streams engine events to operators as server-sent events.
type EventsController struct {
	bridge        *notify.Bridge
	conversations *conversation.Service
}

func NewEventsController(bridge *notify.Bridge, conversations *conversation.Service) *EventsController {
	return &EventsController{bridge: bridge, conversations: conversations}
}

// HandleStream subscribes to the tenant topic, or to one conversation when
// ?conversation= is given. The stream ends when the client goes away or
// the subscriber falls behind.
func (ec *EventsController) HandleStream(c *fiber.Ctx) error {
	tenantID := tenantOf(c)
	topic := notify.TenantTopic(tenantID)
	if id := uint(c.QueryInt("conversation")); id != 0 {
		if _, _, err := ec.conversations.Get(c.UserContext(), tenantID, id); err != nil {
			return respondError(c, err)
		}
		topic = notify.ConversationTopic(id)
	}

	sub := ec.bridge.Subscribe(notify.DefaultBuffer, topic)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer sub.Close()
		ticker := time.NewTicker(sseKeepAlive)
		defer ticker.Stop()

		fmt.Fprintf(w, ": subscribed %s\n\n", topic)
		if err := w.Flush(); err != nil {
			return
		}
		for {
			select {
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if err := writeEvent(w, ev); err != nil {
					log.Debugf("[Events] Subscriber %s gone: %v", sub.ID, err)
					return
				}
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}

func writeEvent(w *bufio.Writer, ev notify.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data)
	return w.Flush()
}
