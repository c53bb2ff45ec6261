// Package presence tracks which operators look at or type in a conversation.
// The state is advisory UX only and is never used as proof of delivery.
package presence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ManuelReschke/ChatFox/internal/pkg/metrics"
	"github.com/ManuelReschke/ChatFox/internal/pkg/notify"
	"github.com/gofiber/fiber/v2/log"
)

const (
	DefaultTimeout = 45 * time.Second
	MinTimeout     = 30 * time.Second
	MaxTimeout     = 60 * time.Second
)

var ErrInvalidOperator = errors.New("operator id and name are required")

// Operator identifies the acting human.
type Operator struct {
	ID   uint
	Name string
}

// Snapshot is what clients render for a conversation.
type Snapshot struct {
	ConversationID uint     `json:"conversation_id"`
	Collaborators  []Record `json:"collaborators"`
	Typing         []string `json:"typing"`
}

// Hub coordinates presence records and announces changes.
type Hub struct {
	store   Store
	pub     notify.Publisher
	timeout time.Duration
	now     func() time.Time
}

// ClampTimeout keeps the staleness window within the supported range.
func ClampTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	if d < MinTimeout {
		return MinTimeout
	}
	if d > MaxTimeout {
		return MaxTimeout
	}
	return d
}

// NewHub creates a hub. pub may be nil.
func NewHub(store Store, pub notify.Publisher, timeout time.Duration) *Hub {
	return &Hub{store: store, pub: pub, timeout: ClampTimeout(timeout), now: time.Now}
}

// SetClock overrides the time source, used by tests.
func (h *Hub) SetClock(now func() time.Time) {
	h.now = now
}

// Timeout returns the staleness window.
func (h *Hub) Timeout() time.Duration {
	return h.timeout
}

// Join registers the operator in the conversation with the given role.
func (h *Hub) Join(ctx context.Context, tenantID, conversationID uint, op Operator, role Role) (*Snapshot, error) {
	if op.ID == 0 || strings.TrimSpace(op.Name) == "" {
		return nil, ErrInvalidOperator
	}
	rec := Record{
		ConversationID: conversationID,
		TenantID:       tenantID,
		OperatorID:     op.ID,
		OperatorName:   op.Name,
		Role:           ParseRole(string(role)),
		LastSeen:       h.now(),
	}
	if err := h.store.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	return h.announce(ctx, tenantID, conversationID)
}

// Heartbeat refreshes the operator's record and typing flag. An operator
// whose record was pruned is joined again as collaborator.
func (h *Hub) Heartbeat(ctx context.Context, tenantID, conversationID uint, op Operator, isTyping bool) (*Snapshot, error) {
	if op.ID == 0 {
		return nil, ErrInvalidOperator
	}
	rec, err := h.store.Get(ctx, conversationID, op.ID)
	if err != nil {
		return nil, err
	}
	changed := false
	if rec == nil {
		if strings.TrimSpace(op.Name) == "" {
			return nil, ErrInvalidOperator
		}
		rec = &Record{
			ConversationID: conversationID,
			TenantID:       tenantID,
			OperatorID:     op.ID,
			OperatorName:   op.Name,
			Role:           RoleCollaborator,
		}
		changed = true
	}
	if rec.IsTyping != isTyping {
		changed = true
	}
	rec.IsTyping = isTyping
	rec.LastSeen = h.now()
	if err := h.store.Upsert(ctx, *rec); err != nil {
		return nil, err
	}
	if changed {
		return h.announce(ctx, tenantID, conversationID)
	}
	return h.ListActive(ctx, conversationID)
}

// Leave removes the operator. Leaving twice is harmless.
func (h *Hub) Leave(ctx context.Context, tenantID, conversationID, operatorID uint) error {
	removed, err := h.store.Remove(ctx, conversationID, operatorID)
	if err != nil {
		return err
	}
	if removed {
		_, err = h.announce(ctx, tenantID, conversationID)
	}
	return err
}

// ListActive returns the non-stale collaborators and the names of those typing.
func (h *Hub) ListActive(ctx context.Context, conversationID uint) (*Snapshot, error) {
	recs, err := h.store.List(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	cutoff := h.now().Add(-h.timeout)
	snap := &Snapshot{ConversationID: conversationID, Collaborators: []Record{}, Typing: []string{}}
	for _, rec := range recs {
		if rec.LastSeen.Before(cutoff) {
			continue
		}
		snap.Collaborators = append(snap.Collaborators, rec)
		if rec.IsTyping {
			snap.Typing = append(snap.Typing, rec.OperatorName)
		}
	}
	return snap, nil
}

// Prune deletes stale records of every conversation and announces the
// conversations that changed. It returns the number of removed records.
func (h *Hub) Prune(ctx context.Context) (int, error) {
	ids, err := h.store.Conversations(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := h.now().Add(-h.timeout)
	total, alive := 0, 0
	for _, id := range ids {
		removed, err := h.store.RemoveStale(ctx, id, cutoff)
		if err != nil {
			log.Warnf("[Presence] Prune of conversation %d failed: %v", id, err)
			continue
		}
		total += len(removed)
		if len(removed) > 0 {
			if _, err := h.announce(ctx, removed[0].TenantID, id); err != nil {
				log.Warnf("[Presence] Announce after prune failed: %v", err)
			}
		}
		if recs, err := h.store.List(ctx, id); err == nil {
			alive += len(recs)
		}
	}
	metrics.PresenceActive.Set(float64(alive))
	if total > 0 {
		log.Debugf("[Presence] Pruned %d stale records", total)
	}
	return total, nil
}

func (h *Hub) announce(ctx context.Context, tenantID, conversationID uint) (*Snapshot, error) {
	snap, err := h.ListActive(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if h.pub != nil {
		h.pub.Publish(ctx, notify.NewEvent(notify.EventPresenceUpdated, tenantID, conversationID, snap))
	}
	return snap, nil
}
