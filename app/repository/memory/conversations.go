package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
)

type conversationRepository struct{ s *Store }

func (r *conversationRepository) GetOrCreate(_ context.Context, conv *models.Conversation) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.conversations {
		if c.TenantID == conv.TenantID && c.ContactID == conv.ContactID && c.InstanceName == conv.InstanceName {
			*conv = c
			return false, nil
		}
	}
	conv.ID = r.s.next("conversations")
	now := r.s.now()
	conv.CreatedAt, conv.UpdatedAt = now, now
	r.s.conversations[conv.ID] = *conv
	return true, nil
}

func (r *conversationRepository) GetByID(_ context.Context, tenantID, id uint) (*models.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.conversations[id]
	if !ok || c.TenantID != tenantID {
		return nil, notFound()
	}
	return &c, nil
}

func (r *conversationRepository) ListByTenant(_ context.Context, tenantID uint) ([]models.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var convs []models.Conversation
	for _, c := range r.s.conversations {
		if c.TenantID == tenantID {
			convs = append(convs, c)
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		ai, aj := convs[i].ActivityAt(), convs[j].ActivityAt()
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return convs[i].ID > convs[j].ID
	})
	return convs, nil
}

func (r *conversationRepository) ApplyMessage(_ context.Context, msg *models.Message) error {
	if msg.ConversationID == 0 {
		return errors.New("message has no conversation")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[msg.ConversationID]
	if !ok {
		return notFound()
	}
	if c.LastMessageAt == nil || !c.LastMessageAt.After(msg.CreatedAt) {
		at := msg.CreatedAt
		c.LastMessageAt = &at
		c.LastMessageText = models.PreviewText(msg.Body)
	}
	if msg.IsInbound() && !msg.Read {
		c.UnreadCount++
	}
	c.UpdatedAt = r.s.now()
	r.s.conversations[c.ID] = c
	return nil
}

func (r *conversationRepository) ResetUnread(_ context.Context, tenantID, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok || c.TenantID != tenantID {
		return nil
	}
	c.UnreadCount = 0
	r.s.conversations[id] = c
	return nil
}

func (r *conversationRepository) SaveProjection(_ context.Context, id uint, text string, at *time.Time, unread int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return notFound()
	}
	c.LastMessageText = models.PreviewText(text)
	if at != nil {
		t := *at
		c.LastMessageAt = &t
	} else {
		c.LastMessageAt = nil
	}
	c.UnreadCount = unread
	r.s.conversations[id] = c
	return nil
}

type messageRepository struct{ s *Store }

func (r *messageRepository) Create(_ context.Context, msg *models.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if msg.CorrelationID != nil {
		for _, m := range r.s.messages {
			if m.TenantID == msg.TenantID && m.CorrelationID != nil && *m.CorrelationID == *msg.CorrelationID {
				return duplicate()
			}
		}
	}
	msg.ID = r.s.next("messages")
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.s.now()
	}
	r.s.messages[msg.ID] = *msg
	return nil
}

// ordered must be called with mu held
func (r *messageRepository) ordered(conversationID uint) []models.Message {
	var msgs []models.Message
	for _, m := range r.s.messages {
		if m.ConversationID == conversationID {
			msgs = append(msgs, m)
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Before(&msgs[j]) })
	return msgs
}

func (r *messageRepository) ListByConversation(_ context.Context, conversationID, beforeID uint, limit int) ([]models.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := r.ordered(conversationID)
	if beforeID > 0 {
		filtered := all[:0:0]
		for _, m := range all {
			if m.ID < beforeID {
				filtered = append(filtered, m)
			}
		}
		all = filtered
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (r *messageRepository) Latest(_ context.Context, conversationID uint) (*models.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := r.ordered(conversationID)
	if len(all) == 0 {
		return nil, notFound()
	}
	m := all[len(all)-1]
	return &m, nil
}

func (r *messageRepository) CountUnreadInbound(_ context.Context, conversationID uint) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, m := range r.s.messages {
		if m.ConversationID == conversationID && m.IsInbound() && !m.Read {
			n++
		}
	}
	return n, nil
}

func (r *messageRepository) MarkInboundRead(_ context.Context, conversationID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, m := range r.s.messages {
		if m.ConversationID == conversationID && m.IsInbound() && !m.Read {
			m.Read = true
			r.s.messages[id] = m
			n++
		}
	}
	return n, nil
}

func (r *messageRepository) GetByCorrelationID(_ context.Context, tenantID uint, correlationID string) (*models.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, m := range r.s.messages {
		if m.TenantID == tenantID && m.CorrelationID != nil && *m.CorrelationID == correlationID {
			return &m, nil
		}
	}
	return nil, notFound()
}
