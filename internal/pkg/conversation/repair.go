package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
	"github.com/ManuelReschke/ChatFox/internal/pkg/metrics"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

func (s *Service) markStale(ctx context.Context, tenantID, conversationID uint) {
	s.staleMu.Lock()
	s.stale[conversationID] = struct{}{}
	s.staleMu.Unlock()
	metrics.PreviewRepairs.WithLabelValues("marked").Inc()

	if s.repairs == nil {
		return
	}
	if err := s.repairs.ScheduleRepair(context.WithoutCancel(ctx), tenantID, conversationID); err != nil {
		log.Warnf("[Conversation] Scheduling repair of %d failed, relying on read-repair: %v", conversationID, err)
	}
}

func (s *Service) isStale(conversationID uint) bool {
	s.staleMu.Lock()
	defer s.staleMu.Unlock()
	_, ok := s.stale[conversationID]
	return ok
}

func (s *Service) clearStale(conversationID uint) {
	s.staleMu.Lock()
	delete(s.stale, conversationID)
	s.staleMu.Unlock()
}

// Repair recomputes the cached preview of a conversation from its messages.
func (s *Service) Repair(ctx context.Context, tenantID, conversationID uint) error {
	conv, err := s.convs.GetByID(ctx, tenantID, conversationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.clearStale(conversationID)
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	_, err = s.repair(ctx, conv)
	return err
}

// repair rebuilds the preview from the newest message and the unread count
// from unread inbound rows.
func (s *Service) repair(ctx context.Context, conv *models.Conversation) (*models.Conversation, error) {
	unlock := s.locks.Lock(lockKey(conv.TenantID, conv.ContactID, conv.InstanceName))
	defer unlock()

	latest, err := s.msgs.Latest(ctx, conv.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	unread, err := s.msgs.CountUnreadInbound(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	text := ""
	var at *time.Time
	if latest != nil {
		text = latest.Body
		t := latest.CreatedAt
		at = &t
	}
	if err := s.convs.SaveProjection(ctx, conv.ID, text, at, unread); err != nil {
		log.Warnf("[Conversation] Repair of conversation %d failed: %v", conv.ID, err)
		return nil, err
	}
	s.clearStale(conv.ID)
	metrics.PreviewRepairs.WithLabelValues("repaired").Inc()
	log.Infof("[Conversation] Repaired preview of conversation %d", conv.ID)

	repaired := *conv
	repaired.LastMessageText = models.PreviewText(text)
	repaired.LastMessageAt = at
	repaired.UnreadCount = unread
	return &repaired, nil
}
