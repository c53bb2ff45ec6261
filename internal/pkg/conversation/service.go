// Package conversation stores messages, keeps the per-conversation preview and
// unread counter consistent, and applies the conversations and messages quotas.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
	"github.com/ManuelReschke/ChatFox/app/repository"
	"github.com/ManuelReschke/ChatFox/internal/pkg/botgate"
	"github.com/ManuelReschke/ChatFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/ChatFox/internal/pkg/metrics"
	"github.com/ManuelReschke/ChatFox/internal/pkg/notify"
	"github.com/ManuelReschke/ChatFox/internal/pkg/provider"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// UsageSource provides quota figures.
type UsageSource interface {
	Usage(ctx context.Context, tenantID uint, r entitlements.Resource) (entitlements.Usage, error)
	Recompute(ctx context.Context, tenantID uint, r entitlements.Resource) (entitlements.Usage, error)
}

// Responder is the part of the bot gate the store drives.
type Responder interface {
	DisableAll(ctx context.Context, tenantID uint, u entitlements.Usage) (bool, error)
	DisableForReply(ctx context.Context, key botgate.Key, operatorID *uint)
}

// RepairScheduler queues a preview recomputation in the background.
type RepairScheduler interface {
	ScheduleRepair(ctx context.Context, tenantID, conversationID uint) error
}

// RecomputeScheduler queues a quota re-evaluation in the background.
type RecomputeScheduler interface {
	ScheduleRecompute(ctx context.Context, tenantID uint, r entitlements.Resource) error
}

// Config bundles the collaborators of a Service.
type Config struct {
	Conversations repository.ConversationRepository
	Messages      repository.MessageRepository
	Usage         UsageSource
	Bots          Responder
	Provider      provider.Client
	Publisher     notify.Publisher
}

// Service is the conversation store.
type Service struct {
	convs    repository.ConversationRepository
	msgs     repository.MessageRepository
	usage    UsageSource
	bots     Responder
	provider provider.Client
	pub      notify.Publisher
	repairs  RepairScheduler
	recount  RecomputeScheduler

	locks *keyedMutex
	now   func() time.Time

	staleMu sync.Mutex
	stale   map[uint]struct{}
}

// NewService creates a conversation store.
func NewService(cfg Config) *Service {
	return &Service{
		convs:    cfg.Conversations,
		msgs:     cfg.Messages,
		usage:    cfg.Usage,
		bots:     cfg.Bots,
		provider: cfg.Provider,
		pub:      cfg.Publisher,
		locks:    newKeyedMutex(),
		now:      time.Now,
		stale:    make(map[uint]struct{}),
	}
}

// SetRepairScheduler routes preview repairs to the job queue.
func (s *Service) SetRepairScheduler(r RepairScheduler) {
	s.repairs = r
}

// SetRecomputeScheduler routes failed quota checks to the job queue.
func (s *Service) SetRecomputeScheduler(r RecomputeScheduler) {
	s.recount = r
}

// SetClock overrides the time source, used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func lockKey(tenantID uint, contact, instance string) string {
	return fmt.Sprintf("%d/%s/%s", tenantID, instance, contact)
}

func (s *Service) publish(ctx context.Context, ev notify.Event) {
	if s.pub != nil {
		s.pub.Publish(ctx, ev)
	}
}

// Open returns the conversation for a contact on an instance, creating it if needed.
func (s *Service) Open(ctx context.Context, tenantID uint, contact, instance, displayName string) (*models.Conversation, bool, error) {
	contact, instance = strings.TrimSpace(contact), strings.TrimSpace(instance)
	if tenantID == 0 || contact == "" || instance == "" {
		return nil, false, fmt.Errorf("%w: contact and instance are required", ErrInvalidMessage)
	}
	unlock := s.locks.Lock(lockKey(tenantID, contact, instance))
	conv, created, err := s.openLocked(ctx, tenantID, contact, instance, displayName)
	unlock()
	if err != nil {
		return nil, false, err
	}
	if created {
		s.afterCreate(ctx, tenantID)
	}
	return conv, created, nil
}

func (s *Service) openLocked(ctx context.Context, tenantID uint, contact, instance, displayName string) (*models.Conversation, bool, error) {
	conv := &models.Conversation{
		TenantID:     tenantID,
		ContactID:    contact,
		InstanceName: instance,
		DisplayName:  strings.TrimSpace(displayName),
	}
	created, err := s.convs.GetOrCreate(ctx, conv)
	if err != nil {
		return nil, false, fmt.Errorf("open conversation: %w", err)
	}
	return conv, created, nil
}

func (s *Service) afterCreate(ctx context.Context, tenantID uint) {
	if _, err := s.usage.Recompute(ctx, tenantID, entitlements.ResourceConversations); err != nil {
		log.Warnf("[Conversation] Recompute conversations usage for tenant %d failed: %v", tenantID, err)
		s.scheduleRecompute(ctx, tenantID, entitlements.ResourceConversations)
	}
}

func (s *Service) scheduleRecompute(ctx context.Context, tenantID uint, r entitlements.Resource) {
	if s.recount == nil {
		log.Warnf("[Conversation] No job queue, %s quota of tenant %d is re-evaluated on the next message", r, tenantID)
		return
	}
	if err := s.recount.ScheduleRecompute(ctx, tenantID, r); err != nil {
		log.Errorf("[Conversation] Scheduling %s recompute for tenant %d failed: %v", r, tenantID, err)
	}
}

// EnforceQuota recounts a quota and applies its consequences. The job queue
// calls it when the inline check after a write failed.
func (s *Service) EnforceQuota(ctx context.Context, tenantID uint, r entitlements.Resource) error {
	if r == entitlements.ResourceMessages {
		return s.applyMessageQuota(ctx, tenantID)
	}
	_, err := s.usage.Recompute(ctx, tenantID, r)
	return err
}

// AppendInbound stores a message from a contact. The message is stored even
// when its conversation is hidden by the quota; Blocked reports that case.
func (s *Service) AppendInbound(ctx context.Context, in InboundMessage) (*AppendResult, error) {
	in.ContactID, in.Instance = strings.TrimSpace(in.ContactID), strings.TrimSpace(in.Instance)
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.ContentType == "" {
		in.ContentType = models.CONTENT_TEXT
	}

	if in.CorrelationID != "" {
		if res, ok := s.duplicate(ctx, in.TenantID, in.CorrelationID); ok {
			return res, nil
		}
	}

	msg := &models.Message{
		TenantID:    in.TenantID,
		Direction:   models.DIRECTION_INBOUND,
		Author:      models.AUTHOR_CONTACT,
		Body:        in.Body,
		ContentType: in.ContentType,
		SentAt:      in.SentAt,
	}
	if in.CorrelationID != "" {
		cid := in.CorrelationID
		msg.CorrelationID = &cid
	}

	unlock := s.locks.Lock(lockKey(in.TenantID, in.ContactID, in.Instance))
	conv, created, err := s.openLocked(ctx, in.TenantID, in.ContactID, in.Instance, in.DisplayName)
	if err != nil {
		unlock()
		return nil, err
	}
	msg.ConversationID = conv.ID
	err = s.appendLocked(ctx, conv, msg)
	unlock()
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) && in.CorrelationID != "" {
			if res, ok := s.duplicate(ctx, in.TenantID, in.CorrelationID); ok {
				return res, nil
			}
		}
		return nil, err
	}
	if created {
		s.afterCreate(ctx, in.TenantID)
	}

	s.publish(ctx, notify.NewEvent(notify.EventMessageCreated, in.TenantID, conv.ID, msg))
	s.enforceMessageQuota(ctx, in.TenantID)

	res := &AppendResult{Message: msg}
	res.Conversation, res.Blocked, err = s.Get(ctx, in.TenantID, conv.ID)
	if err != nil {
		// the message is durable; report what we have
		log.Warnf("[Conversation] Reload of conversation %d failed: %v", conv.ID, err)
		res.Conversation = conv
	}
	return res, nil
}

func (s *Service) duplicate(ctx context.Context, tenantID uint, correlationID string) (*AppendResult, bool) {
	existing, err := s.msgs.GetByCorrelationID(ctx, tenantID, correlationID)
	if err != nil {
		return nil, false
	}
	log.Debugf("[Conversation] Ignoring duplicate delivery %s", correlationID)
	conv, blocked, err := s.Get(ctx, tenantID, existing.ConversationID)
	if err != nil {
		return nil, false
	}
	return &AppendResult{Conversation: conv, Message: existing, Blocked: blocked, Duplicate: true}, true
}

// appendLocked must run under the conversation lock.
func (s *Service) appendLocked(ctx context.Context, conv *models.Conversation, msg *models.Message) error {
	msg.CreatedAt = timestamp(s.now())
	// the preview never goes backwards, so keep insertion order and time order aligned
	if conv.LastMessageAt != nil && msg.CreatedAt.Before(*conv.LastMessageAt) {
		msg.CreatedAt = *conv.LastMessageAt
	}
	if err := s.msgs.Create(ctx, msg); err != nil {
		return fmt.Errorf("store message: %w", err)
	}
	metrics.MessagesAppended.WithLabelValues(msg.Direction).Inc()

	if err := s.convs.ApplyMessage(ctx, msg); err != nil {
		// the message row is the source of truth; the preview is repaired later
		log.Errorf("[Conversation] Preview update of conversation %d failed: %v", conv.ID, err)
		s.markStale(ctx, conv.TenantID, conv.ID)
	}
	return nil
}

// enforceMessageQuota runs the messages check after an inbound append and
// hands it to the job queue when it cannot complete.
func (s *Service) enforceMessageQuota(ctx context.Context, tenantID uint) {
	if err := s.applyMessageQuota(ctx, tenantID); err != nil {
		log.Warnf("[Conversation] Messages quota check for tenant %d failed: %v", tenantID, err)
		s.scheduleRecompute(ctx, tenantID, entitlements.ResourceMessages)
	}
}

// applyMessageQuota raises the tenant kill switch once messages are exhausted
// and announces the step into the near-limit band.
func (s *Service) applyMessageQuota(ctx context.Context, tenantID uint) error {
	u, err := s.usage.Recompute(ctx, tenantID, entitlements.ResourceMessages)
	if err != nil {
		return fmt.Errorf("messages usage: %w", err)
	}
	class := u.Classification()
	metrics.QuotaDecisions.WithLabelValues(string(u.Resource), string(class)).Inc()

	switch class {
	case entitlements.Blocked:
		if s.bots == nil {
			return nil
		}
		if _, err := s.bots.DisableAll(ctx, tenantID, u); err != nil {
			return fmt.Errorf("disable bots: %w", err)
		}
	case entitlements.NearLimit:
		if entitlements.Classify(u.Current-1, u.Max) == entitlements.Allowed {
			s.publish(ctx, notify.NewEvent(notify.EventUsageNearLimit, tenantID, 0, u))
		}
	}
	return nil
}

// SendOutbound delivers a reply through the provider and stores it. A human
// reply disables the bot for the contact first. Nothing is stored when the
// provider fails.
func (s *Service) SendOutbound(ctx context.Context, out OutboundMessage) (*AppendResult, error) {
	if out.TenantID == 0 || out.ConversationID == 0 {
		return nil, fmt.Errorf("%w: conversation is required", ErrInvalidMessage)
	}
	if strings.TrimSpace(out.Body) == "" {
		return nil, fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	if out.Author == "" {
		out.Author = models.AUTHOR_OPERATOR
	}
	if out.ContentType == "" {
		out.ContentType = models.CONTENT_TEXT
	}

	conv, blocked, err := s.Get(ctx, out.TenantID, out.ConversationID)
	if err != nil {
		return nil, err
	}
	if blocked {
		limit, _ := s.maxConversations(ctx, out.TenantID)
		return nil, &BlockedError{ConversationID: conv.ID, MaxConversations: limit}
	}

	if out.Author == models.AUTHOR_OPERATOR && s.bots != nil {
		s.bots.DisableForReply(ctx, botgate.Key{
			TenantID:  out.TenantID,
			ContactID: conv.ContactID,
			Instance:  conv.InstanceName,
		}, out.OperatorID)
	}

	sent, err := s.provider.Send(ctx, provider.SendRequest{
		Instance:    conv.InstanceName,
		To:          conv.ContactID,
		Body:        out.Body,
		ContentType: out.ContentType,
	})
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		TenantID:       out.TenantID,
		ConversationID: conv.ID,
		Direction:      models.DIRECTION_OUTBOUND,
		Author:         out.Author,
		OperatorID:     out.OperatorID,
		Body:           out.Body,
		ContentType:    out.ContentType,
		Read:           true,
	}
	if sent != nil && sent.ProviderMessageID != "" {
		pid := sent.ProviderMessageID
		msg.CorrelationID = &pid
	}

	unlock := s.locks.Lock(lockKey(conv.TenantID, conv.ContactID, conv.InstanceName))
	// reload under the lock so the timestamp guard sees the latest preview
	if fresh, err := s.convs.GetByID(ctx, conv.TenantID, conv.ID); err == nil {
		conv = fresh
	}
	err = s.appendLocked(ctx, conv, msg)
	unlock()
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.NewEvent(notify.EventMessageCreated, out.TenantID, conv.ID, msg))

	res := &AppendResult{Message: msg}
	res.Conversation, res.Blocked, err = s.Get(ctx, out.TenantID, conv.ID)
	if err != nil {
		res.Conversation = conv
	}
	return res, nil
}

// MarkRead resets the unread counter and flags inbound messages as read. Idempotent.
func (s *Service) MarkRead(ctx context.Context, tenantID, conversationID uint) (*models.Conversation, error) {
	conv, err := s.convs.GetByID(ctx, tenantID, conversationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(lockKey(conv.TenantID, conv.ContactID, conv.InstanceName))
	marked, err := s.msgs.MarkInboundRead(ctx, conv.ID)
	if err == nil {
		err = s.convs.ResetUnread(ctx, tenantID, conv.ID)
	}
	unlock()
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}

	hadUnread := conv.UnreadCount > 0 || marked > 0
	conv.UnreadCount = 0
	if hadUnread {
		s.publish(ctx, notify.NewEvent(notify.EventConversationRead, tenantID, conv.ID, map[string]interface{}{
			"conversation_id": conv.ID,
			"marked":          marked,
		}))
	}
	return conv, nil
}

func (s *Service) maxConversations(ctx context.Context, tenantID uint) (int64, error) {
	u, err := s.usage.Usage(ctx, tenantID, entitlements.ResourceConversations)
	if err != nil {
		return 0, err
	}
	return u.Max, nil
}

// tenantConversations loads every conversation of the tenant with stale
// previews repaired, plus the conversations maximum.
func (s *Service) tenantConversations(ctx context.Context, tenantID uint) ([]models.Conversation, int64, error) {
	convs, err := s.convs.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, 0, err
	}
	for i := range convs {
		if !s.isStale(convs[i].ID) {
			continue
		}
		if repaired, err := s.repair(ctx, &convs[i]); err == nil {
			convs[i] = *repaired
		}
	}
	limit, err := s.maxConversations(ctx, tenantID)
	if err != nil {
		return nil, 0, err
	}
	return convs, limit, nil
}

// List returns the visible conversations, most recently active first. The
// quota is applied tenant wide before filtering by instance.
func (s *Service) List(ctx context.Context, tenantID uint, instance string) (*ListResult, error) {
	convs, limit, err := s.tenantConversations(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	visible, blocked := entitlements.SelectVisible(convs, limit)
	instance = strings.TrimSpace(instance)

	res := &ListResult{Items: []models.Conversation{}, MaxConversations: limit}
	for _, c := range visible {
		if instance == "" || c.InstanceName == instance {
			res.Items = append(res.Items, c)
		}
	}
	for _, c := range blocked {
		if instance == "" || c.InstanceName == instance {
			res.BlockedCount++
		}
	}
	if len(blocked) > 0 {
		metrics.QuotaDecisions.WithLabelValues(string(entitlements.ResourceConversations), string(entitlements.Blocked)).Inc()
	}
	return res, nil
}

// Get returns one conversation and whether the quota hides it.
func (s *Service) Get(ctx context.Context, tenantID, conversationID uint) (*models.Conversation, bool, error) {
	convs, limit, err := s.tenantConversations(ctx, tenantID)
	if err != nil {
		return nil, false, err
	}
	visible := entitlements.VisibleIDs(convs, limit)
	for i := range convs {
		if convs[i].ID == conversationID {
			_, ok := visible[conversationID]
			c := convs[i]
			return &c, !ok, nil
		}
	}
	return nil, false, ErrNotFound
}

// Messages returns one page of history of a visible conversation.
func (s *Service) Messages(ctx context.Context, tenantID, conversationID, beforeID uint, limit int) ([]models.Message, error) {
	conv, blocked, err := s.Get(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	if blocked {
		quota, _ := s.maxConversations(ctx, tenantID)
		return nil, &BlockedError{ConversationID: conv.ID, MaxConversations: quota}
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	msgs, err := s.msgs.ListByConversation(ctx, conv.ID, beforeID, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}
