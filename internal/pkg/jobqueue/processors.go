package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuelReschke/ChatFox/app/models"
	"github.com/ManuelReschke/ChatFox/internal/pkg/botgate"
	"github.com/ManuelReschke/ChatFox/internal/pkg/conversation"
	"github.com/ManuelReschke/ChatFox/internal/pkg/entitlements"
	"github.com/gofiber/fiber/v2/log"
)

// BotSuppressor writes a per-contact bot disable.
type BotSuppressor interface {
	Disable(ctx context.Context, key botgate.Key, reason string, operatorID *uint) (bool, error)
}

// ConversationRepairer rebuilds a conversation preview.
type ConversationRepairer interface {
	Repair(ctx context.Context, tenantID, conversationID uint) error
}

// UsageRecomputer refreshes a usage figure.
type UsageRecomputer interface {
	Recompute(ctx context.Context, tenantID uint, r entitlements.Resource) (entitlements.Usage, error)
}

// QuotaEnforcer recounts a quota and applies what follows from it, such as
// raising the tenant bot switch.
type QuotaEnforcer interface {
	EnforceQuota(ctx context.Context, tenantID uint, r entitlements.Resource) error
}

// Handlers are the services jobs are dispatched to. A nil handler fails its jobs.
type Handlers struct {
	Bots          BotSuppressor
	Conversations ConversationRepairer
	Quotas        QuotaEnforcer
}

var errNoHandler = errors.New("no handler registered")

func (q *Queue) handle(ctx context.Context, job *Job) error {
	switch job.Type {
	case JobTypeBotSuppress:
		return q.processBotSuppressJob(ctx, job)
	case JobTypeConversationRepair:
		return q.processConversationRepairJob(ctx, job)
	case JobTypeUsageRecompute:
		return q.processUsageRecomputeJob(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (q *Queue) processBotSuppressJob(ctx context.Context, job *Job) error {
	if q.handlers.Bots == nil {
		return errNoHandler
	}
	p, err := BotSuppressJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	key := botgate.Key{TenantID: p.TenantID, ContactID: p.ContactID, Instance: p.Instance}
	_, err = q.handlers.Bots.Disable(ctx, key, models.SUPPRESSION_REASON_MANUAL_REPLY, p.OperatorID)
	if errors.Is(err, botgate.ErrInvalidKey) {
		log.Warnf("[JobQueue] Dropping bot suppress job %s: %v", job.ID, err)
		return nil
	}
	return err
}

func (q *Queue) processConversationRepairJob(ctx context.Context, job *Job) error {
	if q.handlers.Conversations == nil {
		return errNoHandler
	}
	p, err := ConversationRepairJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	err = q.handlers.Conversations.Repair(ctx, p.TenantID, p.ConversationID)
	if errors.Is(err, conversation.ErrNotFound) {
		return nil
	}
	return err
}

func (q *Queue) processUsageRecomputeJob(ctx context.Context, job *Job) error {
	if q.handlers.Quotas == nil {
		return errNoHandler
	}
	p, err := UsageRecomputeJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	resource, err := entitlements.ParseResource(p.Resource)
	if err != nil {
		log.Warnf("[JobQueue] Dropping usage job %s: %v", job.ID, err)
		return nil
	}
	return q.handlers.Quotas.EnforceQuota(ctx, p.TenantID, resource)
}

// ScheduleBotSuppress queues a retry of an implicit bot disable.
func (q *Queue) ScheduleBotSuppress(ctx context.Context, key botgate.Key, operatorID *uint) error {
	_, err := q.EnqueueJob(ctx, JobTypeBotSuppress, BotSuppressJobPayload{
		TenantID:   key.TenantID,
		ContactID:  key.ContactID,
		Instance:   key.Instance,
		OperatorID: operatorID,
	}.ToMap())
	return err
}

// ScheduleRepair queues a preview rebuild.
func (q *Queue) ScheduleRepair(ctx context.Context, tenantID, conversationID uint) error {
	_, err := q.EnqueueJob(ctx, JobTypeConversationRepair, ConversationRepairJobPayload{
		TenantID:       tenantID,
		ConversationID: conversationID,
	}.ToMap())
	return err
}

// ScheduleRecompute queues a quota re-evaluation after a failed inline one.
func (q *Queue) ScheduleRecompute(ctx context.Context, tenantID uint, r entitlements.Resource) error {
	_, err := q.EnqueueJob(ctx, JobTypeUsageRecompute, UsageRecomputeJobPayload{
		TenantID: tenantID,
		Resource: string(r),
	}.ToMap())
	return err
}
