// Package botgate decides whether the automated responder may answer a contact.
package botgate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
	"github.com/ManuelReschke/ChatFox/app/repository"
	"github.com/ManuelReschke/ChatFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/ChatFox/internal/pkg/metrics"
	"github.com/ManuelReschke/ChatFox/internal/pkg/notify"
	"github.com/gofiber/fiber/v2/log"
)

var ErrInvalidKey = errors.New("contact and instance are required")

// Key addresses the responder of one contact on one instance.
type Key struct {
	TenantID  uint   `json:"tenant_id"`
	ContactID string `json:"contact"`
	Instance  string `json:"instance"`
}

func (k Key) validate() error {
	if k.TenantID == 0 || strings.TrimSpace(k.ContactID) == "" || strings.TrimSpace(k.Instance) == "" {
		return ErrInvalidKey
	}
	return nil
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s/%s", k.TenantID, k.Instance, k.ContactID)
}

// Status is the full responder state of a key.
type Status struct {
	Key             Key  `json:"key"`
	Enabled         bool `json:"enabled"`
	QuotaSuppressed bool `json:"quota_suppressed"`
	Effective       bool `json:"effective"`
}

// RetryScheduler queues a failed implicit disable for a later attempt.
type RetryScheduler interface {
	ScheduleBotSuppress(ctx context.Context, key Key, operatorID *uint) error
}

// Gate guards the per-contact toggle and the tenant kill switch. Tenant-wide
// transitions take the tenant lock exclusively, per-contact toggles share it.
type Gate struct {
	repo  repository.BotRepository
	pub   notify.Publisher
	retry RetryScheduler
	now   func() time.Time

	mu      sync.Mutex
	tenants map[uint]*sync.RWMutex

	fallbackDelay    time.Duration
	fallbackAttempts int
}

// NewGate creates a gate. pub may be nil.
func NewGate(repo repository.BotRepository, pub notify.Publisher) *Gate {
	return &Gate{
		repo:             repo,
		pub:              pub,
		now:              time.Now,
		tenants:          make(map[uint]*sync.RWMutex),
		fallbackDelay:    2 * time.Second,
		fallbackAttempts: 5,
	}
}

// SetRetryScheduler routes failed implicit disables to the job queue.
func (g *Gate) SetRetryScheduler(r RetryScheduler) {
	g.retry = r
}

func (g *Gate) tenantLock(tenantID uint) *sync.RWMutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.tenants[tenantID]
	if !ok {
		l = &sync.RWMutex{}
		g.tenants[tenantID] = l
	}
	return l
}

func (g *Gate) publish(ctx context.Context, ev notify.Event) {
	if g.pub != nil {
		g.pub.Publish(ctx, ev)
	}
}

// Disable suppresses the responder for the key. Disabling an already
// disabled key succeeds without a second row or event.
func (g *Gate) Disable(ctx context.Context, key Key, reason string, operatorID *uint) (bool, error) {
	if err := key.validate(); err != nil {
		return false, err
	}
	if reason == "" {
		reason = models.SUPPRESSION_REASON_OPERATOR
	}
	l := g.tenantLock(key.TenantID)
	l.RLock()
	defer l.RUnlock()

	created, err := g.repo.InsertSuppression(ctx, &models.BotSuppression{
		TenantID:     key.TenantID,
		ContactID:    key.ContactID,
		InstanceName: key.Instance,
		Reason:       reason,
		OperatorID:   operatorID,
	})
	if err != nil {
		return false, fmt.Errorf("disable bot %s: %w", key, err)
	}
	if !created {
		log.Debugf("[BotGate] %s already disabled", key)
		return false, nil
	}
	metrics.BotTransitions.WithLabelValues("disable").Inc()
	g.publish(ctx, notify.NewEvent(notify.EventBotDisabled, key.TenantID, 0, map[string]interface{}{
		"contact": key.ContactID, "instance": key.Instance, "reason": reason,
	}))
	return true, nil
}

// Enable lifts the suppression for the key. Enabling an enabled key succeeds.
func (g *Gate) Enable(ctx context.Context, key Key) (bool, error) {
	if err := key.validate(); err != nil {
		return false, err
	}
	l := g.tenantLock(key.TenantID)
	l.RLock()
	defer l.RUnlock()

	deleted, err := g.repo.DeleteSuppression(ctx, key.TenantID, key.ContactID, key.Instance)
	if err != nil {
		return false, fmt.Errorf("enable bot %s: %w", key, err)
	}
	if !deleted {
		return false, nil
	}
	metrics.BotTransitions.WithLabelValues("enable").Inc()
	g.publish(ctx, notify.NewEvent(notify.EventBotEnabled, key.TenantID, 0, map[string]interface{}{
		"contact": key.ContactID, "instance": key.Instance,
	}))
	return true, nil
}

// IsEnabled reports the per-contact toggle. A key never disabled is enabled.
func (g *Gate) IsEnabled(ctx context.Context, key Key) (bool, error) {
	if err := key.validate(); err != nil {
		return false, err
	}
	exists, err := g.repo.SuppressionExists(ctx, key.TenantID, key.ContactID, key.Instance)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// EffectiveEnabled combines the per-contact toggle with the tenant kill switch.
func (g *Gate) EffectiveEnabled(ctx context.Context, key Key) (Status, error) {
	enabled, err := g.IsEnabled(ctx, key)
	if err != nil {
		return Status{}, err
	}
	state, err := g.repo.GetTenantState(ctx, key.TenantID)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Key:             key,
		Enabled:         enabled,
		QuotaSuppressed: state.QuotaSuppressed,
		Effective:       enabled && !state.QuotaSuppressed,
	}, nil
}

// Suppressions lists the per-contact disables of a tenant.
func (g *Gate) Suppressions(ctx context.Context, tenantID uint) ([]models.BotSuppression, error) {
	return g.repo.ListSuppressions(ctx, tenantID)
}

// QuotaSuppressed reports whether the tenant kill switch is raised.
func (g *Gate) QuotaSuppressed(ctx context.Context, tenantID uint) (bool, error) {
	state, err := g.repo.GetTenantState(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return state.QuotaSuppressed, nil
}

// DisableAll raises the tenant kill switch. Only the call that actually flips
// it publishes bots.disabled_all, so a quota crossing is announced once.
func (g *Gate) DisableAll(ctx context.Context, tenantID uint, usage entitlements.Usage) (bool, error) {
	l := g.tenantLock(tenantID)
	l.Lock()
	defer l.Unlock()

	changed, err := g.repo.SetQuotaSuppressed(ctx, tenantID, true, g.now())
	if err != nil {
		return false, fmt.Errorf("disable all bots of tenant %d: %w", tenantID, err)
	}
	if !changed {
		return false, nil
	}
	metrics.BotTransitions.WithLabelValues("disable_all").Inc()
	log.Infof("[BotGate] Tenant %d bots disabled, messages %d/%d (plan=%t)", tenantID, usage.Current, usage.Max, usage.HasPlan)
	g.publish(ctx, notify.NewEvent(notify.EventBotsDisabledAll, tenantID, 0, usage))
	return true, nil
}

// RestoreTenant lowers the kill switch once messages are back under quota.
// Per-contact disables stay untouched.
func (g *Gate) RestoreTenant(ctx context.Context, tenantID uint, usage entitlements.Usage) (bool, error) {
	if !usage.HasPlan || usage.Classification() == entitlements.Blocked {
		return false, nil
	}
	l := g.tenantLock(tenantID)
	l.Lock()
	defer l.Unlock()

	changed, err := g.repo.SetQuotaSuppressed(ctx, tenantID, false, g.now())
	if err != nil {
		return false, fmt.Errorf("restore bots of tenant %d: %w", tenantID, err)
	}
	if !changed {
		return false, nil
	}
	metrics.BotTransitions.WithLabelValues("restore").Inc()
	log.Infof("[BotGate] Tenant %d bots restored, messages %d/%d", tenantID, usage.Current, usage.Max)
	g.publish(ctx, notify.NewEvent(notify.EventBotsRestored, tenantID, 0, usage))
	return true, nil
}

// DisableForReply is the implicit disable before a human reply. It never
// fails the caller: errors are logged and the disable is retried later.
func (g *Gate) DisableForReply(ctx context.Context, key Key, operatorID *uint) {
	_, err := g.Disable(ctx, key, models.SUPPRESSION_REASON_MANUAL_REPLY, operatorID)
	if err == nil || errors.Is(err, ErrInvalidKey) {
		return
	}
	log.Errorf("[BotGate] Implicit disable of %s failed, scheduling retry: %v", key, err)

	if g.retry != nil {
		qerr := g.retry.ScheduleBotSuppress(context.WithoutCancel(ctx), key, operatorID)
		if qerr == nil {
			return
		}
		log.Warnf("[BotGate] Queueing retry for %s failed, retrying in-process: %v", key, qerr)
	}
	g.retryInProcess(key, operatorID, 1)
}

func (g *Gate) retryInProcess(key Key, operatorID *uint, attempt int) {
	delay := g.fallbackDelay * time.Duration(1<<uint(attempt-1))
	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := g.Disable(ctx, key, models.SUPPRESSION_REASON_MANUAL_REPLY, operatorID); err != nil {
			if attempt >= g.fallbackAttempts {
				log.Errorf("[BotGate] Giving up implicit disable of %s after %d attempts: %v", key, attempt, err)
				return
			}
			g.retryInProcess(key, operatorID, attempt+1)
		}
	})
}
