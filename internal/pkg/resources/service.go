// Package resources creates the quota-bounded tenant resources: instances,
// contacts and campaigns.
package resources

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
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

var (
	ErrAlreadyExists    = errors.New("resource already exists")
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrCampaignSent     = errors.New("campaign already sent")
)

// UsageSource provides quota figures.
type UsageSource interface {
	Recompute(ctx context.Context, tenantID uint, r entitlements.Resource) (entitlements.Usage, error)
}

// Service gates resource creation on the tenant's plan.
type Service struct {
	repo     repository.ResourceRepository
	usage    UsageSource
	validate *validator.Validate
	now      func() time.Time

	// check-then-create is serialized per tenant so two requests cannot
	// both take the last unit
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewService(repo repository.ResourceRepository, usage UsageSource) *Service {
	return &Service{
		repo:     repo,
		usage:    usage,
		validate: validator.New(),
		now:      time.Now,
		locks:    make(map[uint]*sync.Mutex),
	}
}

func (s *Service) tenantLock(tenantID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tenantID] = l
	}
	return l
}

// gate runs create when one more unit of the resource fits the plan.
func (s *Service) gate(ctx context.Context, tenantID uint, resource entitlements.Resource, check func(entitlements.Usage) error, create func() error) error {
	l := s.tenantLock(tenantID)
	l.Lock()
	defer l.Unlock()

	u, err := s.usage.Recompute(ctx, tenantID, resource)
	if err != nil {
		return fmt.Errorf("usage of %s: %w", resource, err)
	}
	if err := check(u); err != nil {
		if entitlements.IsQuotaExceeded(err) || errors.Is(err, entitlements.ErrNoActivePlan) {
			metrics.QuotaDecisions.WithLabelValues(string(resource), string(entitlements.Blocked)).Inc()
			log.Infof("[Resources] Tenant %d denied %s: %v", tenantID, resource, err)
		}
		return err
	}
	metrics.QuotaDecisions.WithLabelValues(string(resource), string(u.Classification())).Inc()

	if err := create(); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyExists
		}
		return err
	}
	if _, err := s.usage.Recompute(ctx, tenantID, resource); err != nil {
		log.Warnf("[Resources] Recompute of %s for tenant %d failed: %v", resource, tenantID, err)
	}
	return nil
}

// CreateInstance registers a provider connection.
func (s *Service) CreateInstance(ctx context.Context, tenantID uint, name string) (*models.Instance, error) {
	inst := &models.Instance{
		TenantID: tenantID,
		Name:     strings.TrimSpace(name),
		Status:   models.INSTANCE_STATUS_DISCONNECTED,
	}
	if err := s.validate.Struct(inst); err != nil {
		return nil, err
	}
	err := s.gate(ctx, tenantID, entitlements.ResourceInstances, entitlements.CheckCreate, func() error {
		return s.repo.CreateInstance(ctx, inst)
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// CreateContact registers an addressable end customer.
func (s *Service) CreateContact(ctx context.Context, tenantID uint, identifier, name string) (*models.Contact, error) {
	contact := &models.Contact{
		TenantID:   tenantID,
		Identifier: strings.TrimSpace(identifier),
		Name:       strings.TrimSpace(name),
	}
	if err := s.validate.Struct(contact); err != nil {
		return nil, err
	}
	err := s.gate(ctx, tenantID, entitlements.ResourceContacts, entitlements.CheckCreate, func() error {
		return s.repo.CreateContact(ctx, contact)
	})
	if err != nil {
		return nil, err
	}
	return contact, nil
}

// CreateCampaign stores a draft. Drafts never count against the plan.
func (s *Service) CreateCampaign(ctx context.Context, tenantID uint, instance, name, body string) (*models.Campaign, error) {
	c := &models.Campaign{
		TenantID:     tenantID,
		InstanceName: strings.TrimSpace(instance),
		Name:         strings.TrimSpace(name),
		Body:         body,
		Status:       models.CAMPAIGN_STATUS_DRAFT,
	}
	if err := s.validate.Struct(c); err != nil {
		return nil, err
	}
	if err := s.repo.CreateCampaign(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) draft(ctx context.Context, tenantID, campaignID uint) (*models.Campaign, error) {
	c, err := s.repo.GetCampaign(ctx, tenantID, campaignID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.IsSent() {
		return nil, ErrCampaignSent
	}
	return c, nil
}

// SendCampaign moves a draft to sent when the campaigns quota allows it.
func (s *Service) SendCampaign(ctx context.Context, tenantID, campaignID uint) (*models.Campaign, error) {
	c, err := s.draft(ctx, tenantID, campaignID)
	if err != nil {
		return nil, err
	}

	check := func(u entitlements.Usage) error {
		// a concurrent send may have won while we waited for the tenant lock
		current, err := s.draft(ctx, tenantID, campaignID)
		if err != nil {
			return err
		}
		c = current
		return entitlements.CheckCampaignSend(u)
	}
	err = s.gate(ctx, tenantID, entitlements.ResourceCampaigns, check, func() error {
		at := s.now().UTC()
		if err := s.repo.UpdateCampaignStatus(ctx, c.ID, models.CAMPAIGN_STATUS_SENT, &at); err != nil {
			return err
		}
		c.Status = models.CAMPAIGN_STATUS_SENT
		c.SentAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Infof("[Resources] Campaign %d of tenant %d sent", c.ID, tenantID)
	return c, nil
}
