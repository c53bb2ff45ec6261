package memory

import (
	"context"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
)

type resourceRepository struct{ s *Store }

func (r *resourceRepository) CreateInstance(_ context.Context, instance *models.Instance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, in := range r.s.instances {
		if in.TenantID == instance.TenantID && in.Name == instance.Name {
			return duplicate()
		}
	}
	if instance.ID == 0 {
		instance.ID = r.s.next("instances")
	}
	if instance.Status == "" {
		instance.Status = models.INSTANCE_STATUS_DISCONNECTED
	}
	now := r.s.now()
	instance.CreatedAt, instance.UpdatedAt = now, now
	r.s.instances[instance.ID] = *instance
	return nil
}

func (r *resourceRepository) CreateContact(_ context.Context, contact *models.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.contacts {
		if c.TenantID == contact.TenantID && c.Identifier == contact.Identifier {
			return duplicate()
		}
	}
	if contact.ID == 0 {
		contact.ID = r.s.next("contacts")
	}
	now := r.s.now()
	contact.CreatedAt, contact.UpdatedAt = now, now
	r.s.contacts[contact.ID] = *contact
	return nil
}

func (r *resourceRepository) CreateCampaign(_ context.Context, campaign *models.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if campaign.ID == 0 {
		campaign.ID = r.s.next("campaigns")
	}
	if campaign.Status == "" {
		campaign.Status = models.CAMPAIGN_STATUS_DRAFT
	}
	now := r.s.now()
	campaign.CreatedAt, campaign.UpdatedAt = now, now
	r.s.campaigns[campaign.ID] = *campaign
	return nil
}

func (r *resourceRepository) GetCampaign(_ context.Context, tenantID, id uint) (*models.Campaign, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.campaigns[id]
	if !ok || c.TenantID != tenantID {
		return nil, notFound()
	}
	return &c, nil
}

func (r *resourceRepository) UpdateCampaignStatus(_ context.Context, id uint, status string, sentAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil
	}
	c.Status = status
	if sentAt != nil {
		t := *sentAt
		c.SentAt = &t
	}
	c.UpdatedAt = r.s.now()
	r.s.campaigns[id] = c
	return nil
}

type usageRepository struct{ s *Store }

func (r *usageRepository) CountInstances(_ context.Context, tenantID uint) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, in := range r.s.instances {
		if in.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (r *usageRepository) CountContacts(_ context.Context, tenantID uint) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, c := range r.s.contacts {
		if c.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (r *usageRepository) CountSentCampaigns(_ context.Context, tenantID uint) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, c := range r.s.campaigns {
		if c.TenantID == tenantID && c.IsSent() {
			n++
		}
	}
	return n, nil
}

func (r *usageRepository) CountConversations(_ context.Context, tenantID uint) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, c := range r.s.conversations {
		if c.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (r *usageRepository) CountInboundMessages(_ context.Context, tenantID uint, since time.Time) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, m := range r.s.messages {
		if m.TenantID == tenantID && m.IsInbound() && !m.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}
