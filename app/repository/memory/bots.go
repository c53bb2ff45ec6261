package memory

import (
	"context"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
)

type botRepository struct{ s *Store }

func (r *botRepository) InsertSuppression(_ context.Context, sup *models.BotSuppression) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range r.s.suppressions {
		if row.TenantID == sup.TenantID && row.ContactID == sup.ContactID && row.InstanceName == sup.InstanceName {
			return false, nil
		}
	}
	sup.ID = r.s.next("bot_suppressions")
	sup.CreatedAt = r.s.now()
	r.s.suppressions[sup.ID] = *sup
	return true, nil
}

func (r *botRepository) DeleteSuppression(_ context.Context, tenantID uint, contact, instance string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, row := range r.s.suppressions {
		if row.TenantID == tenantID && row.ContactID == contact && row.InstanceName == instance {
			delete(r.s.suppressions, id)
			return true, nil
		}
	}
	return false, nil
}

func (r *botRepository) SuppressionExists(_ context.Context, tenantID uint, contact, instance string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, row := range r.s.suppressions {
		if row.TenantID == tenantID && row.ContactID == contact && row.InstanceName == instance {
			return true, nil
		}
	}
	return false, nil
}

func (r *botRepository) ListSuppressions(_ context.Context, tenantID uint) ([]models.BotSuppression, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var rows []models.BotSuppression
	for _, id := range sortedKeys(r.s.suppressions) {
		if row := r.s.suppressions[id]; row.TenantID == tenantID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (r *botRepository) GetTenantState(_ context.Context, tenantID uint) (*models.TenantBotState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	state, ok := r.s.tenantStates[tenantID]
	if !ok {
		return &models.TenantBotState{TenantID: tenantID}, nil
	}
	return &state, nil
}

func (r *botRepository) SetQuotaSuppressed(_ context.Context, tenantID uint, suppressed bool, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	state := r.s.tenantStates[tenantID]
	state.TenantID = tenantID
	if state.QuotaSuppressed == suppressed {
		return false, nil
	}
	state.QuotaSuppressed = suppressed
	t := at
	if suppressed {
		state.SuppressedAt = &t
	} else {
		state.RestoredAt = &t
	}
	state.UpdatedAt = r.s.now()
	r.s.tenantStates[tenantID] = state
	return true, nil
}

func (r *botRepository) ListQuotaSuppressedTenants(_ context.Context) ([]uint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var ids []uint
	for _, id := range sortedKeys(r.s.tenantStates) {
		if r.s.tenantStates[id].QuotaSuppressed {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
