package memory

import (
	"context"
	"sync"
	"time"

	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
)

type auditLogRepository struct {
	mu      sync.RWMutex
	entries map[types.TenantID][]*model.AuditLog // append order == CreatedAt order
}

func newAuditLogRepository() *auditLogRepository {
	return &auditLogRepository{
		entries: make(map[types.TenantID][]*model.AuditLog),
	}
}

func (r *auditLogRepository) Put(ctx context.Context, entry *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := entry.Clone()
	if stored.ID == "" {
		stored.ID = model.NewAuditLogID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	r.entries[stored.TenantID] = append(r.entries[stored.TenantID], stored)
	return nil
}

func (r *auditLogRepository) List(ctx context.Context, tenantID types.TenantID, limit, offset int) ([]*model.AuditLog, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.entries[tenantID]
	total := len(all)

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= total {
		return []*model.AuditLog{}, total, nil
	}

	// Entries append in creation order; walk backwards for CreatedAt
	// descending.
	result := make([]*model.AuditLog, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(result) < limit; i-- {
		result = append(result, all[i].Clone())
	}
	return result, total, nil
}

func (r *auditLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for tenantID, all := range r.entries {
		kept := all[:0]
		for _, entry := range all {
			if entry.CreatedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, entry)
		}
		if len(kept) == 0 {
			delete(r.entries, tenantID)
			continue
		}
		r.entries[tenantID] = kept
	}
	return removed, nil
}
