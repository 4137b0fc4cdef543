package memory

import (
	"context"
	"sync"
	"time"

	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
)

// relKey is the uniqueness key of a directed edge within a tenant
type relKey struct {
	tenantID types.TenantID
	from     model.MemoryID
	to       model.MemoryID
}

type relationshipRepository struct {
	mu    sync.RWMutex
	edges map[relKey]*model.MemoryRelationship
	order []relKey // insertion order for deterministic listings
}

func newRelationshipRepository() *relationshipRepository {
	return &relationshipRepository{
		edges: make(map[relKey]*model.MemoryRelationship),
	}
}

func (r *relationshipRepository) Create(ctx context.Context, rel *model.MemoryRelationship) (*model.MemoryRelationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	key := relKey{tenantID: rel.TenantID, from: rel.FromID, to: rel.ToID}

	if existing, exists := r.edges[key]; exists {
		// Second create for the same pair updates in place.
		existing.Type = rel.Type
		existing.Strength = rel.Strength
		existing.UpdatedAt = now
		return existing.Clone(), nil
	}

	created := rel.Clone()
	if created.ID == "" {
		created.ID = model.NewRelationshipID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	r.edges[key] = created
	r.order = append(r.order, key)
	return created.Clone(), nil
}

func (r *relationshipRepository) ListByFrom(ctx context.Context, tenantID types.TenantID, from model.MemoryID) ([]*model.MemoryRelationship, error) {
	return r.list(tenantID, func(k relKey) bool { return k.from == from })
}

func (r *relationshipRepository) ListByTo(ctx context.Context, tenantID types.TenantID, to model.MemoryID) ([]*model.MemoryRelationship, error) {
	return r.list(tenantID, func(k relKey) bool { return k.to == to })
}

func (r *relationshipRepository) ListByTenant(ctx context.Context, tenantID types.TenantID) ([]*model.MemoryRelationship, error) {
	return r.list(tenantID, func(relKey) bool { return true })
}

func (r *relationshipRepository) ListByType(ctx context.Context, tenantID types.TenantID, relType types.RelationType) ([]*model.MemoryRelationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*model.MemoryRelationship{}
	for _, key := range r.order {
		if key.tenantID != tenantID {
			continue
		}
		if edge := r.edges[key]; edge != nil && edge.Type == relType {
			result = append(result, edge.Clone())
		}
	}
	return result, nil
}

func (r *relationshipRepository) list(tenantID types.TenantID, match func(relKey) bool) ([]*model.MemoryRelationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*model.MemoryRelationship{}
	for _, key := range r.order {
		if key.tenantID != tenantID || !match(key) {
			continue
		}
		if edge := r.edges[key]; edge != nil {
			result = append(result, edge.Clone())
		}
	}
	return result, nil
}

func (r *relationshipRepository) DeleteByFrom(ctx context.Context, tenantID types.TenantID, from model.MemoryID) (int, error) {
	return r.deleteMatching(func(k relKey) bool {
		return k.tenantID == tenantID && k.from == from
	}), nil
}

func (r *relationshipRepository) DeleteByMemory(ctx context.Context, tenantID types.TenantID, id model.MemoryID) (int, error) {
	return r.deleteMatching(func(k relKey) bool {
		return k.tenantID == tenantID && (k.from == id || k.to == id)
	}), nil
}

func (r *relationshipRepository) DeleteByPair(ctx context.Context, tenantID types.TenantID, from, to model.MemoryID) (bool, error) {
	removed := r.deleteMatching(func(k relKey) bool {
		return k.tenantID == tenantID && k.from == from && k.to == to
	})
	return removed > 0, nil
}

// deleteMatching removes every edge matching the predicate in a single
// critical section so the cascade on memory deletion is one atomic step.
func (r *relationshipRepository) deleteMatching(match func(relKey) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	kept := r.order[:0]
	for _, key := range r.order {
		if match(key) {
			delete(r.edges, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	r.order = kept
	return removed
}
