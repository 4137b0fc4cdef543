package interfaces

import (
	"context"

	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
)

// RelationshipRepository defines the interface for MemoryRelationship
// persistence. All queries are tenant-scoped.
type RelationshipRepository interface {
	// Create upserts the edge keyed by (FromID, ToID) within the
	// tenant: a second Create for the same pair updates Type and
	// Strength in place instead of duplicating.
	Create(ctx context.Context, rel *model.MemoryRelationship) (*model.MemoryRelationship, error)

	// ListByFrom returns edges originating at the memory.
	ListByFrom(ctx context.Context, tenantID types.TenantID, from model.MemoryID) ([]*model.MemoryRelationship, error)

	// ListByTo returns edges pointing at the memory.
	ListByTo(ctx context.Context, tenantID types.TenantID, to model.MemoryID) ([]*model.MemoryRelationship, error)

	// ListByTenant returns all edges of the tenant.
	ListByTenant(ctx context.Context, tenantID types.TenantID) ([]*model.MemoryRelationship, error)

	// ListByType filters the tenant's edges by relation type.
	ListByType(ctx context.Context, tenantID types.TenantID, relType types.RelationType) ([]*model.MemoryRelationship, error)

	// DeleteByFrom removes all edges originating at the memory.
	// Returns the number of edges removed.
	DeleteByFrom(ctx context.Context, tenantID types.TenantID, from model.MemoryID) (int, error)

	// DeleteByMemory removes all edges where the memory is either
	// endpoint. Used by the cascade on memory deletion.
	DeleteByMemory(ctx context.Context, tenantID types.TenantID, id model.MemoryID) (int, error)

	// DeleteByPair removes the single edge for the pair. Returns false
	// when no such edge exists.
	DeleteByPair(ctx context.Context, tenantID types.TenantID, from, to model.MemoryID) (bool, error)
}
