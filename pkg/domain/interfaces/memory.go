package interfaces

import (
	"context"

	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
)

// MemoryRepository defines the interface for Memory data persistence.
//
// Save, Delete and the counter methods treat the primary record and the
// tenant/tag indices as one logical transaction: a reader never observes
// an index entry pointing at a missing record, nor a visible record
// absent from its indices.
type MemoryRepository interface {
	// Save persists the memory. An unset ID is generated. On first save
	// Version is 1 and CreatedAt is set; on updates the pre-update
	// snapshot is archived, Version increments by exactly 1 and
	// UpdatedAt refreshes. Writes to the same ID serialize.
	Save(ctx context.Context, memory *model.Memory) (*model.Memory, error)

	// Get retrieves a memory by ID. A miss is ErrNotFound.
	Get(ctx context.Context, id model.MemoryID) (*model.Memory, error)

	// ListByTenant returns the tenant's memories in insertion order,
	// resolved through the tenant index (never a full-store scan).
	ListByTenant(ctx context.Context, tenantID types.TenantID) ([]*model.Memory, error)

	// ListByCategory filters the tenant's memories by category.
	ListByCategory(ctx context.Context, tenantID types.TenantID, category types.Category) ([]*model.Memory, error)

	// ListByImportance filters the tenant's memories by importance,
	// ordered by AccessCount descending with ties broken by insertion
	// order.
	ListByImportance(ctx context.Context, tenantID types.TenantID, importance types.Importance) ([]*model.Memory, error)

	// FindByTags returns the tenant's memories carrying ALL given tags
	// (set intersection across per-tag index sets). Empty tags or an
	// empty intersection yield an empty result, never an error.
	FindByTags(ctx context.Context, tenantID types.TenantID, tags []string) ([]*model.Memory, error)

	// Search returns up to limit memories of the tenant ordered by
	// AccessCount descending, ties broken by insertion order. This is
	// the default ranking contract; semantic rankers substitute it
	// behind the ranking.Ranker interface without touching callers.
	// limit <= 0 returns an empty result.
	Search(ctx context.Context, tenantID types.TenantID, limit int) ([]*model.Memory, error)

	// Delete removes the memory and all its index entries. Returns
	// false (not an error) when the ID does not exist.
	Delete(ctx context.Context, id model.MemoryID) (bool, error)

	// CountByTenant returns the number of memories the tenant owns.
	CountByTenant(ctx context.Context, tenantID types.TenantID) (int, error)

	// Versions returns the archived version numbers for the memory in
	// descending order. A memory that was never updated has none.
	Versions(ctx context.Context, tenantID types.TenantID, id model.MemoryID) ([]int, error)

	// TrimVersions drops archived snapshots beyond keep per memory,
	// oldest first. Returns the number of snapshots removed.
	TrimVersions(ctx context.Context, keep int) (int, error)

	// RecordAccess bumps AccessCount and LastAccessedAt for a read that
	// represents agent usage. Counter bumps do not advance Version.
	RecordAccess(ctx context.Context, id model.MemoryID) error

	// RecordInjection bumps InjectionCount after the memory was
	// injected into an agent prompt.
	RecordInjection(ctx context.Context, id model.MemoryID) error

	// RecordFeedback bumps HelpfulCount or NotHelpfulCount.
	RecordFeedback(ctx context.Context, id model.MemoryID, helpful bool) error
}
