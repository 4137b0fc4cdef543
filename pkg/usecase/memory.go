package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/engram-dev/engram/pkg/domain/interfaces"
	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	fsrepo "github.com/engram-dev/engram/pkg/repository/firestore"
	memrepo "github.com/engram-dev/engram/pkg/repository/memory"
	"github.com/engram-dev/engram/pkg/service/ranking"
	"github.com/engram-dev/engram/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// isNotFound matches the lookup-miss sentinel of either repository
// backend.
func isNotFound(err error) bool {
	return errors.Is(err, memrepo.ErrNotFound) || errors.Is(err, fsrepo.ErrNotFound)
}

// CreateMemoryInput carries the caller-supplied fields of a new memory.
type CreateMemoryInput struct {
	Content    string
	Summary    string
	Category   types.Category
	Importance types.Importance
	Tags       []string
	Metadata   map[string]string
}

// UpdateMemoryInput carries the mutable fields of an existing memory.
// Nil pointers leave the field unchanged.
type UpdateMemoryInput struct {
	Content    *string
	Summary    *string
	Category   *types.Category
	Importance *types.Importance
	Tags       []string
	Metadata   map[string]string
}

// MemoryUseCase implements memory lifecycle operations on top of the
// repository, enforcing tenant ownership on every path.
type MemoryUseCase struct {
	repo          interfaces.Repository
	ranker        ranking.Ranker
	cache         *searchCache
	searchTimeout time.Duration
}

func NewMemoryUseCase(repo interfaces.Repository, ranker ranking.Ranker, cache *searchCache, searchTimeout time.Duration) *MemoryUseCase {
	return &MemoryUseCase{
		repo:          repo,
		ranker:        ranker,
		cache:         cache,
		searchTimeout: searchTimeout,
	}
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return goerr.New("memory content must not be empty")
	}
	if len(content) > model.MaxContentLength {
		return goerr.New("memory content exceeds size limit",
			goerr.V("length", len(content)),
			goerr.V("limit", model.MaxContentLength))
	}
	return nil
}

// Create stores a new memory for the tenant and indexes it for
// retrieval.
func (uc *MemoryUseCase) Create(ctx context.Context, tenantID types.TenantID, input CreateMemoryInput) (*model.Memory, error) {
	if err := validateContent(input.Content); err != nil {
		return nil, err
	}

	mem := &model.Memory{
		TenantID:   tenantID,
		Content:    input.Content,
		Summary:    input.Summary,
		Category:   input.Category,
		Importance: input.Importance.Normalize(),
		Tags:       input.Tags,
		Metadata:   input.Metadata,
	}
	if err := mem.Validate(); err != nil {
		return nil, err
	}

	saved, err := uc.repo.Memory().Save(ctx, mem)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create memory",
			goerr.V(TenantIDKey, tenantID.String()))
	}

	uc.index(ctx, saved)
	uc.cache.invalidate(tenantID)

	return saved, nil
}

// Get returns the tenant's memory and records the access. A memory of
// another tenant is reported as denied, not as missing, so the caller
// can distinguish a policy violation from a dangling reference.
func (uc *MemoryUseCase) Get(ctx context.Context, tenantID types.TenantID, id model.MemoryID) (*model.Memory, error) {
	mem, err := uc.getOwned(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if err := uc.repo.Memory().RecordAccess(ctx, id); err != nil {
		logging.From(ctx).Warn("failed to record memory access",
			"memory_id", id.String(), "error", err.Error())
	} else {
		mem.AccessCount++
		mem.LastAccessedAt = time.Now().UTC()
	}

	return mem, nil
}

// getOwned fetches the memory and enforces tenant ownership without
// touching usage counters.
func (uc *MemoryUseCase) getOwned(ctx context.Context, tenantID types.TenantID, id model.MemoryID) (*model.Memory, error) {
	mem, err := uc.repo.Memory().Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, goerr.Wrap(ErrMemoryNotFound, "memory not found",
				goerr.V(MemoryIDKey, id.String()))
		}
		return nil, goerr.Wrap(err, "failed to get memory",
			goerr.V(MemoryIDKey, id.String()))
	}

	if mem.TenantID != tenantID {
		return nil, goerr.Wrap(ErrTenantDenied, "access denied",
			goerr.V(MemoryIDKey, id.String()),
			goerr.V(TenantIDKey, tenantID.String()))
	}

	return mem, nil
}

// Update applies the given changes and bumps the memory version.
func (uc *MemoryUseCase) Update(ctx context.Context, tenantID types.TenantID, id model.MemoryID, input UpdateMemoryInput) (*model.Memory, error) {
	mem, err := uc.getOwned(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if input.Content != nil {
		if err := validateContent(*input.Content); err != nil {
			return nil, err
		}
		mem.Content = *input.Content
	}
	if input.Summary != nil {
		mem.Summary = *input.Summary
	}
	if input.Category != nil {
		mem.Category = *input.Category
	}
	if input.Importance != nil {
		mem.Importance = input.Importance.Normalize()
	}
	if input.Tags != nil {
		mem.Tags = input.Tags
	}
	if input.Metadata != nil {
		mem.Metadata = input.Metadata
	}
	if err := mem.Validate(); err != nil {
		return nil, err
	}

	saved, err := uc.repo.Memory().Save(ctx, mem)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update memory",
			goerr.V(MemoryIDKey, id.String()))
	}

	uc.index(ctx, saved)
	uc.cache.invalidate(tenantID)

	return saved, nil
}

// List returns all memories of the tenant in insertion order.
func (uc *MemoryUseCase) List(ctx context.Context, tenantID types.TenantID) ([]*model.Memory, error) {
	memories, err := uc.repo.Memory().ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories",
			goerr.V(TenantIDKey, tenantID.String()))
	}
	return memories, nil
}

// ListByCategory returns the tenant's memories in the category.
func (uc *MemoryUseCase) ListByCategory(ctx context.Context, tenantID types.TenantID, category types.Category) ([]*model.Memory, error) {
	memories, err := uc.repo.Memory().ListByCategory(ctx, tenantID, category)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories by category",
			goerr.V(TenantIDKey, tenantID.String()))
	}
	return memories, nil
}

// FindByTags returns the tenant's memories carrying every given tag.
func (uc *MemoryUseCase) FindByTags(ctx context.Context, tenantID types.TenantID, tags []string) ([]*model.Memory, error) {
	memories, err := uc.repo.Memory().FindByTags(ctx, tenantID, tags)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find memories by tags",
			goerr.V(TenantIDKey, tenantID.String()))
	}
	return memories, nil
}

// Search returns up to limit memories ranked for the query. Results
// are served from the per-tenant cache when a recent identical search
// exists. The whole search runs under a deadline; exceeding it
// surfaces as context.DeadlineExceeded.
func (uc *MemoryUseCase) Search(ctx context.Context, tenantID types.TenantID, query string, limit int) ([]*model.Memory, error) {
	if limit <= 0 {
		return []*model.Memory{}, nil
	}

	if cached, ok := uc.cache.get(tenantID, query, limit); ok {
		return cached, nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, uc.searchTimeout)
	defer cancel()

	memories, err := uc.ranker.Rank(searchCtx, tenantID, query, limit)
	if err != nil {
		if searchCtx.Err() != nil {
			return nil, goerr.Wrap(context.DeadlineExceeded, "memory search timed out",
				goerr.V(TenantIDKey, tenantID.String()),
				goerr.V("timeout", uc.searchTimeout.String()))
		}
		return nil, goerr.Wrap(err, "failed to search memories",
			goerr.V(TenantIDKey, tenantID.String()))
	}

	uc.cache.set(tenantID, query, limit, memories)
	return memories, nil
}

// Delete removes the memory and cascades to every relationship that
// touches it. Returns ErrMemoryNotFound when the tenant has no such
// memory.
func (uc *MemoryUseCase) Delete(ctx context.Context, tenantID types.TenantID, id model.MemoryID) error {
	if _, err := uc.getOwned(ctx, tenantID, id); err != nil {
		return err
	}

	// Edges go first: a crash between the two steps leaves a memory
	// without edges, never an edge without its memory.
	removed, err := uc.repo.Relationship().DeleteByMemory(ctx, tenantID, id)
	if err != nil {
		return goerr.Wrap(err, "failed to cascade relationship delete",
			goerr.V(MemoryIDKey, id.String()))
	}
	if removed > 0 {
		logging.From(ctx).Debug("cascaded relationship delete",
			"memory_id", id.String(), "removed", removed)
	}

	found, err := uc.repo.Memory().Delete(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to delete memory",
			goerr.V(MemoryIDKey, id.String()))
	}
	if !found {
		return goerr.Wrap(ErrMemoryNotFound, "memory not found",
			goerr.V(MemoryIDKey, id.String()))
	}

	if err := uc.ranker.Remove(ctx, tenantID, id); err != nil {
		logging.From(ctx).Warn("failed to drop memory from ranking index",
			"memory_id", id.String(), "error", err.Error())
	}
	uc.cache.invalidate(tenantID)

	return nil
}

// Feedback records whether an injected memory helped.
func (uc *MemoryUseCase) Feedback(ctx context.Context, tenantID types.TenantID, id model.MemoryID, helpful bool) error {
	if _, err := uc.getOwned(ctx, tenantID, id); err != nil {
		return err
	}

	if err := uc.repo.Memory().RecordFeedback(ctx, id, helpful); err != nil {
		return goerr.Wrap(err, "failed to record feedback",
			goerr.V(MemoryIDKey, id.String()))
	}
	return nil
}

// Versions returns the archived version numbers of the memory, newest
// first.
func (uc *MemoryUseCase) Versions(ctx context.Context, tenantID types.TenantID, id model.MemoryID) ([]int, error) {
	versions, err := uc.repo.Memory().Versions(ctx, tenantID, id)
	if err != nil {
		if isNotFound(err) {
			return nil, goerr.Wrap(ErrMemoryNotFound, "memory not found",
				goerr.V(MemoryIDKey, id.String()))
		}
		return nil, goerr.Wrap(err, "failed to list memory versions",
			goerr.V(MemoryIDKey, id.String()))
	}
	return versions, nil
}

// Count returns how many memories the tenant holds.
func (uc *MemoryUseCase) Count(ctx context.Context, tenantID types.TenantID) (int, error) {
	count, err := uc.repo.Memory().CountByTenant(ctx, tenantID)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count memories",
			goerr.V(TenantIDKey, tenantID.String()))
	}
	return count, nil
}

// index registers the memory with the ranker. Indexing failures are
// logged, not returned: the memory is already durable.
func (uc *MemoryUseCase) index(ctx context.Context, mem *model.Memory) {
	if err := uc.ranker.Index(ctx, mem); err != nil {
		logging.From(ctx).Warn("failed to index memory for ranking",
			"memory_id", mem.ID.String(), "error", err.Error())
	}
}
