package memory

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// writeStripes bounds the number of per-ID write locks. Writes to the
// same memory ID always hit the same stripe, which serializes the
// version read-modify-write without a global write lock.
const writeStripes = 64

type memoryRepository struct {
	mu sync.RWMutex

	memories    map[model.MemoryID]*model.Memory
	tenantIndex map[types.TenantID][]model.MemoryID       // insertion order per tenant
	tagIndex    map[string]map[model.MemoryID]struct{}    // tag -> member set
	versions    map[model.MemoryID][]*model.Memory        // archived snapshots, ascending version

	writeLocks [writeStripes]sync.Mutex
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		memories:    make(map[model.MemoryID]*model.Memory),
		tenantIndex: make(map[types.TenantID][]model.MemoryID),
		tagIndex:    make(map[string]map[model.MemoryID]struct{}),
		versions:    make(map[model.MemoryID][]*model.Memory),
	}
}

func (r *memoryRepository) lockFor(id model.MemoryID) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &r.writeLocks[h.Sum32()%writeStripes]
}

func (r *memoryRepository) Save(ctx context.Context, mem *model.Memory) (*model.Memory, error) {
	if mem == nil {
		return nil, goerr.New("memory must not be nil")
	}
	if err := mem.TenantID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "memory requires a valid tenant")
	}

	saved := mem.Clone()
	saved.NormalizeTags()
	if saved.ID == "" {
		saved.ID = model.NewMemoryID()
	}

	// Serialize writes to this ID so version numbers are never skipped
	// or duplicated.
	lock := r.lockFor(saved.ID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	saved.UpdatedAt = now

	existing, exists := r.memories[saved.ID]
	if exists {
		if existing.TenantID != saved.TenantID {
			return nil, goerr.Wrap(ErrTenantMismatch, "cannot move memory to another tenant",
				goerr.V("memory_id", saved.ID.String()),
				goerr.V("owner", existing.TenantID.String()),
				goerr.V("requested", saved.TenantID.String()))
		}

		// Archive the pre-update snapshot before the record changes.
		r.versions[saved.ID] = append(r.versions[saved.ID], existing.Clone())

		saved.CreatedAt = existing.CreatedAt
		saved.Version = existing.Version + 1

		// Usage counters belong to the read/feedback paths; a content
		// save never resets them.
		saved.AccessCount = existing.AccessCount
		saved.InjectionCount = existing.InjectionCount
		saved.HelpfulCount = existing.HelpfulCount
		saved.NotHelpfulCount = existing.NotHelpfulCount
		saved.LastAccessedAt = existing.LastAccessedAt

		r.removeFromTagIndex(existing)
	} else {
		saved.CreatedAt = now
		saved.Version = 1
		r.tenantIndex[saved.TenantID] = append(r.tenantIndex[saved.TenantID], saved.ID)
	}

	// Primary record and indices mutate under the same critical
	// section: readers see either none of this write or all of it.
	r.memories[saved.ID] = saved
	r.addToTagIndex(saved)

	return saved.Clone(), nil
}

func (r *memoryRepository) addToTagIndex(mem *model.Memory) {
	for _, tag := range mem.Tags {
		set, ok := r.tagIndex[tag]
		if !ok {
			set = make(map[model.MemoryID]struct{})
			r.tagIndex[tag] = set
		}
		set[mem.ID] = struct{}{}
	}
}

func (r *memoryRepository) removeFromTagIndex(mem *model.Memory) {
	for _, tag := range mem.Tags {
		set, ok := r.tagIndex[tag]
		if !ok {
			continue
		}
		delete(set, mem.ID)
		if len(set) == 0 {
			delete(r.tagIndex, tag)
		}
	}
}

func (r *memoryRepository) Get(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mem, exists := r.memories[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "memory not found", goerr.V("memory_id", id.String()))
	}

	return mem.Clone(), nil
}

func (r *memoryRepository) ListByTenant(ctx context.Context, tenantID types.TenantID) ([]*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.listTenantLocked(tenantID), nil
}

// listTenantLocked resolves the tenant's memories through the tenant
// index in insertion order. Callers must hold at least a read lock.
func (r *memoryRepository) listTenantLocked(tenantID types.TenantID) []*model.Memory {
	ids := r.tenantIndex[tenantID]
	result := make([]*model.Memory, 0, len(ids))
	for _, id := range ids {
		if mem, ok := r.memories[id]; ok {
			result = append(result, mem.Clone())
		}
	}
	return result
}

func (r *memoryRepository) ListByCategory(ctx context.Context, tenantID types.TenantID, category types.Category) ([]*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*model.Memory{}
	for _, mem := range r.listTenantLocked(tenantID) {
		if mem.Category == category {
			result = append(result, mem)
		}
	}
	return result, nil
}

func (r *memoryRepository) ListByImportance(ctx context.Context, tenantID types.TenantID, importance types.Importance) ([]*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*model.Memory{}
	for _, mem := range r.listTenantLocked(tenantID) {
		if mem.Importance == importance {
			result = append(result, mem)
		}
	}

	// Usage-weighted ranking proxy: AccessCount descending, insertion
	// order preserved for ties.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].AccessCount > result[j].AccessCount
	})

	return result, nil
}

func (r *memoryRepository) FindByTags(ctx context.Context, tenantID types.TenantID, tags []string) ([]*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(tags) == 0 {
		return []*model.Memory{}, nil
	}

	// AND semantics: intersect the member sets of every requested tag.
	intersection := make(map[model.MemoryID]struct{})
	first, ok := r.tagIndex[tags[0]]
	if !ok {
		return []*model.Memory{}, nil
	}
	for id := range first {
		intersection[id] = struct{}{}
	}
	for _, tag := range tags[1:] {
		set, ok := r.tagIndex[tag]
		if !ok {
			return []*model.Memory{}, nil
		}
		for id := range intersection {
			if _, member := set[id]; !member {
				delete(intersection, id)
			}
		}
		if len(intersection) == 0 {
			return []*model.Memory{}, nil
		}
	}

	// Filter to the tenant and order deterministically by insertion
	// order.
	result := []*model.Memory{}
	for _, id := range r.tenantIndex[tenantID] {
		if _, member := intersection[id]; !member {
			continue
		}
		if mem, ok := r.memories[id]; ok {
			result = append(result, mem.Clone())
		}
	}
	return result, nil
}

func (r *memoryRepository) Search(ctx context.Context, tenantID types.TenantID, limit int) ([]*model.Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, goerr.Wrap(err, "search canceled")
	}
	if limit <= 0 {
		return []*model.Memory{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := r.listTenantLocked(tenantID)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].AccessCount > result[j].AccessCount
	})

	if limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (r *memoryRepository) Delete(ctx context.Context, id model.MemoryID) (bool, error) {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.memories[id]
	if !exists {
		return false, nil
	}

	// Primary, tenant index, tag indices and the version log all drop
	// in one critical section; no tombstone remains.
	delete(r.memories, id)
	r.removeFromTagIndex(existing)
	delete(r.versions, id)

	ids := r.tenantIndex[existing.TenantID]
	for i, candidate := range ids {
		if candidate == id {
			r.tenantIndex[existing.TenantID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(r.tenantIndex[existing.TenantID]) == 0 {
		delete(r.tenantIndex, existing.TenantID)
	}

	return true, nil
}

func (r *memoryRepository) CountByTenant(ctx context.Context, tenantID types.TenantID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tenantIndex[tenantID]), nil
}

func (r *memoryRepository) Versions(ctx context.Context, tenantID types.TenantID, id model.MemoryID) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mem, exists := r.memories[id]
	if !exists || mem.TenantID != tenantID {
		return nil, goerr.Wrap(ErrNotFound, "memory not found", goerr.V("memory_id", id.String()))
	}

	snapshots := r.versions[id]
	result := make([]int, 0, len(snapshots))
	for i := len(snapshots) - 1; i >= 0; i-- {
		result = append(result, snapshots[i].Version)
	}
	return result, nil
}

func (r *memoryRepository) TrimVersions(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, snapshots := range r.versions {
		if len(snapshots) <= keep {
			continue
		}
		drop := len(snapshots) - keep
		removed += drop
		if keep == 0 {
			delete(r.versions, id)
			continue
		}
		trimmed := make([]*model.Memory, keep)
		copy(trimmed, snapshots[drop:])
		r.versions[id] = trimmed
	}

	return removed, nil
}

func (r *memoryRepository) RecordAccess(ctx context.Context, id model.MemoryID) error {
	return r.bumpCounter(id, func(mem *model.Memory) {
		mem.AccessCount++
		mem.LastAccessedAt = time.Now().UTC()
	})
}

func (r *memoryRepository) RecordInjection(ctx context.Context, id model.MemoryID) error {
	return r.bumpCounter(id, func(mem *model.Memory) {
		mem.InjectionCount++
	})
}

func (r *memoryRepository) RecordFeedback(ctx context.Context, id model.MemoryID, helpful bool) error {
	return r.bumpCounter(id, func(mem *model.Memory) {
		if helpful {
			mem.HelpfulCount++
		} else {
			mem.NotHelpfulCount++
		}
	})
}

// bumpCounter mutates usage counters under the per-ID write lock.
// Counter bumps are not content mutations: they do not archive a
// version and do not advance Version.
func (r *memoryRepository) bumpCounter(id model.MemoryID, bump func(*model.Memory)) error {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	mem, exists := r.memories[id]
	if !exists {
		return goerr.Wrap(ErrNotFound, "memory not found", goerr.V("memory_id", id.String()))
	}

	bump(mem)
	return nil
}
