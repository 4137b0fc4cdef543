package usecase

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

const (
	searchCacheTTL = 30 * time.Second

	// Sized for short-lived result pages, not the memory corpus.
	searchCacheNumCounters = 1 << 16
	searchCacheMaxCost     = 1 << 22
)

// searchCache memoizes ranked search results per tenant. Every write
// to a tenant bumps its epoch, which orphans all of the tenant's
// cached pages at once. Orphaned entries age out via TTL.
type searchCache struct {
	cache  *ristretto.Cache
	epochs sync.Map // types.TenantID -> *uint64 epoch counter
}

func newSearchCache() (*searchCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: searchCacheNumCounters,
		MaxCost:     searchCacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create search cache")
	}
	return &searchCache{cache: cache}, nil
}

func (c *searchCache) epoch(tenantID types.TenantID) uint64 {
	if val, ok := c.epochs.Load(tenantID); ok {
		return atomic.LoadUint64(val.(*uint64))
	}
	return 0
}

func (c *searchCache) key(tenantID types.TenantID, query string, limit int) string {
	return fmt.Sprintf("%s:%d:%d:%s", tenantID.String(), c.epoch(tenantID), limit, query)
}

func (c *searchCache) get(tenantID types.TenantID, query string, limit int) ([]*model.Memory, bool) {
	val, ok := c.cache.Get(c.key(tenantID, query, limit))
	if !ok {
		return nil, false
	}
	memories, ok := val.([]*model.Memory)
	return memories, ok
}

func (c *searchCache) set(tenantID types.TenantID, query string, limit int, memories []*model.Memory) {
	cost := int64(1)
	for _, mem := range memories {
		cost += int64(len(mem.Content))
	}
	c.cache.SetWithTTL(c.key(tenantID, query, limit), memories, cost, searchCacheTTL)
}

// invalidate orphans every cached page of the tenant.
func (c *searchCache) invalidate(tenantID types.TenantID) {
	val, _ := c.epochs.LoadOrStore(tenantID, new(uint64))
	atomic.AddUint64(val.(*uint64), 1)
}

func (c *searchCache) close() {
	c.cache.Close()
}
