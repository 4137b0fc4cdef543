package model

import (
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// Tenant represents a tenant's identity
type Tenant struct {
	ID          types.TenantID
	Name        string
	Description string
}

// ErrTenantNotFound is returned when a tenant is not found in the registry
var ErrTenantNotFound = goerr.New("tenant not found")

// TenantRegistry holds the set of declared tenants. When a registry is
// loaded, dispatch rejects tenant IDs it does not contain; an empty
// registry (no tenants.toml) accepts any well-formed tenant ID.
type TenantRegistry struct {
	entries map[types.TenantID]*Tenant
	order   []types.TenantID // preserves registration order
}

// NewTenantRegistry creates a new empty TenantRegistry
func NewTenantRegistry() *TenantRegistry {
	return &TenantRegistry{
		entries: make(map[types.TenantID]*Tenant),
	}
}

// Register adds a tenant to the registry
func (r *TenantRegistry) Register(t *Tenant) {
	if _, exists := r.entries[t.ID]; !exists {
		r.order = append(r.order, t.ID)
	}
	r.entries[t.ID] = t
}

// Get retrieves a tenant by ID
func (r *TenantRegistry) Get(id types.TenantID) (*Tenant, error) {
	t, ok := r.entries[id]
	if !ok {
		return nil, goerr.Wrap(ErrTenantNotFound, "tenant not found",
			goerr.V("tenant_id", id.String()))
	}
	return t, nil
}

// Contains reports whether the registry declares the given tenant
func (r *TenantRegistry) Contains(id types.TenantID) bool {
	_, ok := r.entries[id]
	return ok
}

// Empty reports whether no tenants are declared. An empty registry
// means tenant declarations are not enforced.
func (r *TenantRegistry) Empty() bool {
	return len(r.entries) == 0
}

// List returns all registered tenants in registration order
func (r *TenantRegistry) List() []*Tenant {
	result := make([]*Tenant, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.entries[id])
	}
	return result
}
