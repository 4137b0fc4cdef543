package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// Not found errors
	ErrMemoryNotFound       = errors.New("memory not found")
	ErrRelationshipNotFound = errors.New("relationship not found")

	// Access control errors
	ErrTenantDenied = errors.New("memory belongs to another tenant")

	// Validation errors
	ErrEndpointNotFound = errors.New("relationship endpoint does not exist")
	ErrSelfRelation     = errors.New("memory cannot relate to itself")
)

// Context keys for error values
const (
	MemoryIDKey = "memory_id"
	TenantIDKey = "tenant_id"
)
