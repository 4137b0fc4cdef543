package memory

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for the in-memory backend
var (
	// ErrNotFound is returned when a lookup misses. Callers treat this
	// as an explicit absent result, not an exceptional condition.
	ErrNotFound = goerr.New("record not found")

	// ErrTenantMismatch is returned when a save attempts to move an
	// existing memory to a different tenant. TenantID is immutable
	// after creation.
	ErrTenantMismatch = goerr.New("memory tenant is immutable")

	// ErrUnavailable is returned when the backend cannot serve the
	// operation. Callers may retry. The in-memory backend itself never
	// produces it; it exists so both backends share failure semantics.
	ErrUnavailable = goerr.New("storage unavailable")
)
