package types

import (
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// TenantID identifies an isolation boundary. Every memory read and write
// is scoped to exactly one tenant.
type TenantID string

// DefaultTenant is used when a caller omits or blanks the tenant ID.
const DefaultTenant TenantID = "default"

var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ErrInvalidTenantID is returned when a tenant ID does not match the
// allowed format.
var ErrInvalidTenantID = goerr.New("invalid tenant ID format")

// NormalizeTenantID trims whitespace and falls back to DefaultTenant for
// blank input. A non-blank value must match ^[A-Za-z0-9_-]{1,64}$.
func NormalizeTenantID(raw string) (TenantID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DefaultTenant, nil
	}

	id := TenantID(trimmed)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks if the TenantID matches the allowed format
func (t TenantID) Validate() error {
	if !tenantIDPattern.MatchString(string(t)) {
		return goerr.Wrap(ErrInvalidTenantID, "tenant ID must match ^[A-Za-z0-9_-]{1,64}$",
			goerr.V("tenant_id", string(t)))
	}
	return nil
}

// String returns the string representation of the TenantID
func (t TenantID) String() string {
	return string(t)
}
