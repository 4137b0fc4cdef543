package interfaces

import (
	"context"
	"time"

	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
)

// AuditLogRepository defines the interface for dispatch audit records.
// Audit persistence is independent of the memory store; a failed audit
// write never fails the dispatched operation.
type AuditLogRepository interface {
	// Put appends an audit record.
	Put(ctx context.Context, entry *model.AuditLog) error

	// List retrieves audit records for a tenant with pagination,
	// ordered by CreatedAt descending. Returns items and total count.
	List(ctx context.Context, tenantID types.TenantID, limit, offset int) ([]*model.AuditLog, int, error)

	// DeleteOlderThan removes records created before the cutoff.
	// Returns the number of records removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
