package model

import (
	"time"

	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/google/uuid"
)

// AuditLogID is a UUID-based identifier for AuditLog
type AuditLogID string

// NewAuditLogID generates a new UUID v4 AuditLogID
func NewAuditLogID() AuditLogID {
	return AuditLogID(uuid.New().String())
}

// AuditLog records the outcome of a single dispatched tool operation.
// Entries are written asynchronously after dispatch and are independent
// of the memory store itself; losing one never affects store state.
type AuditLog struct {
	ID            AuditLogID
	TenantID      types.TenantID
	Operation     string
	Success       bool
	ErrorCategory string // empty on success
	LatencyMS     int64
	CreatedAt     time.Time
}

// Clone returns a copy of the audit log entry
func (l *AuditLog) Clone() *AuditLog {
	copied := *l
	return &copied
}
