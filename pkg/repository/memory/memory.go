package memory

import (
	"github.com/engram-dev/engram/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory is the in-memory repository backend. It is authoritative for
// the store's consistency invariants: primary record and indices mutate
// under one critical section, so readers never observe a half-updated
// state.
type Memory struct {
	memory       *memoryRepository
	relationship *relationshipRepository
	auditLog     *auditLogRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		memory:       newMemoryRepository(),
		relationship: newRelationshipRepository(),
		auditLog:     newAuditLogRepository(),
	}
}

func (m *Memory) Memory() interfaces.MemoryRepository {
	return m.memory
}

func (m *Memory) Relationship() interfaces.RelationshipRepository {
	return m.relationship
}

func (m *Memory) AuditLog() interfaces.AuditLogRepository {
	return m.auditLog
}

func (m *Memory) Close() error {
	return nil
}
