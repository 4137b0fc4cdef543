package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Memory() MemoryRepository
	Relationship() RelationshipRepository
	AuditLog() AuditLogRepository

	// Close releases backend resources. The in-memory backend is a no-op.
	Close() error
}
