package model

import (
	"time"

	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/google/uuid"
)

// RelationshipID is a UUID-based identifier for MemoryRelationship
type RelationshipID string

// NewRelationshipID generates a new UUID v4 RelationshipID
func NewRelationshipID() RelationshipID {
	return RelationshipID(uuid.New().String())
}

// String returns the string representation of the RelationshipID
func (id RelationshipID) String() string {
	return string(id)
}

// MemoryRelationship is a directed edge between two memories of the same
// tenant. Exactly one edge exists per (FromID, ToID) pair per tenant;
// creating the same pair again updates Type and Strength in place.
type MemoryRelationship struct {
	ID       RelationshipID
	FromID   MemoryID
	ToID     MemoryID
	Type     types.RelationType
	Strength float64
	TenantID types.TenantID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a copy of the relationship
func (r *MemoryRelationship) Clone() *MemoryRelationship {
	copied := *r
	return &copied
}
