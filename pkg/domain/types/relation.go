package types

import "fmt"

// RelationType describes how one memory relates to another
type RelationType string

const (
	RelationRelatedTo   RelationType = "RELATED_TO"
	RelationSupersedes  RelationType = "SUPERSEDES"
	RelationDerivedFrom RelationType = "DERIVED_FROM"
	RelationConflicts   RelationType = "CONFLICTS_WITH"
	RelationSharedTag   RelationType = "SHARED_TAG"
)

// AllRelationTypes returns all valid relation types
func AllRelationTypes() []RelationType {
	return []RelationType{
		RelationRelatedTo,
		RelationSupersedes,
		RelationDerivedFrom,
		RelationConflicts,
		RelationSharedTag,
	}
}

// IsValid checks if the relation type is valid
func (r RelationType) IsValid() bool {
	switch r {
	case RelationRelatedTo,
		RelationSupersedes,
		RelationDerivedFrom,
		RelationConflicts,
		RelationSharedTag:
		return true
	default:
		return false
	}
}

// Normalize returns the relation type, treating empty as RelationRelatedTo.
func (r RelationType) Normalize() RelationType {
	if r == "" {
		return RelationRelatedTo
	}
	return r
}

// String returns the string representation of the relation type
func (r RelationType) String() string {
	return string(r)
}

// ParseRelationType parses a string into a RelationType
func ParseRelationType(s string) (RelationType, error) {
	r := RelationType(s)
	if !r.IsValid() {
		return "", fmt.Errorf("invalid relation type: %s", s)
	}
	return r, nil
}
