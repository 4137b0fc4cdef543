package types

import "fmt"

// Importance grades how critical a memory is for future sessions
type Importance string

const (
	ImportanceCritical  Importance = "CRITICAL"
	ImportanceImportant Importance = "IMPORTANT"
	ImportanceMinor     Importance = "MINOR"
)

// AllImportances returns all valid importance levels
func AllImportances() []Importance {
	return []Importance{
		ImportanceCritical,
		ImportanceImportant,
		ImportanceMinor,
	}
}

// IsValid checks if the importance level is valid
func (i Importance) IsValid() bool {
	switch i {
	case ImportanceCritical,
		ImportanceImportant,
		ImportanceMinor:
		return true
	default:
		return false
	}
}

// Normalize returns the importance, treating empty as ImportanceMinor.
func (i Importance) Normalize() Importance {
	if i == "" {
		return ImportanceMinor
	}
	return i
}

// String returns the string representation of the importance level
func (i Importance) String() string {
	return string(i)
}

// ParseImportance parses a string into an Importance
func ParseImportance(s string) (Importance, error) {
	i := Importance(s)
	if !i.IsValid() {
		return "", fmt.Errorf("invalid importance level: %s", s)
	}
	return i, nil
}
