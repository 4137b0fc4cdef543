package model

import (
	"time"

	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// MemoryID is a UUID-based identifier for Memory
type MemoryID string

// NewMemoryID generates a new UUID v4 MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// String returns the string representation of the MemoryID
func (id MemoryID) String() string {
	return string(id)
}

// MaxContentLength is the ceiling for Memory.Content enforced at the
// dispatch layer. Oversized content is a caller-side validation failure,
// not a store concern.
const MaxContentLength = 64 * 1024

// EmbeddingDimension is the dimension of the embedding vector
// generated for memory content and search queries.
const EmbeddingDimension = 768

// Memory is a unit of retained knowledge owned by exactly one tenant.
// Agents record decisions, patterns, errors and code snippets as
// memories and retrieve them in later sessions.
type Memory struct {
	ID       MemoryID
	TenantID types.TenantID // immutable after creation

	Content    string
	Summary    string
	Category   types.Category
	Importance types.Importance
	Tags       []string // set semantics, order irrelevant
	Metadata   map[string]string

	// Version starts at 1 on creation and increments by exactly 1 on
	// every mutating save. Writes to the same ID serialize so no
	// version number is ever skipped or duplicated.
	Version int

	// Usage counters maintained by the read/injection/feedback paths.
	// Counter bumps do not count as content mutations and do not
	// advance Version.
	AccessCount     int64
	InjectionCount  int64
	HelpfulCount    int64
	NotHelpfulCount int64

	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastAccessedAt time.Time
}

// Clone returns a deep copy of the memory
func (m *Memory) Clone() *Memory {
	copied := *m

	if m.Tags != nil {
		copied.Tags = make([]string, len(m.Tags))
		copy(copied.Tags, m.Tags)
	}
	if m.Metadata != nil {
		copied.Metadata = make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			copied.Metadata[k] = v
		}
	}

	return &copied
}

// HasTag reports whether the memory carries the given tag
func (m *Memory) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NormalizeTags deduplicates and drops blank tags in place,
// preserving first-occurrence order.
func (m *Memory) NormalizeTags() {
	if len(m.Tags) == 0 {
		return
	}
	seen := make(map[string]bool, len(m.Tags))
	normalized := m.Tags[:0]
	for _, t := range m.Tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		normalized = append(normalized, t)
	}
	m.Tags = normalized
}

// Validate checks the memory's own field constraints. Index and version
// invariants are the store's job, not the model's.
func (m *Memory) Validate() error {
	if err := m.TenantID.Validate(); err != nil {
		return err
	}
	if m.Category != "" && !m.Category.IsValid() {
		return goerr.New("invalid memory category", goerr.V("category", string(m.Category)))
	}
	if m.Importance != "" && !m.Importance.IsValid() {
		return goerr.New("invalid importance level", goerr.V("importance", string(m.Importance)))
	}
	return nil
}
