package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/engram-dev/engram/pkg/domain/interfaces"
	"github.com/m-mizutani/goerr/v2"
)

// Sentinel errors for the Firestore backend
var (
	// ErrNotFound is returned when a lookup misses.
	ErrNotFound = goerr.New("record not found")

	// ErrTenantMismatch is returned when a save attempts to move an
	// existing memory to a different tenant.
	ErrTenantMismatch = goerr.New("memory tenant is immutable")

	// ErrUnavailable wraps backend failures that callers may retry.
	ErrUnavailable = goerr.New("storage unavailable")
)

// Firestore is the persistent repository backend. Save and Delete run
// inside transactions so the version discipline and index-visible
// consistency hold across concurrent writers.
type Firestore struct {
	client       *firestore.Client
	memory       *memoryRepository
	relationship *relationshipRepository
	auditLog     *auditLogRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix namespaces all collections, used by tests to
// isolate runs against a shared project.
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.memory.collectionPrefix = prefix
		f.relationship.collectionPrefix = prefix
		f.auditLog.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID == "" {
		client, err = firestore.NewClient(ctx, projectID)
	} else {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:       client,
		memory:       newMemoryRepository(client),
		relationship: newRelationshipRepository(client),
		auditLog:     newAuditLogRepository(client),
	}
	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Memory() interfaces.MemoryRepository {
	return f.memory
}

func (f *Firestore) Relationship() interfaces.RelationshipRepository {
	return f.relationship
}

func (f *Firestore) AuditLog() interfaces.AuditLogRepository {
	return f.auditLog
}

func (f *Firestore) Close() error {
	return f.client.Close()
}
