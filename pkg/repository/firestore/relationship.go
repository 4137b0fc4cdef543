package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type relationshipDoc struct {
	ID        model.RelationshipID `firestore:"ID"`
	FromID    model.MemoryID       `firestore:"FromID"`
	ToID      model.MemoryID       `firestore:"ToID"`
	Type      string               `firestore:"Type"`
	Strength  float64              `firestore:"Strength"`
	TenantID  string               `firestore:"TenantID"`
	CreatedAt time.Time            `firestore:"CreatedAt"`
	UpdatedAt time.Time            `firestore:"UpdatedAt"`
}

func toRelationshipDoc(r *model.MemoryRelationship) *relationshipDoc {
	return &relationshipDoc{
		ID:        r.ID,
		FromID:    r.FromID,
		ToID:      r.ToID,
		Type:      r.Type.String(),
		Strength:  r.Strength,
		TenantID:  r.TenantID.String(),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func fromRelationshipDoc(d *relationshipDoc) *model.MemoryRelationship {
	return &model.MemoryRelationship{
		ID:        d.ID,
		FromID:    d.FromID,
		ToID:      d.ToID,
		Type:      types.RelationType(d.Type),
		Strength:  d.Strength,
		TenantID:  types.TenantID(d.TenantID),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type relationshipRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newRelationshipRepository(client *firestore.Client) *relationshipRepository {
	return &relationshipRepository{client: client}
}

func (r *relationshipRepository) relationships() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "relationships")
}

// pairDocID derives a deterministic document ID from the edge key, so
// the per-pair upsert is a plain Set on a known ref.
func pairDocID(tenantID types.TenantID, from, to model.MemoryID) string {
	return fmt.Sprintf("%s__%s__%s", tenantID.String(), from.String(), to.String())
}

func (r *relationshipRepository) Create(ctx context.Context, rel *model.MemoryRelationship) (*model.MemoryRelationship, error) {
	if rel == nil {
		return nil, goerr.New("relationship must not be nil")
	}
	if err := rel.TenantID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "relationship requires a valid tenant")
	}

	saved := rel.Clone()
	docRef := r.relationships().Doc(pairDocID(saved.TenantID, saved.FromID, saved.ToID))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := time.Now().UTC()
		saved.UpdatedAt = now

		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			if saved.ID == "" {
				saved.ID = model.NewRelationshipID()
			}
			saved.CreatedAt = now
			return tx.Set(docRef, toRelationshipDoc(saved))
		}

		var d relationshipDoc
		if err := doc.DataTo(&d); err != nil {
			return goerr.Wrap(err, "failed to unmarshal relationship")
		}
		saved.ID = d.ID
		saved.CreatedAt = d.CreatedAt
		return tx.Set(docRef, toRelationshipDoc(saved))
	})
	if err != nil {
		return nil, asStorageErr(err, "failed to save relationship",
			goerr.V("from", saved.FromID.String()),
			goerr.V("to", saved.ToID.String()))
	}

	return saved, nil
}

func (r *relationshipRepository) query(ctx context.Context, query firestore.Query, msg string) ([]*model.MemoryRelationship, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	result := []*model.MemoryRelationship{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, asStorageErr(err, msg)
		}

		var d relationshipDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal relationship")
		}
		result = append(result, fromRelationshipDoc(&d))
	}
	return result, nil
}

func (r *relationshipRepository) ListByFrom(ctx context.Context, tenantID types.TenantID, from model.MemoryID) ([]*model.MemoryRelationship, error) {
	query := r.relationships().
		Where("TenantID", "==", tenantID.String()).
		Where("FromID", "==", from.String()).
		OrderBy("CreatedAt", firestore.Asc)
	return r.query(ctx, query, "failed to list relationships by source")
}

func (r *relationshipRepository) ListByTo(ctx context.Context, tenantID types.TenantID, to model.MemoryID) ([]*model.MemoryRelationship, error) {
	query := r.relationships().
		Where("TenantID", "==", tenantID.String()).
		Where("ToID", "==", to.String()).
		OrderBy("CreatedAt", firestore.Asc)
	return r.query(ctx, query, "failed to list relationships by target")
}

func (r *relationshipRepository) ListByTenant(ctx context.Context, tenantID types.TenantID) ([]*model.MemoryRelationship, error) {
	query := r.relationships().
		Where("TenantID", "==", tenantID.String()).
		OrderBy("CreatedAt", firestore.Asc)
	return r.query(ctx, query, "failed to list relationships by tenant")
}

func (r *relationshipRepository) ListByType(ctx context.Context, tenantID types.TenantID, relType types.RelationType) ([]*model.MemoryRelationship, error) {
	query := r.relationships().
		Where("TenantID", "==", tenantID.String()).
		Where("Type", "==", relType.String()).
		OrderBy("CreatedAt", firestore.Asc)
	return r.query(ctx, query, "failed to list relationships by type")
}

// deleteMatching removes every document the query yields in one batch.
func (r *relationshipRepository) deleteMatching(ctx context.Context, query firestore.Query, msg string) (int, error) {
	docs, err := query.Select().Documents(ctx).GetAll()
	if err != nil {
		return 0, asStorageErr(err, msg)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	batch := r.client.Batch()
	for _, doc := range docs {
		batch.Delete(doc.Ref)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return 0, asStorageErr(err, msg)
	}
	return len(docs), nil
}

func (r *relationshipRepository) DeleteByFrom(ctx context.Context, tenantID types.TenantID, from model.MemoryID) (int, error) {
	query := r.relationships().
		Where("TenantID", "==", tenantID.String()).
		Where("FromID", "==", from.String())
	return r.deleteMatching(ctx, query, "failed to delete relationships by source")
}

func (r *relationshipRepository) DeleteByMemory(ctx context.Context, tenantID types.TenantID, id model.MemoryID) (int, error) {
	outgoing, err := r.deleteMatching(ctx, r.relationships().
		Where("TenantID", "==", tenantID.String()).
		Where("FromID", "==", id.String()),
		"failed to delete outgoing relationships")
	if err != nil {
		return outgoing, err
	}

	incoming, err := r.deleteMatching(ctx, r.relationships().
		Where("TenantID", "==", tenantID.String()).
		Where("ToID", "==", id.String()),
		"failed to delete incoming relationships")
	return outgoing + incoming, err
}

func (r *relationshipRepository) DeleteByPair(ctx context.Context, tenantID types.TenantID, from, to model.MemoryID) (bool, error) {
	docRef := r.relationships().Doc(pairDocID(tenantID, from, to))

	found := false
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}
		found = true
		return tx.Delete(docRef)
	})
	if err != nil {
		return false, asStorageErr(err, "failed to delete relationship",
			goerr.V("from", from.String()),
			goerr.V("to", to.String()))
	}
	return found, nil
}
