package firestore

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// memoryDoc is the Firestore document representation of model.Memory.
type memoryDoc struct {
	ID              model.MemoryID    `firestore:"ID"`
	TenantID        string            `firestore:"TenantID"`
	Content         string            `firestore:"Content"`
	Summary         string            `firestore:"Summary"`
	Category        string            `firestore:"Category"`
	Importance      string            `firestore:"Importance"`
	Tags            []string          `firestore:"Tags"`
	Metadata        map[string]string `firestore:"Metadata"`
	Version         int               `firestore:"Version"`
	AccessCount     int64             `firestore:"AccessCount"`
	InjectionCount  int64             `firestore:"InjectionCount"`
	HelpfulCount    int64             `firestore:"HelpfulCount"`
	NotHelpfulCount int64             `firestore:"NotHelpfulCount"`
	CreatedAt       time.Time         `firestore:"CreatedAt"`
	UpdatedAt       time.Time         `firestore:"UpdatedAt"`
	LastAccessedAt  time.Time         `firestore:"LastAccessedAt"`
}

func toMemoryDoc(m *model.Memory) *memoryDoc {
	return &memoryDoc{
		ID:              m.ID,
		TenantID:        m.TenantID.String(),
		Content:         m.Content,
		Summary:         m.Summary,
		Category:        m.Category.String(),
		Importance:      m.Importance.String(),
		Tags:            m.Tags,
		Metadata:        m.Metadata,
		Version:         m.Version,
		AccessCount:     m.AccessCount,
		InjectionCount:  m.InjectionCount,
		HelpfulCount:    m.HelpfulCount,
		NotHelpfulCount: m.NotHelpfulCount,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		LastAccessedAt:  m.LastAccessedAt,
	}
}

func fromMemoryDoc(d *memoryDoc) *model.Memory {
	return &model.Memory{
		ID:              d.ID,
		TenantID:        types.TenantID(d.TenantID),
		Content:         d.Content,
		Summary:         d.Summary,
		Category:        types.Category(d.Category),
		Importance:      types.Importance(d.Importance),
		Tags:            d.Tags,
		Metadata:        d.Metadata,
		Version:         d.Version,
		AccessCount:     d.AccessCount,
		InjectionCount:  d.InjectionCount,
		HelpfulCount:    d.HelpfulCount,
		NotHelpfulCount: d.NotHelpfulCount,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		LastAccessedAt:  d.LastAccessedAt,
	}
}

type memoryRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newMemoryRepository(client *firestore.Client) *memoryRepository {
	return &memoryRepository{client: client}
}

func (r *memoryRepository) memories() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "memories")
}

// asStorageErr maps a backend failure to the shared retryable sentinel,
// keeping the cause message for logs.
func asStorageErr(err error, msg string, vars ...goerr.Option) error {
	opts := make([]goerr.Option, 0, len(vars)+1)
	opts = append(opts, vars...)
	if status.Code(err) == codes.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
		opts = append(opts, goerr.V("cause", err.Error()))
		return goerr.Wrap(context.DeadlineExceeded, msg, opts...)
	}
	opts = append(opts, goerr.V("cause", err.Error()))
	return goerr.Wrap(ErrUnavailable, msg, opts...)
}

func (r *memoryRepository) Save(ctx context.Context, mem *model.Memory) (*model.Memory, error) {
	if mem == nil {
		return nil, goerr.New("memory must not be nil")
	}
	if err := mem.TenantID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "memory requires a valid tenant")
	}

	saved := mem.Clone()
	saved.NormalizeTags()
	if saved.ID == "" {
		saved.ID = model.NewMemoryID()
	}

	docRef := r.memories().Doc(saved.ID.String())

	// The snapshot archive and the primary write happen in one
	// transaction, so concurrent saves to the same ID can neither skip
	// nor duplicate a version number.
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := time.Now().UTC()
		saved.UpdatedAt = now

		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			saved.CreatedAt = now
			saved.Version = 1
			return tx.Set(docRef, toMemoryDoc(saved))
		}

		var d memoryDoc
		if err := doc.DataTo(&d); err != nil {
			return goerr.Wrap(err, "failed to unmarshal memory")
		}
		existing := fromMemoryDoc(&d)

		if existing.TenantID != saved.TenantID {
			return goerr.Wrap(ErrTenantMismatch, "cannot move memory to another tenant",
				goerr.V("memory_id", saved.ID.String()),
				goerr.V("owner", existing.TenantID.String()),
				goerr.V("requested", saved.TenantID.String()))
		}

		verRef := docRef.Collection("versions").Doc(strconv.Itoa(existing.Version))
		if err := tx.Set(verRef, toMemoryDoc(existing)); err != nil {
			return err
		}

		saved.CreatedAt = existing.CreatedAt
		saved.Version = existing.Version + 1
		saved.AccessCount = existing.AccessCount
		saved.InjectionCount = existing.InjectionCount
		saved.HelpfulCount = existing.HelpfulCount
		saved.NotHelpfulCount = existing.NotHelpfulCount
		saved.LastAccessedAt = existing.LastAccessedAt

		return tx.Set(docRef, toMemoryDoc(saved))
	})
	if err != nil {
		if errors.Is(err, ErrTenantMismatch) {
			return nil, err
		}
		return nil, asStorageErr(err, "failed to save memory", goerr.V("memory_id", saved.ID.String()))
	}

	return saved, nil
}

func (r *memoryRepository) Get(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	doc, err := r.memories().Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "memory not found", goerr.V("memory_id", id.String()))
		}
		return nil, asStorageErr(err, "failed to get memory", goerr.V("memory_id", id.String()))
	}

	var d memoryDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal memory", goerr.V("memory_id", id.String()))
	}

	return fromMemoryDoc(&d), nil
}

// queryMemories runs the query and unmarshals every document.
func (r *memoryRepository) queryMemories(ctx context.Context, query firestore.Query, msg string) ([]*model.Memory, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	result := []*model.Memory{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, asStorageErr(err, msg)
		}

		var d memoryDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory")
		}
		result = append(result, fromMemoryDoc(&d))
	}
	return result, nil
}

func (r *memoryRepository) ListByTenant(ctx context.Context, tenantID types.TenantID) ([]*model.Memory, error) {
	// CreatedAt ascending stands in for insertion order.
	query := r.memories().
		Where("TenantID", "==", tenantID.String()).
		OrderBy("CreatedAt", firestore.Asc)
	return r.queryMemories(ctx, query, "failed to list memories by tenant")
}

func (r *memoryRepository) ListByCategory(ctx context.Context, tenantID types.TenantID, category types.Category) ([]*model.Memory, error) {
	query := r.memories().
		Where("TenantID", "==", tenantID.String()).
		Where("Category", "==", category.String()).
		OrderBy("CreatedAt", firestore.Asc)
	return r.queryMemories(ctx, query, "failed to list memories by category")
}

func (r *memoryRepository) ListByImportance(ctx context.Context, tenantID types.TenantID, importance types.Importance) ([]*model.Memory, error) {
	query := r.memories().
		Where("TenantID", "==", tenantID.String()).
		Where("Importance", "==", importance.String()).
		OrderBy("CreatedAt", firestore.Asc)
	result, err := r.queryMemories(ctx, query, "failed to list memories by importance")
	if err != nil {
		return nil, err
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].AccessCount > result[j].AccessCount
	})
	return result, nil
}

func (r *memoryRepository) FindByTags(ctx context.Context, tenantID types.TenantID, tags []string) ([]*model.Memory, error) {
	if len(tags) == 0 {
		return []*model.Memory{}, nil
	}

	// Firestore allows a single array-contains clause per query, so the
	// first tag narrows server-side and the rest filter here.
	query := r.memories().
		Where("TenantID", "==", tenantID.String()).
		Where("Tags", "array-contains", tags[0]).
		OrderBy("CreatedAt", firestore.Asc)
	candidates, err := r.queryMemories(ctx, query, "failed to find memories by tags")
	if err != nil {
		return nil, err
	}

	result := []*model.Memory{}
	for _, mem := range candidates {
		matched := true
		for _, tag := range tags[1:] {
			if !mem.HasTag(tag) {
				matched = false
				break
			}
		}
		if matched {
			result = append(result, mem)
		}
	}
	return result, nil
}

func (r *memoryRepository) Search(ctx context.Context, tenantID types.TenantID, limit int) ([]*model.Memory, error) {
	if limit <= 0 {
		return []*model.Memory{}, nil
	}

	query := r.memories().
		Where("TenantID", "==", tenantID.String()).
		OrderBy("AccessCount", firestore.Desc).
		OrderBy("CreatedAt", firestore.Asc).
		Limit(limit)
	return r.queryMemories(ctx, query, "failed to search memories")
}

func (r *memoryRepository) Delete(ctx context.Context, id model.MemoryID) (bool, error) {
	docRef := r.memories().Doc(id.String())

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
		return false, asStorageErr(err, "failed to delete memory", goerr.V("memory_id", id.String()))
	}
	if !found {
		return false, nil
	}

	// Archived snapshots go best-effort after the primary delete. They
	// are unreachable already: Versions resolves through the primary
	// document first.
	r.deleteVersions(ctx, docRef)

	return true, nil
}

func (r *memoryRepository) deleteVersions(ctx context.Context, docRef *firestore.DocumentRef) {
	iter := docRef.Collection("versions").Documents(ctx)
	defer iter.Stop()

	batch := r.client.Batch()
	count := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return
		}
		batch.Delete(doc.Ref)
		count++
	}
	if count > 0 {
		_, _ = batch.Commit(ctx)
	}
}

func (r *memoryRepository) CountByTenant(ctx context.Context, tenantID types.TenantID) (int, error) {
	docs, err := r.memories().
		Where("TenantID", "==", tenantID.String()).
		Select().
		Documents(ctx).GetAll()
	if err != nil {
		return 0, asStorageErr(err, "failed to count memories", goerr.V("tenant_id", tenantID.String()))
	}
	return len(docs), nil
}

func (r *memoryRepository) Versions(ctx context.Context, tenantID types.TenantID, id model.MemoryID) ([]int, error) {
	mem, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if mem.TenantID != tenantID {
		return nil, goerr.Wrap(ErrNotFound, "memory not found", goerr.V("memory_id", id.String()))
	}

	iter := r.memories().Doc(id.String()).
		Collection("versions").
		OrderBy("Version", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	result := []int{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, asStorageErr(err, "failed to list memory versions", goerr.V("memory_id", id.String()))
		}

		var d memoryDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory version")
		}
		result = append(result, d.Version)
	}
	return result, nil
}

func (r *memoryRepository) TrimVersions(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	memIter := r.memories().Select().Documents(ctx)
	defer memIter.Stop()

	removed := 0
	for {
		memDoc, err := memIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return removed, asStorageErr(err, "failed to iterate memories for version trim")
		}

		verDocs, err := memDoc.Ref.Collection("versions").
			OrderBy("Version", firestore.Asc).
			Documents(ctx).GetAll()
		if err != nil {
			return removed, asStorageErr(err, "failed to list versions for trim")
		}
		if len(verDocs) <= keep {
			continue
		}

		batch := r.client.Batch()
		for _, doc := range verDocs[:len(verDocs)-keep] {
			batch.Delete(doc.Ref)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return removed, asStorageErr(err, "failed to trim versions")
		}
		removed += len(verDocs) - keep
	}

	return removed, nil
}

func (r *memoryRepository) RecordAccess(ctx context.Context, id model.MemoryID) error {
	return r.updateCounters(ctx, id, []firestore.Update{
		{Path: "AccessCount", Value: firestore.Increment(1)},
		{Path: "LastAccessedAt", Value: time.Now().UTC()},
	})
}

func (r *memoryRepository) RecordInjection(ctx context.Context, id model.MemoryID) error {
	return r.updateCounters(ctx, id, []firestore.Update{
		{Path: "InjectionCount", Value: firestore.Increment(1)},
	})
}

func (r *memoryRepository) RecordFeedback(ctx context.Context, id model.MemoryID, helpful bool) error {
	path := "HelpfulCount"
	if !helpful {
		path = "NotHelpfulCount"
	}
	return r.updateCounters(ctx, id, []firestore.Update{
		{Path: path, Value: firestore.Increment(1)},
	})
}

func (r *memoryRepository) updateCounters(ctx context.Context, id model.MemoryID, updates []firestore.Update) error {
	_, err := r.memories().Doc(id.String()).Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "memory not found", goerr.V("memory_id", id.String()))
		}
		return asStorageErr(err, "failed to update memory counters", goerr.V("memory_id", id.String()))
	}
	return nil
}
