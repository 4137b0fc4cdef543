package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

type auditLogDoc struct {
	ID            model.AuditLogID `firestore:"ID"`
	TenantID      string           `firestore:"TenantID"`
	Operation     string           `firestore:"Operation"`
	Success       bool             `firestore:"Success"`
	ErrorCategory string           `firestore:"ErrorCategory"`
	LatencyMS     int64            `firestore:"LatencyMS"`
	CreatedAt     time.Time        `firestore:"CreatedAt"`
}

func toAuditLogDoc(l *model.AuditLog) *auditLogDoc {
	return &auditLogDoc{
		ID:            l.ID,
		TenantID:      l.TenantID.String(),
		Operation:     l.Operation,
		Success:       l.Success,
		ErrorCategory: l.ErrorCategory,
		LatencyMS:     l.LatencyMS,
		CreatedAt:     l.CreatedAt,
	}
}

func fromAuditLogDoc(d *auditLogDoc) *model.AuditLog {
	return &model.AuditLog{
		ID:            d.ID,
		TenantID:      types.TenantID(d.TenantID),
		Operation:     d.Operation,
		Success:       d.Success,
		ErrorCategory: d.ErrorCategory,
		LatencyMS:     d.LatencyMS,
		CreatedAt:     d.CreatedAt,
	}
}

type auditLogRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newAuditLogRepository(client *firestore.Client) *auditLogRepository {
	return &auditLogRepository{client: client}
}

func (r *auditLogRepository) auditLogs() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "audit_logs")
}

func (r *auditLogRepository) Put(ctx context.Context, entry *model.AuditLog) error {
	if entry == nil {
		return goerr.New("audit log entry must not be nil")
	}

	saved := entry.Clone()
	if saved.ID == "" {
		saved.ID = model.NewAuditLogID()
	}
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now().UTC()
	}

	if _, err := r.auditLogs().Doc(string(saved.ID)).Set(ctx, toAuditLogDoc(saved)); err != nil {
		return asStorageErr(err, "failed to put audit log", goerr.V("operation", saved.Operation))
	}
	return nil
}

func (r *auditLogRepository) List(ctx context.Context, tenantID types.TenantID, limit, offset int) ([]*model.AuditLog, int, error) {
	base := r.auditLogs().Where("TenantID", "==", tenantID.String())

	// Total count first, then the requested page.
	countDocs, err := base.Select().Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, asStorageErr(err, "failed to count audit logs", goerr.V("tenant_id", tenantID.String()))
	}
	total := len(countDocs)

	query := base.OrderBy("CreatedAt", firestore.Desc)
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	result := []*model.AuditLog{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, asStorageErr(err, "failed to list audit logs", goerr.V("tenant_id", tenantID.String()))
		}

		var d auditLogDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, 0, goerr.Wrap(err, "failed to unmarshal audit log")
		}
		result = append(result, fromAuditLogDoc(&d))
	}

	return result, total, nil
}

func (r *auditLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	docs, err := r.auditLogs().
		Where("CreatedAt", "<", cutoff).
		Select().
		Documents(ctx).GetAll()
	if err != nil {
		return 0, asStorageErr(err, "failed to query expired audit logs")
	}
	if len(docs) == 0 {
		return 0, nil
	}

	batch := r.client.Batch()
	for _, doc := range docs {
		batch.Delete(doc.Ref)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return 0, asStorageErr(err, "failed to delete expired audit logs")
	}
	return len(docs), nil
}
