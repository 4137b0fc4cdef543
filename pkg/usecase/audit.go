package usecase

import (
	"context"

	"github.com/engram-dev/engram/pkg/domain/interfaces"
	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/engram-dev/engram/pkg/utils/async"
	"github.com/m-mizutani/goerr/v2"
)

// AuditUseCase records and serves dispatch audit entries.
type AuditUseCase struct {
	repo interfaces.Repository
}

func NewAuditUseCase(repo interfaces.Repository) *AuditUseCase {
	return &AuditUseCase{repo: repo}
}

// Record writes the entry asynchronously. Failures are logged by the
// dispatcher goroutine; the caller never waits on audit persistence.
func (uc *AuditUseCase) Record(ctx context.Context, entry *model.AuditLog) {
	saved := entry.Clone()
	async.Dispatch(ctx, func(ctx context.Context) error {
		if err := uc.repo.AuditLog().Put(ctx, saved); err != nil {
			return goerr.Wrap(err, "failed to persist audit log",
				goerr.V("operation", saved.Operation))
		}
		return nil
	})
}

// List returns the tenant's audit entries, newest first, plus the
// total count for pagination.
func (uc *AuditUseCase) List(ctx context.Context, tenantID types.TenantID, limit, offset int) ([]*model.AuditLog, int, error) {
	items, total, err := uc.repo.AuditLog().List(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to list audit logs",
			goerr.V(TenantIDKey, tenantID.String()))
	}
	return items, total, nil
}
