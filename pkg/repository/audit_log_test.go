package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/engram-dev/engram/pkg/domain/interfaces"
	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/m-mizutani/gt"
)

func runAuditLogStoreTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Put fills ID and CreatedAt when unset", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		tenantID := newTenantID()

		err := repo.AuditLog().Put(ctx, &model.AuditLog{
			TenantID:  tenantID,
			Operation: "create_memory",
			Success:   true,
			LatencyMS: 12,
		})
		gt.NoError(t, err).Required()

		items, total, err := repo.AuditLog().List(ctx, tenantID, 10, 0)
		gt.NoError(t, err).Required()
		gt.Value(t, total).Equal(1)
		gt.Array(t, items).Length(1)
		gt.String(t, string(items[0].ID)).NotEqual("")
		gt.Bool(t, items[0].CreatedAt.IsZero()).False()
		gt.Value(t, items[0].Operation).Equal("create_memory")
	})

	t.Run("List pages newest first", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		tenantID := newTenantID()

		base := time.Now().UTC().Add(-time.Minute)
		for i := 0; i < 5; i++ {
			err := repo.AuditLog().Put(ctx, &model.AuditLog{
				TenantID:  tenantID,
				Operation: fmt.Sprintf("op-%d", i),
				Success:   true,
				CreatedAt: base.Add(time.Duration(i) * time.Second),
			})
			gt.NoError(t, err).Required()
		}

		page, total, err := repo.AuditLog().List(ctx, tenantID, 2, 0)
		gt.NoError(t, err).Required()
		gt.Value(t, total).Equal(5)
		gt.Array(t, page).Length(2)
		gt.Value(t, page[0].Operation).Equal("op-4")
		gt.Value(t, page[1].Operation).Equal("op-3")

		next, total, err := repo.AuditLog().List(ctx, tenantID, 2, 2)
		gt.NoError(t, err).Required()
		gt.Value(t, total).Equal(5)
		gt.Value(t, next[0].Operation).Equal("op-2")
		gt.Value(t, next[1].Operation).Equal("op-1")
	})

	t.Run("a negative offset reads from the newest entry", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		tenantID := newTenantID()

		base := time.Now().UTC().Add(-time.Minute)
		for i := 0; i < 3; i++ {
			err := repo.AuditLog().Put(ctx, &model.AuditLog{
				TenantID:  tenantID,
				Operation: fmt.Sprintf("op-%d", i),
				Success:   true,
				CreatedAt: base.Add(time.Duration(i) * time.Second),
			})
			gt.NoError(t, err).Required()
		}

		page, total, err := repo.AuditLog().List(ctx, tenantID, 2, -3)
		gt.NoError(t, err).Required()
		gt.Value(t, total).Equal(3)
		gt.Array(t, page).Length(2)
		gt.Value(t, page[0].Operation).Equal("op-2")
	})

	t.Run("List beyond the last page is empty, not an error", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		tenantID := newTenantID()

		err := repo.AuditLog().Put(ctx, &model.AuditLog{TenantID: tenantID, Operation: "op"})
		gt.NoError(t, err).Required()

		page, total, err := repo.AuditLog().List(ctx, tenantID, 10, 100)
		gt.NoError(t, err).Required()
		gt.Value(t, total).Equal(1)
		gt.Array(t, page).Length(0)
	})

	t.Run("entries are tenant-scoped", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		tenantA := newTenantID()
		tenantB := tenantA + "-b"

		gt.NoError(t, repo.AuditLog().Put(ctx, &model.AuditLog{TenantID: tenantA, Operation: "mine"}))
		gt.NoError(t, repo.AuditLog().Put(ctx, &model.AuditLog{TenantID: tenantB, Operation: "theirs"}))

		items, total, err := repo.AuditLog().List(ctx, tenantA, 10, 0)
		gt.NoError(t, err).Required()
		gt.Value(t, total).Equal(1)
		gt.Value(t, items[0].Operation).Equal("mine")
	})

	t.Run("DeleteOlderThan expires only stale entries", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		tenantID := newTenantID()

		now := time.Now().UTC()
		gt.NoError(t, repo.AuditLog().Put(ctx, &model.AuditLog{
			TenantID: tenantID, Operation: "old", CreatedAt: now.Add(-48 * time.Hour),
		}))
		gt.NoError(t, repo.AuditLog().Put(ctx, &model.AuditLog{
			TenantID: tenantID, Operation: "fresh", CreatedAt: now,
		}))

		removed, err := repo.AuditLog().DeleteOlderThan(ctx, now.Add(-24*time.Hour))
		gt.NoError(t, err).Required()
		gt.Value(t, removed).Equal(1)

		items, total, err := repo.AuditLog().List(ctx, tenantID, 10, 0)
		gt.NoError(t, err).Required()
		gt.Value(t, total).Equal(1)
		gt.Value(t, items[0].Operation).Equal("fresh")
	})
}

func TestMemoryAuditLogStore(t *testing.T) {
	runAuditLogStoreTest(t, newMemoryBackend)
}

func TestFirestoreAuditLogStore(t *testing.T) {
	runAuditLogStoreTest(t, newFirestoreBackend)
}
