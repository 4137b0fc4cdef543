package repository_test

import (
	"context"
	"testing"

	"github.com/engram-dev/engram/pkg/domain/interfaces"
	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/m-mizutani/gt"
)

func runRelationshipStoreTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	link := func(t *testing.T, repo interfaces.Repository, tenantID types.TenantID, from, to model.MemoryID, relType types.RelationType) *model.MemoryRelationship {
		t.Helper()
		rel, err := repo.Relationship().Create(context.Background(), &model.MemoryRelationship{
			TenantID: tenantID,
			FromID:   from,
			ToID:     to,
			Type:     relType,
			Strength: 0.8,
		})
		gt.NoError(t, err).Required()
		return rel
	}

	t.Run("Create assigns ID and timestamps", func(t *testing.T) {
		repo := newRepo(t)
		tenantID := newTenantID()

		rel := link(t, repo, tenantID, "mem-a", "mem-b", types.RelationRelatedTo)
		gt.String(t, rel.ID.String()).NotEqual("")
		gt.Bool(t, rel.CreatedAt.IsZero()).False()
		gt.Bool(t, rel.UpdatedAt.IsZero()).False()
		gt.Value(t, rel.Strength).Equal(0.8)
	})

	t.Run("Create on an existing pair updates in place", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		tenantID := newTenantID()

		first := link(t, repo, tenantID, "mem-a", "mem-b", types.RelationRelatedTo)

		updated, err := repo.Relationship().Create(ctx, &model.MemoryRelationship{
			TenantID: tenantID,
			FromID:   "mem-a",
			ToID:     "mem-b",
			Type:     types.RelationSupersedes,
			Strength: 0.3,
		})
		gt.NoError(t, err).Required()
		gt.Value(t, updated.ID).Equal(first.ID)
		gt.Value(t, updated.Type).Equal(types.RelationSupersedes)
		gt.Value(t, updated.Strength).Equal(0.3)

		all, err := repo.Relationship().ListByTenant(ctx, tenantID)
		gt.NoError(t, err).Required()
		gt.Array(t, all).Length(1)
	})

	t.Run("opposite directions are distinct edges", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		tenantID := newTenantID()

		link(t, repo, tenantID, "mem-a", "mem-b", types.RelationRelatedTo)
		link(t, repo, tenantID, "mem-b", "mem-a", types.RelationRelatedTo)

		all, err := repo.Relationship().ListByTenant(ctx, tenantID)
		gt.NoError(t, err).Required()
		gt.Array(t, all).Length(2)
	})

	t.Run("ListByFrom and ListByTo filter by endpoint", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		tenantID := newTenantID()

		link(t, repo, tenantID, "mem-a", "mem-b", types.RelationRelatedTo)
		link(t, repo, tenantID, "mem-a", "mem-c", types.RelationDerivedFrom)
		link(t, repo, tenantID, "mem-c", "mem-b", types.RelationRelatedTo)

		outgoing, err := repo.Relationship().ListByFrom(ctx, tenantID, "mem-a")
		gt.NoError(t, err).Required()
		gt.Array(t, outgoing).Length(2)
		for _, rel := range outgoing {
			gt.Value(t, rel.FromID).Equal(model.MemoryID("mem-a"))
		}

		incoming, err := repo.Relationship().ListByTo(ctx, tenantID, "mem-b")
		gt.NoError(t, err).Required()
		gt.Array(t, incoming).Length(2)
		for _, rel := range incoming {
			gt.Value(t, rel.ToID).Equal(model.MemoryID("mem-b"))
		}
	})

	t.Run("ListByType filters within the tenant", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		tenantID := newTenantID()

		link(t, repo, tenantID, "mem-a", "mem-b", types.RelationSupersedes)
		link(t, repo, tenantID, "mem-a", "mem-c", types.RelationRelatedTo)

		superseding, err := repo.Relationship().ListByType(ctx, tenantID, types.RelationSupersedes)
		gt.NoError(t, err).Required()
		gt.Array(t, superseding).Length(1)
		gt.Value(t, superseding[0].ToID).Equal(model.MemoryID("mem-b"))
	})

	t.Run("listings never cross tenants", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		tenantA := newTenantID()
		tenantB := types.TenantID(tenantA.String() + "-b")

		link(t, repo, tenantA, "mem-a", "mem-b", types.RelationRelatedTo)
		link(t, repo, tenantB, "mem-a", "mem-b", types.RelationRelatedTo)

		listed, err := repo.Relationship().ListByFrom(ctx, tenantA, "mem-a")
		gt.NoError(t, err).Required()
		gt.Array(t, listed).Length(1)
		gt.Value(t, listed[0].TenantID).Equal(tenantA)
	})

	t.Run("DeleteByFrom removes only outgoing edges", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		tenantID := newTenantID()

		link(t, repo, tenantID, "mem-a", "mem-b", types.RelationRelatedTo)
		link(t, repo, tenantID, "mem-a", "mem-c", types.RelationRelatedTo)
		link(t, repo, tenantID, "mem-b", "mem-a", types.RelationRelatedTo)

		removed, err := repo.Relationship().DeleteByFrom(ctx, tenantID, "mem-a")
		gt.NoError(t, err).Required()
		gt.Value(t, removed).Equal(2)

		remaining, err := repo.Relationship().ListByTenant(ctx, tenantID)
		gt.NoError(t, err).Required()
		gt.Array(t, remaining).Length(1)
		gt.Value(t, remaining[0].FromID).Equal(model.MemoryID("mem-b"))
	})

	t.Run("DeleteByMemory removes edges in both directions", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		tenantID := newTenantID()

		link(t, repo, tenantID, "mem-a", "mem-b", types.RelationRelatedTo)
		link(t, repo, tenantID, "mem-c", "mem-a", types.RelationRelatedTo)
		link(t, repo, tenantID, "mem-b", "mem-c", types.RelationRelatedTo)

		removed, err := repo.Relationship().DeleteByMemory(ctx, tenantID, "mem-a")
		gt.NoError(t, err).Required()
		gt.Value(t, removed).Equal(2)

		remaining, err := repo.Relationship().ListByTenant(ctx, tenantID)
		gt.NoError(t, err).Required()
		gt.Array(t, remaining).Length(1)
		gt.Value(t, remaining[0].FromID).Equal(model.MemoryID("mem-b"))
		gt.Value(t, remaining[0].ToID).Equal(model.MemoryID("mem-c"))
	})

	t.Run("DeleteByPair reports whether an edge existed", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		tenantID := newTenantID()

		link(t, repo, tenantID, "mem-a", "mem-b", types.RelationRelatedTo)

		found, err := repo.Relationship().DeleteByPair(ctx, tenantID, "mem-a", "mem-b")
		gt.NoError(t, err).Required()
		gt.Bool(t, found).True()

		found, err = repo.Relationship().DeleteByPair(ctx, tenantID, "mem-a", "mem-b")
		gt.NoError(t, err).Required()
		gt.Bool(t, found).False()
	})
}

func TestMemoryRelationshipStore(t *testing.T) {
	runRelationshipStoreTest(t, newMemoryBackend)
}

func TestFirestoreRelationshipStore(t *testing.T) {
	runRelationshipStoreTest(t, newFirestoreBackend)
}
