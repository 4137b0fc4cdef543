package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/engram-dev/engram/pkg/repository/memory"
	"github.com/engram-dev/engram/pkg/usecase"
	"github.com/m-mizutani/gt"
)

func createMemories(t *testing.T, uc *usecase.UseCases, tenantID types.TenantID, n int) []model.MemoryID {
	t.Helper()

	ids := make([]model.MemoryID, n)
	for i := range ids {
		created, err := uc.Memory.Create(context.Background(), tenantID, usecase.CreateMemoryInput{
			Content: "memory body",
		})
		gt.NoError(t, err).Required()
		ids[i] = created.ID
	}
	return ids
}

func TestLink(t *testing.T) {
	t.Run("creates a typed weighted edge", func(t *testing.T) {
		uc, _ := newUseCases(t)
		ids := createMemories(t, uc, "team-alpha", 2)

		rel, err := uc.Relationship.Link(context.Background(), "team-alpha",
			ids[0], ids[1], types.RelationSupersedes, 0.7)
		gt.NoError(t, err).Required()
		gt.Value(t, rel.Type).Equal(types.RelationSupersedes)
		gt.Value(t, rel.Strength).Equal(0.7)
		gt.Value(t, rel.FromID).Equal(ids[0])
		gt.Value(t, rel.ToID).Equal(ids[1])
	})

	t.Run("empty type defaults to RELATED_TO", func(t *testing.T) {
		uc, _ := newUseCases(t)
		ids := createMemories(t, uc, "team-alpha", 2)

		rel, err := uc.Relationship.Link(context.Background(), "team-alpha",
			ids[0], ids[1], "", 1)
		gt.NoError(t, err).Required()
		gt.Value(t, rel.Type).Equal(types.RelationRelatedTo)
	})

	t.Run("rejects a self link", func(t *testing.T) {
		uc, _ := newUseCases(t)
		ids := createMemories(t, uc, "team-alpha", 1)

		_, err := uc.Relationship.Link(context.Background(), "team-alpha",
			ids[0], ids[0], types.RelationRelatedTo, 1)
		gt.Bool(t, errors.Is(err, usecase.ErrSelfRelation)).True()
	})

	t.Run("rejects strength outside the unit interval", func(t *testing.T) {
		uc, _ := newUseCases(t)
		ids := createMemories(t, uc, "team-alpha", 2)

		for _, strength := range []float64{-0.1, 1.1} {
			_, err := uc.Relationship.Link(context.Background(), "team-alpha",
				ids[0], ids[1], types.RelationRelatedTo, strength)
			gt.Error(t, err)
		}
	})

	t.Run("rejects a missing endpoint", func(t *testing.T) {
		uc, _ := newUseCases(t)
		ids := createMemories(t, uc, "team-alpha", 1)

		_, err := uc.Relationship.Link(context.Background(), "team-alpha",
			ids[0], "no-such-id", types.RelationRelatedTo, 1)
		gt.Bool(t, errors.Is(err, usecase.ErrEndpointNotFound)).True()
	})

	t.Run("rejects an endpoint owned by another tenant", func(t *testing.T) {
		uc, _ := newUseCases(t)
		mine := createMemories(t, uc, "team-alpha", 1)
		theirs := createMemories(t, uc, "team-beta", 1)

		_, err := uc.Relationship.Link(context.Background(), "team-alpha",
			mine[0], theirs[0], types.RelationRelatedTo, 1)
		gt.Bool(t, errors.Is(err, usecase.ErrTenantDenied)).True()
	})
}

func TestUnlink(t *testing.T) {
	uc, _ := newUseCases(t)
	ctx := context.Background()
	ids := createMemories(t, uc, "team-alpha", 2)

	_, err := uc.Relationship.Link(ctx, "team-alpha", ids[0], ids[1], types.RelationRelatedTo, 1)
	gt.NoError(t, err).Required()

	gt.NoError(t, uc.Relationship.Unlink(ctx, "team-alpha", ids[0], ids[1]))

	err = uc.Relationship.Unlink(ctx, "team-alpha", ids[0], ids[1])
	gt.Bool(t, errors.Is(err, usecase.ErrRelationshipNotFound)).True()
}

func TestListFor(t *testing.T) {
	uc, _ := newUseCases(t)
	ctx := context.Background()
	ids := createMemories(t, uc, "team-alpha", 3)

	_, err := uc.Relationship.Link(ctx, "team-alpha", ids[0], ids[1], types.RelationRelatedTo, 1)
	gt.NoError(t, err).Required()
	_, err = uc.Relationship.Link(ctx, "team-alpha", ids[2], ids[0], types.RelationDerivedFrom, 1)
	gt.NoError(t, err).Required()

	edges, err := uc.Relationship.ListFor(ctx, "team-alpha", ids[0])
	gt.NoError(t, err).Required()
	gt.Array(t, edges).Length(2)
	// Outgoing first.
	gt.Value(t, edges[0].FromID).Equal(ids[0])
	gt.Value(t, edges[1].ToID).Equal(ids[0])
}

func createTaggedMemory(t *testing.T, uc *usecase.UseCases, tenantID types.TenantID, tags ...string) model.MemoryID {
	t.Helper()

	created, err := uc.Memory.Create(context.Background(), tenantID, usecase.CreateMemoryInput{
		Content: "memory body",
		Tags:    tags,
	})
	gt.NoError(t, err).Required()
	return created.ID
}

func TestFindRelated(t *testing.T) {
	t.Run("relates memories sharing the seed's tags without explicit links", func(t *testing.T) {
		uc, _ := newUseCases(t)
		ctx := context.Background()

		seed := createTaggedMemory(t, uc, "team-alpha", "auth")
		sibling := createTaggedMemory(t, uc, "team-alpha", "auth")

		related, err := uc.Relationship.FindRelated(ctx, "team-alpha", seed, 1)
		gt.NoError(t, err).Required()
		gt.Array(t, related).Length(1)
		gt.Value(t, related[0].ID).Equal(sibling)
	})

	t.Run("matches on every seed tag and never includes the seed", func(t *testing.T) {
		uc, _ := newUseCases(t)
		ctx := context.Background()

		seed := createTaggedMemory(t, uc, "team-alpha", "auth", "session")
		both := createTaggedMemory(t, uc, "team-alpha", "auth", "session", "jwt")
		createTaggedMemory(t, uc, "team-alpha", "auth")

		related, err := uc.Relationship.FindRelated(ctx, "team-alpha", seed, 1)
		gt.NoError(t, err).Required()
		gt.Array(t, related).Length(1)
		gt.Value(t, related[0].ID).Equal(both)
	})

	t.Run("caps results at five per depth level", func(t *testing.T) {
		uc, _ := newUseCases(t)
		ctx := context.Background()

		seed := createTaggedMemory(t, uc, "team-alpha", "auth")
		for i := 0; i < 7; i++ {
			createTaggedMemory(t, uc, "team-alpha", "auth")
		}

		oneLevel, err := uc.Relationship.FindRelated(ctx, "team-alpha", seed, 1)
		gt.NoError(t, err).Required()
		gt.Array(t, oneLevel).Length(5)

		twoLevels, err := uc.Relationship.FindRelated(ctx, "team-alpha", seed, 2)
		gt.NoError(t, err).Required()
		gt.Array(t, twoLevels).Length(7)
	})

	t.Run("an untagged seed has no relatives", func(t *testing.T) {
		uc, _ := newUseCases(t)
		ctx := context.Background()
		ids := createMemories(t, uc, "team-alpha", 2)

		related, err := uc.Relationship.FindRelated(ctx, "team-alpha", ids[0], 1)
		gt.NoError(t, err).Required()
		gt.Array(t, related).Length(0)
	})

	t.Run("tags never relate across tenants", func(t *testing.T) {
		uc, _ := newUseCases(t)
		ctx := context.Background()

		seed := createTaggedMemory(t, uc, "team-alpha", "auth")
		createTaggedMemory(t, uc, "team-beta", "auth")

		related, err := uc.Relationship.FindRelated(ctx, "team-alpha", seed, 1)
		gt.NoError(t, err).Required()
		gt.Array(t, related).Length(0)
	})

	t.Run("missing seed reports endpoint not found", func(t *testing.T) {
		uc, _ := newUseCases(t)

		_, err := uc.Relationship.FindRelated(context.Background(), "team-alpha", "no-such-id", 1)
		gt.Bool(t, errors.Is(err, usecase.ErrEndpointNotFound)).True()
	})
}

func newGraphUseCases(t *testing.T) *usecase.UseCases {
	t.Helper()

	repo := memory.New()
	uc, err := usecase.New(repo, usecase.WithRelatedResolver(usecase.NewGraphRelatedResolver(repo)))
	gt.NoError(t, err).Required()
	t.Cleanup(uc.Close)

	return uc
}

func TestFindRelatedGraphResolver(t *testing.T) {
	t.Run("follows outgoing edges up to depth", func(t *testing.T) {
		uc := newGraphUseCases(t)
		ctx := context.Background()
		ids := createMemories(t, uc, "team-alpha", 3)

		// Chain: 0 -> 1 -> 2
		_, err := uc.Relationship.Link(ctx, "team-alpha", ids[0], ids[1], types.RelationRelatedTo, 1)
		gt.NoError(t, err).Required()
		_, err = uc.Relationship.Link(ctx, "team-alpha", ids[1], ids[2], types.RelationRelatedTo, 1)
		gt.NoError(t, err).Required()

		oneHop, err := uc.Relationship.FindRelated(ctx, "team-alpha", ids[0], 1)
		gt.NoError(t, err).Required()
		gt.Array(t, oneHop).Length(1)
		gt.Value(t, oneHop[0].ID).Equal(ids[1])

		twoHops, err := uc.Relationship.FindRelated(ctx, "team-alpha", ids[0], 2)
		gt.NoError(t, err).Required()
		gt.Array(t, twoHops).Length(2)
		gt.Value(t, twoHops[0].ID).Equal(ids[1])
		gt.Value(t, twoHops[1].ID).Equal(ids[2])
	})

	t.Run("a cycle terminates without revisiting", func(t *testing.T) {
		uc := newGraphUseCases(t)
		ctx := context.Background()
		ids := createMemories(t, uc, "team-alpha", 2)

		_, err := uc.Relationship.Link(ctx, "team-alpha", ids[0], ids[1], types.RelationRelatedTo, 1)
		gt.NoError(t, err).Required()
		_, err = uc.Relationship.Link(ctx, "team-alpha", ids[1], ids[0], types.RelationRelatedTo, 1)
		gt.NoError(t, err).Required()

		related, err := uc.Relationship.FindRelated(ctx, "team-alpha", ids[0], 5)
		gt.NoError(t, err).Required()
		gt.Array(t, related).Length(1)
		gt.Value(t, related[0].ID).Equal(ids[1])
	})

	t.Run("non-positive depth means one hop", func(t *testing.T) {
		uc := newGraphUseCases(t)
		ctx := context.Background()
		ids := createMemories(t, uc, "team-alpha", 3)

		_, err := uc.Relationship.Link(ctx, "team-alpha", ids[0], ids[1], types.RelationRelatedTo, 1)
		gt.NoError(t, err).Required()
		_, err = uc.Relationship.Link(ctx, "team-alpha", ids[1], ids[2], types.RelationRelatedTo, 1)
		gt.NoError(t, err).Required()

		related, err := uc.Relationship.FindRelated(ctx, "team-alpha", ids[0], 0)
		gt.NoError(t, err).Required()
		gt.Array(t, related).Length(1)
	})
}
