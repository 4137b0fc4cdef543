package usecase

import (
	"context"

	"github.com/engram-dev/engram/pkg/domain/interfaces"
	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// relatedFanout caps how many related memories a lookup may return
// per depth level.
const relatedFanout = 5

// RelatedResolver selects candidate memories related to a seed.
// FindRelated owns seed validation and the result cap; resolvers only
// produce candidates. TagRelatedResolver is the default; a graph
// traversal can substitute through WithRelatedResolver.
type RelatedResolver interface {
	Resolve(ctx context.Context, seed *model.Memory, depth int) ([]*model.Memory, error)
}

// RelationshipUseCase manages directed edges between a tenant's
// memories.
type RelationshipUseCase struct {
	repo     interfaces.Repository
	resolver RelatedResolver
}

func NewRelationshipUseCase(repo interfaces.Repository, resolver RelatedResolver) *RelationshipUseCase {
	return &RelationshipUseCase{repo: repo, resolver: resolver}
}

// checkEndpoint verifies the memory exists and belongs to the tenant,
// returning it on success.
func (uc *RelationshipUseCase) checkEndpoint(ctx context.Context, tenantID types.TenantID, id model.MemoryID) (*model.Memory, error) {
	mem, err := uc.repo.Memory().Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, goerr.Wrap(ErrEndpointNotFound, "relationship endpoint missing",
				goerr.V(MemoryIDKey, id.String()))
		}
		return nil, goerr.Wrap(err, "failed to check relationship endpoint",
			goerr.V(MemoryIDKey, id.String()))
	}
	if mem.TenantID != tenantID {
		return nil, goerr.Wrap(ErrTenantDenied, "relationship endpoint belongs to another tenant",
			goerr.V(MemoryIDKey, id.String()),
			goerr.V(TenantIDKey, tenantID.String()))
	}
	return mem, nil
}

// Link creates or updates the directed edge from one memory to
// another. Both endpoints must exist within the tenant.
func (uc *RelationshipUseCase) Link(ctx context.Context, tenantID types.TenantID, from, to model.MemoryID, relType types.RelationType, strength float64) (*model.MemoryRelationship, error) {
	if from == to {
		return nil, goerr.Wrap(ErrSelfRelation, "cannot link memory to itself",
			goerr.V(MemoryIDKey, from.String()))
	}
	relType = relType.Normalize()
	if !relType.IsValid() {
		return nil, goerr.New("invalid relation type", goerr.V("type", relType.String()))
	}
	if strength < 0 || strength > 1 {
		return nil, goerr.New("relation strength must be within [0, 1]",
			goerr.V("strength", strength))
	}

	if _, err := uc.checkEndpoint(ctx, tenantID, from); err != nil {
		return nil, err
	}
	if _, err := uc.checkEndpoint(ctx, tenantID, to); err != nil {
		return nil, err
	}

	rel, err := uc.repo.Relationship().Create(ctx, &model.MemoryRelationship{
		FromID:   from,
		ToID:     to,
		Type:     relType,
		Strength: strength,
		TenantID: tenantID,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to link memories",
			goerr.V("from", from.String()),
			goerr.V("to", to.String()))
	}
	return rel, nil
}

// Unlink removes the edge for the pair. Returns
// ErrRelationshipNotFound when no such edge exists.
func (uc *RelationshipUseCase) Unlink(ctx context.Context, tenantID types.TenantID, from, to model.MemoryID) error {
	found, err := uc.repo.Relationship().DeleteByPair(ctx, tenantID, from, to)
	if err != nil {
		return goerr.Wrap(err, "failed to unlink memories",
			goerr.V("from", from.String()),
			goerr.V("to", to.String()))
	}
	if !found {
		return goerr.Wrap(ErrRelationshipNotFound, "relationship not found",
			goerr.V("from", from.String()),
			goerr.V("to", to.String()))
	}
	return nil
}

// ListFor returns every edge touching the memory, outgoing first.
func (uc *RelationshipUseCase) ListFor(ctx context.Context, tenantID types.TenantID, id model.MemoryID) ([]*model.MemoryRelationship, error) {
	outgoing, err := uc.repo.Relationship().ListByFrom(ctx, tenantID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list outgoing relationships",
			goerr.V(MemoryIDKey, id.String()))
	}
	incoming, err := uc.repo.Relationship().ListByTo(ctx, tenantID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list incoming relationships",
			goerr.V(MemoryIDKey, id.String()))
	}
	return append(outgoing, incoming...), nil
}

// FindRelated returns the memories the configured resolver considers
// related to the seed. The result is capped at depth*relatedFanout
// entries so a dense tenant cannot blow up the response.
func (uc *RelationshipUseCase) FindRelated(ctx context.Context, tenantID types.TenantID, id model.MemoryID, depth int) ([]*model.Memory, error) {
	if depth <= 0 {
		depth = 1
	}
	seed, err := uc.checkEndpoint(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	related, err := uc.resolver.Resolve(ctx, seed, depth)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve related memories",
			goerr.V(MemoryIDKey, id.String()))
	}
	if max := depth * relatedFanout; len(related) > max {
		related = related[:max]
	}
	return related, nil
}

// TagRelatedResolver relates memories that carry every tag of the
// seed. A seed without tags has no relatives.
type TagRelatedResolver struct {
	repo interfaces.Repository
}

func NewTagRelatedResolver(repo interfaces.Repository) *TagRelatedResolver {
	return &TagRelatedResolver{repo: repo}
}

func (r *TagRelatedResolver) Resolve(ctx context.Context, seed *model.Memory, _ int) ([]*model.Memory, error) {
	if len(seed.Tags) == 0 {
		return []*model.Memory{}, nil
	}
	candidates, err := r.repo.Memory().FindByTags(ctx, seed.TenantID, seed.Tags)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find tag relatives")
	}
	result := make([]*model.Memory, 0, len(candidates))
	for _, mem := range candidates {
		if mem.ID == seed.ID {
			continue
		}
		result = append(result, mem)
	}
	return result, nil
}

// GraphRelatedResolver walks outgoing relationship edges breadth-first
// up to depth hops, nearest first. Cycles terminate via the visited
// set.
type GraphRelatedResolver struct {
	repo interfaces.Repository
}

func NewGraphRelatedResolver(repo interfaces.Repository) *GraphRelatedResolver {
	return &GraphRelatedResolver{repo: repo}
}

func (r *GraphRelatedResolver) Resolve(ctx context.Context, seed *model.Memory, depth int) ([]*model.Memory, error) {
	tenantID := seed.TenantID
	maxResults := depth * relatedFanout
	visited := map[model.MemoryID]bool{seed.ID: true}
	frontier := []model.MemoryID{seed.ID}
	result := []*model.Memory{}

	for hop := 0; hop < depth && len(frontier) > 0 && len(result) < maxResults; hop++ {
		next := []model.MemoryID{}
		for _, current := range frontier {
			edges, err := r.repo.Relationship().ListByFrom(ctx, tenantID, current)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to traverse relationships",
					goerr.V(MemoryIDKey, current.String()))
			}

			for _, edge := range edges {
				if visited[edge.ToID] {
					continue
				}
				visited[edge.ToID] = true

				mem, err := r.repo.Memory().Get(ctx, edge.ToID)
				if err != nil {
					if isNotFound(err) {
						continue
					}
					return nil, goerr.Wrap(err, "failed to load related memory",
						goerr.V(MemoryIDKey, edge.ToID.String()))
				}
				if mem.TenantID != tenantID {
					continue
				}

				result = append(result, mem)
				if len(result) >= maxResults {
					return result, nil
				}
				next = append(next, edge.ToID)
			}
		}
		frontier = next
	}

	return result, nil
}
