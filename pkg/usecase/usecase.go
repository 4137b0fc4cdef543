package usecase

import (
	"context"
	"time"

	"github.com/engram-dev/engram/pkg/domain/interfaces"
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/engram-dev/engram/pkg/service/prompt"
	"github.com/engram-dev/engram/pkg/service/ranking"
)

// DefaultSearchTimeout bounds a single ranked search.
const DefaultSearchTimeout = 5 * time.Second

type UseCases struct {
	repo          interfaces.Repository
	ranker        ranking.Ranker
	related       RelatedResolver
	enhancer      *prompt.Enhancer
	cache         *searchCache
	searchTimeout time.Duration

	Memory       *MemoryUseCase
	Relationship *RelationshipUseCase
	Audit        *AuditUseCase
}

type Option func(*UseCases)

// WithRanker replaces the default access-count ranker.
func WithRanker(ranker ranking.Ranker) Option {
	return func(uc *UseCases) {
		uc.ranker = ranker
	}
}

// WithRelatedResolver replaces the default tag-based related-memory
// resolver, e.g. with NewGraphRelatedResolver to follow explicit
// relationship edges instead.
func WithRelatedResolver(resolver RelatedResolver) Option {
	return func(uc *UseCases) {
		uc.related = resolver
	}
}

// WithSearchTimeout overrides the ranked-search deadline.
func WithSearchTimeout(d time.Duration) Option {
	return func(uc *UseCases) {
		uc.searchTimeout = d
	}
}

func New(repo interfaces.Repository, opts ...Option) (*UseCases, error) {
	cache, err := newSearchCache()
	if err != nil {
		return nil, err
	}

	uc := &UseCases{
		repo:          repo,
		cache:         cache,
		searchTimeout: DefaultSearchTimeout,
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.ranker == nil {
		uc.ranker = ranking.NewAccessCountRanker(repo.Memory())
	}
	if uc.related == nil {
		uc.related = NewTagRelatedResolver(repo)
	}
	uc.enhancer = prompt.New(uc.ranker, repo.Memory())

	uc.Memory = NewMemoryUseCase(repo, uc.ranker, uc.cache, uc.searchTimeout)
	uc.Relationship = NewRelationshipUseCase(repo, uc.related)
	uc.Audit = NewAuditUseCase(repo)

	return uc, nil
}

// Intercept enhances an agent prompt with the tenant's relevant
// memories.
func (uc *UseCases) Intercept(ctx context.Context, tenantID types.TenantID, input string) (*prompt.Enhancement, error) {
	return uc.enhancer.Enhance(ctx, tenantID, input)
}

// Close releases cached resources. The repository is closed by its
// owner, not here.
func (uc *UseCases) Close() {
	uc.cache.close()
}
