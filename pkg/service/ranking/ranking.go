package ranking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/engram-dev/engram/pkg/domain/interfaces"
	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	fsrepo "github.com/engram-dev/engram/pkg/repository/firestore"
	memrepo "github.com/engram-dev/engram/pkg/repository/memory"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	chromem "github.com/philippgille/chromem-go"
)

// Ranker orders a tenant's memories for retrieval. Implementations
// must never return memories of another tenant.
type Ranker interface {
	// Rank returns up to limit memories for the tenant, most relevant
	// first. The query may be empty; implementations fall back to
	// usage-based ordering in that case.
	Rank(ctx context.Context, tenantID types.TenantID, query string, limit int) ([]*model.Memory, error)

	// Index makes the memory retrievable by Rank.
	Index(ctx context.Context, mem *model.Memory) error

	// Remove drops the memory from the ranking index.
	Remove(ctx context.Context, tenantID types.TenantID, id model.MemoryID) error
}

// AccessCountRanker orders memories by how often they have been read.
// It needs no index of its own; the repository keeps the counters.
type AccessCountRanker struct {
	repo interfaces.MemoryRepository
}

var _ Ranker = &AccessCountRanker{}

func NewAccessCountRanker(repo interfaces.MemoryRepository) *AccessCountRanker {
	return &AccessCountRanker{repo: repo}
}

func (r *AccessCountRanker) Rank(ctx context.Context, tenantID types.TenantID, _ string, limit int) ([]*model.Memory, error) {
	return r.repo.Search(ctx, tenantID, limit)
}

func (r *AccessCountRanker) Index(ctx context.Context, mem *model.Memory) error {
	return nil
}

func (r *AccessCountRanker) Remove(ctx context.Context, tenantID types.TenantID, id model.MemoryID) error {
	return nil
}

// VectorRanker orders memories by embedding similarity to the query.
// Each tenant gets its own chromem collection so a similarity search
// can never cross tenants. The repository stays the source of truth;
// the vector index only yields candidate IDs.
type VectorRanker struct {
	repo      interfaces.MemoryRepository
	llmClient gollem.LLMClient
	db        *chromem.DB
	mu        sync.Mutex
}

var _ Ranker = &VectorRanker{}

func NewVectorRanker(repo interfaces.MemoryRepository, llmClient gollem.LLMClient) *VectorRanker {
	return &VectorRanker{
		repo:      repo,
		llmClient: llmClient,
		db:        chromem.NewDB(),
	}
}

func (r *VectorRanker) collection(tenantID types.TenantID) (*chromem.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	col, err := r.db.GetOrCreateCollection(fmt.Sprintf("tenant_%s", tenantID.String()), nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open vector collection",
			goerr.V("tenant_id", tenantID.String()))
	}
	return col, nil
}

func (r *VectorRanker) embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := r.llmClient.GenerateEmbedding(ctx, model.EmbeddingDimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(embeddings) == 0 {
		return nil, goerr.New("embedding response was empty")
	}

	vec := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		vec[i] = float32(v)
	}
	return vec, nil
}

// embeddingText picks the text that represents the memory in vector
// space. The summary is preferred when present: it is denser than the
// raw content.
func embeddingText(mem *model.Memory) string {
	if mem.Summary != "" {
		return mem.Summary
	}
	return mem.Content
}

func (r *VectorRanker) Rank(ctx context.Context, tenantID types.TenantID, query string, limit int) ([]*model.Memory, error) {
	if limit <= 0 {
		return []*model.Memory{}, nil
	}
	if query == "" {
		return r.repo.Search(ctx, tenantID, limit)
	}

	col, err := r.collection(tenantID)
	if err != nil {
		return nil, err
	}

	// chromem requires nResults <= collection size.
	n := limit
	if count := col.Count(); count < n {
		n = count
	}
	if n == 0 {
		return []*model.Memory{}, nil
	}

	vec, err := r.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := col.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "vector query failed",
			goerr.V("tenant_id", tenantID.String()))
	}

	memories := []*model.Memory{}
	for _, result := range results {
		mem, err := r.repo.Get(ctx, model.MemoryID(result.ID))
		if err != nil {
			// A hit for a memory deleted since indexing is stale, not
			// fatal.
			if errors.Is(err, memrepo.ErrNotFound) || errors.Is(err, fsrepo.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if mem.TenantID != tenantID {
			continue
		}
		memories = append(memories, mem)
	}
	return memories, nil
}

func (r *VectorRanker) Index(ctx context.Context, mem *model.Memory) error {
	col, err := r.collection(mem.TenantID)
	if err != nil {
		return err
	}

	vec, err := r.embed(ctx, embeddingText(mem))
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        mem.ID.String(),
		Content:   embeddingText(mem),
		Embedding: vec,
		Metadata: map[string]string{
			"tenant_id": mem.TenantID.String(),
			"category":  mem.Category.String(),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to index memory",
			goerr.V("memory_id", mem.ID.String()))
	}
	return nil
}

func (r *VectorRanker) Remove(ctx context.Context, tenantID types.TenantID, id model.MemoryID) error {
	col, err := r.collection(tenantID)
	if err != nil {
		return err
	}

	if err := col.Delete(ctx, nil, nil, id.String()); err != nil {
		return goerr.Wrap(err, "failed to remove memory from index",
			goerr.V("memory_id", id.String()))
	}
	return nil
}
