package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/engram-dev/engram/pkg/domain/interfaces"
	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/engram-dev/engram/pkg/repository/memory"
	"github.com/engram-dev/engram/pkg/usecase"
	"github.com/m-mizutani/gt"
)

func newUseCases(t *testing.T, opts ...usecase.Option) (*usecase.UseCases, interfaces.Repository) {
	t.Helper()

	repo := memory.New()
	uc, err := usecase.New(repo, opts...)
	gt.NoError(t, err).Required()
	t.Cleanup(uc.Close)

	return uc, repo
}

// countingRanker wraps the repository search and counts invocations.
type countingRanker struct {
	repo  interfaces.MemoryRepository
	calls atomic.Int64
}

func (r *countingRanker) Rank(ctx context.Context, tenantID types.TenantID, _ string, limit int) ([]*model.Memory, error) {
	r.calls.Add(1)
	return r.repo.Search(ctx, tenantID, limit)
}

func (r *countingRanker) Index(context.Context, *model.Memory) error { return nil }

func (r *countingRanker) Remove(context.Context, types.TenantID, model.MemoryID) error { return nil }

// stalledRanker blocks until the search deadline fires.
type stalledRanker struct{}

func (stalledRanker) Rank(ctx context.Context, _ types.TenantID, _ string, _ int) ([]*model.Memory, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledRanker) Index(context.Context, *model.Memory) error { return nil }

func (stalledRanker) Remove(context.Context, types.TenantID, model.MemoryID) error { return nil }

func TestMemoryCreate(t *testing.T) {
	t.Run("creates with defaults applied", func(t *testing.T) {
		uc, _ := newUseCases(t)

		created, err := uc.Memory.Create(context.Background(), "team-alpha", usecase.CreateMemoryInput{
			Content: "prefer table-driven tests",
		})
		gt.NoError(t, err).Required()
		gt.Value(t, created.Version).Equal(1)
		gt.Value(t, created.Importance).Equal(types.ImportanceMinor)
		gt.Value(t, created.TenantID.String()).Equal("team-alpha")
	})

	t.Run("rejects blank content", func(t *testing.T) {
		uc, _ := newUseCases(t)

		_, err := uc.Memory.Create(context.Background(), "team-alpha", usecase.CreateMemoryInput{
			Content: "   \n\t ",
		})
		gt.Error(t, err)
	})

	t.Run("rejects oversized content", func(t *testing.T) {
		uc, _ := newUseCases(t)

		_, err := uc.Memory.Create(context.Background(), "team-alpha", usecase.CreateMemoryInput{
			Content: strings.Repeat("x", model.MaxContentLength+1),
		})
		gt.Error(t, err)
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		uc, _ := newUseCases(t)

		_, err := uc.Memory.Create(context.Background(), "team-alpha", usecase.CreateMemoryInput{
			Content:  "valid content",
			Category: "NOTES",
		})
		gt.Error(t, err)
	})
}

func TestMemoryGet(t *testing.T) {
	t.Run("records the access", func(t *testing.T) {
		uc, repo := newUseCases(t)
		ctx := context.Background()

		created, err := uc.Memory.Create(ctx, "team-alpha", usecase.CreateMemoryInput{
			Content: "read me",
		})
		gt.NoError(t, err).Required()

		got, err := uc.Memory.Get(ctx, "team-alpha", created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.AccessCount).Equal(int64(1))

		stored, err := repo.Memory().Get(ctx, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, stored.AccessCount).Equal(int64(1))
		gt.Bool(t, stored.LastAccessedAt.IsZero()).False()
	})

	t.Run("missing memory reports not found", func(t *testing.T) {
		uc, _ := newUseCases(t)

		_, err := uc.Memory.Get(context.Background(), "team-alpha", "no-such-id")
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrMemoryNotFound)).True()
	})

	t.Run("another tenant's memory is denied, not hidden", func(t *testing.T) {
		uc, _ := newUseCases(t)
		ctx := context.Background()

		created, err := uc.Memory.Create(ctx, "team-alpha", usecase.CreateMemoryInput{
			Content: "alpha secret",
		})
		gt.NoError(t, err).Required()

		_, err = uc.Memory.Get(ctx, "team-beta", created.ID)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrTenantDenied)).True()
	})
}

func TestMemoryUpdate(t *testing.T) {
	t.Run("applies only the given fields and bumps version", func(t *testing.T) {
		uc, _ := newUseCases(t)
		ctx := context.Background()

		created, err := uc.Memory.Create(ctx, "team-alpha", usecase.CreateMemoryInput{
			Content:  "original content",
			Summary:  "original summary",
			Tags:     []string{"keep"},
			Category: types.CategoryDecision,
		})
		gt.NoError(t, err).Required()

		newContent := "revised content"
		updated, err := uc.Memory.Update(ctx, "team-alpha", created.ID, usecase.UpdateMemoryInput{
			Content: &newContent,
		})
		gt.NoError(t, err).Required()

		gt.Value(t, updated.Version).Equal(2)
		gt.Value(t, updated.Content).Equal("revised content")
		gt.Value(t, updated.Summary).Equal("original summary")
		gt.Value(t, updated.Category).Equal(types.CategoryDecision)
		gt.Array(t, updated.Tags).Equal([]string{"keep"})
	})

	t.Run("cross-tenant update is denied", func(t *testing.T) {
		uc, _ := newUseCases(t)
		ctx := context.Background()

		created, err := uc.Memory.Create(ctx, "team-alpha", usecase.CreateMemoryInput{
			Content: "alpha owned",
		})
		gt.NoError(t, err).Required()

		summary := "hijacked"
		_, err = uc.Memory.Update(ctx, "team-beta", created.ID, usecase.UpdateMemoryInput{
			Summary: &summary,
		})
		gt.Bool(t, errors.Is(err, usecase.ErrTenantDenied)).True()
	})
}

func TestMemorySearch(t *testing.T) {
	t.Run("non-positive limit yields empty results", func(t *testing.T) {
		uc, _ := newUseCases(t)

		results, err := uc.Memory.Search(context.Background(), "team-alpha", "anything", 0)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(0)
	})

	t.Run("identical searches serve from cache", func(t *testing.T) {
		ranker := &countingRanker{}
		uc, repo := newUseCases(t, usecase.WithRanker(ranker))
		ranker.repo = repo.Memory()
		ctx := context.Background()

		_, err := uc.Memory.Create(ctx, "team-alpha", usecase.CreateMemoryInput{
			Content: "cacheable knowledge",
		})
		gt.NoError(t, err).Required()

		first, err := uc.Memory.Search(ctx, "team-alpha", "knowledge", 10)
		gt.NoError(t, err).Required()
		gt.Array(t, first).Length(1)

		// Cache writes apply asynchronously; poll until a repeat search
		// stops reaching the ranker.
		hit := false
		for i := 0; i < 50 && !hit; i++ {
			before := ranker.calls.Load()
			again, err := uc.Memory.Search(ctx, "team-alpha", "knowledge", 10)
			gt.NoError(t, err).Required()
			gt.Array(t, again).Length(1)
			hit = ranker.calls.Load() == before
			time.Sleep(10 * time.Millisecond)
		}
		gt.Bool(t, hit).True()
	})

	t.Run("writes invalidate cached searches", func(t *testing.T) {
		uc, _ := newUseCases(t)
		ctx := context.Background()

		_, err := uc.Memory.Create(ctx, "team-alpha", usecase.CreateMemoryInput{
			Content: "first entry",
		})
		gt.NoError(t, err).Required()

		results, err := uc.Memory.Search(ctx, "team-alpha", "entries", 10)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(1)

		_, err = uc.Memory.Create(ctx, "team-alpha", usecase.CreateMemoryInput{
			Content: "second entry",
		})
		gt.NoError(t, err).Required()

		results, err = uc.Memory.Search(ctx, "team-alpha", "entries", 10)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(2)
	})

	t.Run("a stalled ranker surfaces as deadline exceeded", func(t *testing.T) {
		uc, _ := newUseCases(t,
			usecase.WithRanker(stalledRanker{}),
			usecase.WithSearchTimeout(50*time.Millisecond))

		start := time.Now()
		_, err := uc.Memory.Search(context.Background(), "team-alpha", "slow", 10)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, context.DeadlineExceeded)).True()
		gt.Bool(t, time.Since(start) < 5*time.Second).True()
	})
}

func TestMemoryDelete(t *testing.T) {
	t.Run("cascades to relationships on both sides", func(t *testing.T) {
		uc, repo := newUseCases(t)
		ctx := context.Background()

		a, err := uc.Memory.Create(ctx, "team-alpha", usecase.CreateMemoryInput{Content: "a"})
		gt.NoError(t, err).Required()
		b, err := uc.Memory.Create(ctx, "team-alpha", usecase.CreateMemoryInput{Content: "b"})
		gt.NoError(t, err).Required()
		c, err := uc.Memory.Create(ctx, "team-alpha", usecase.CreateMemoryInput{Content: "c"})
		gt.NoError(t, err).Required()

		_, err = uc.Relationship.Link(ctx, "team-alpha", a.ID, b.ID, types.RelationRelatedTo, 1)
		gt.NoError(t, err).Required()
		_, err = uc.Relationship.Link(ctx, "team-alpha", c.ID, a.ID, types.RelationRelatedTo, 1)
		gt.NoError(t, err).Required()

		gt.NoError(t, uc.Memory.Delete(ctx, "team-alpha", a.ID))

		_, err = repo.Memory().Get(ctx, a.ID)
		gt.Error(t, err)

		outgoing, err := repo.Relationship().ListByFrom(ctx, "team-alpha", a.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, outgoing).Length(0)
		incoming, err := repo.Relationship().ListByTo(ctx, "team-alpha", a.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, incoming).Length(0)

		// Unrelated memories survive.
		_, err = repo.Memory().Get(ctx, b.ID)
		gt.NoError(t, err)
	})

	t.Run("missing memory reports not found", func(t *testing.T) {
		uc, _ := newUseCases(t)

		err := uc.Memory.Delete(context.Background(), "team-alpha", "no-such-id")
		gt.Bool(t, errors.Is(err, usecase.ErrMemoryNotFound)).True()
	})

	t.Run("cross-tenant delete is denied", func(t *testing.T) {
		uc, _ := newUseCases(t)
		ctx := context.Background()

		created, err := uc.Memory.Create(ctx, "team-alpha", usecase.CreateMemoryInput{Content: "x"})
		gt.NoError(t, err).Required()

		err = uc.Memory.Delete(ctx, "team-beta", created.ID)
		gt.Bool(t, errors.Is(err, usecase.ErrTenantDenied)).True()
	})
}

func TestMemoryFeedback(t *testing.T) {
	uc, repo := newUseCases(t)
	ctx := context.Background()

	created, err := uc.Memory.Create(ctx, "team-alpha", usecase.CreateMemoryInput{Content: "rated"})
	gt.NoError(t, err).Required()

	gt.NoError(t, uc.Memory.Feedback(ctx, "team-alpha", created.ID, true))
	gt.NoError(t, uc.Memory.Feedback(ctx, "team-alpha", created.ID, false))

	stored, err := repo.Memory().Get(ctx, created.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, stored.HelpfulCount).Equal(int64(1))
	gt.Value(t, stored.NotHelpfulCount).Equal(int64(1))

	err = uc.Memory.Feedback(ctx, "team-beta", created.ID, true)
	gt.Bool(t, errors.Is(err, usecase.ErrTenantDenied)).True()
}

func TestMemoryVersionsAndCount(t *testing.T) {
	uc, _ := newUseCases(t)
	ctx := context.Background()

	created, err := uc.Memory.Create(ctx, "team-alpha", usecase.CreateMemoryInput{Content: "v1"})
	gt.NoError(t, err).Required()

	content := "v2"
	_, err = uc.Memory.Update(ctx, "team-alpha", created.ID, usecase.UpdateMemoryInput{Content: &content})
	gt.NoError(t, err).Required()

	versions, err := uc.Memory.Versions(ctx, "team-alpha", created.ID)
	gt.NoError(t, err).Required()
	gt.Array(t, versions).Equal([]int{1})

	count, err := uc.Memory.Count(ctx, "team-alpha")
	gt.NoError(t, err).Required()
	gt.Value(t, count).Equal(1)

	_, err = uc.Memory.Versions(ctx, "team-alpha", "no-such-id")
	gt.Bool(t, errors.Is(err, usecase.ErrMemoryNotFound)).True()
}
