package prompt_test

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/engram-dev/engram/pkg/repository/memory"
	"github.com/engram-dev/engram/pkg/service/prompt"
	"github.com/engram-dev/engram/pkg/service/ranking"
	"github.com/m-mizutani/gt"
)

const testTenantID = types.TenantID("team-prompt-test")

func newEnhancer(t *testing.T, opts ...prompt.Option) (*prompt.Enhancer, *memory.Memory) {
	t.Helper()

	repo := memory.New()
	ranker := ranking.NewAccessCountRanker(repo.Memory())
	return prompt.New(ranker, repo.Memory(), opts...), repo
}

func seedMemory(t *testing.T, repo *memory.Memory, summary, content string) *model.Memory {
	t.Helper()
	saved, err := repo.Memory().Save(context.Background(), &model.Memory{
		TenantID:   testTenantID,
		Content:    content,
		Summary:    summary,
		Category:   types.CategoryDomain,
		Importance: types.ImportanceImportant,
	})
	gt.NoError(t, err).Required()
	return saved
}

func TestEnhance(t *testing.T) {
	t.Run("prepends relevant memories and keeps the input", func(t *testing.T) {
		enhancer, repo := newEnhancer(t)
		ctx := context.Background()

		saved := seedMemory(t, repo, "payment cap", "payments over 10000 are rejected")

		result, err := enhancer.Enhance(ctx, testTenantID, "implement refunds")
		gt.NoError(t, err).Required()

		gt.Bool(t, strings.Contains(result.Prompt, "payment cap")).True()
		gt.Bool(t, strings.Contains(result.Prompt, "DOMAIN/IMPORTANT")).True()
		gt.Bool(t, strings.HasSuffix(result.Prompt, "implement refunds")).True()
		gt.Array(t, result.InjectedIDs).Equal([]model.MemoryID{saved.ID})
	})

	t.Run("records an injection per woven memory", func(t *testing.T) {
		enhancer, repo := newEnhancer(t)
		ctx := context.Background()

		saved := seedMemory(t, repo, "cap", "content")

		_, err := enhancer.Enhance(ctx, testTenantID, "do something")
		gt.NoError(t, err).Required()

		stored, err := repo.Memory().Get(ctx, saved.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, stored.InjectionCount).Equal(int64(1))
	})

	t.Run("no matching memories passes the prompt through", func(t *testing.T) {
		enhancer, _ := newEnhancer(t)

		result, err := enhancer.Enhance(context.Background(), testTenantID, "clean slate")
		gt.NoError(t, err).Required()
		gt.Value(t, result.Prompt).Equal("clean slate")
		gt.Array(t, result.InjectedIDs).Length(0)
	})

	t.Run("blank prompt is rejected", func(t *testing.T) {
		enhancer, _ := newEnhancer(t)

		_, err := enhancer.Enhance(context.Background(), testTenantID, "  \n ")
		gt.Error(t, err)
	})

	t.Run("injection cap limits how many memories are woven", func(t *testing.T) {
		enhancer, repo := newEnhancer(t, prompt.WithMaxMemories(2))
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			seedMemory(t, repo, "summary", "content")
		}

		result, err := enhancer.Enhance(ctx, testTenantID, "capped")
		gt.NoError(t, err).Required()
		gt.Array(t, result.InjectedIDs).Length(2)
	})

	t.Run("long content is truncated into a snippet", func(t *testing.T) {
		enhancer, repo := newEnhancer(t)
		ctx := context.Background()

		seedMemory(t, repo, "", strings.Repeat("x", 2000))

		result, err := enhancer.Enhance(ctx, testTenantID, "truncate")
		gt.NoError(t, err).Required()
		gt.Bool(t, strings.Contains(result.Prompt, strings.Repeat("x", 500)+"...")).True()
		gt.Bool(t, strings.Contains(result.Prompt, strings.Repeat("x", 501))).False()
	})

	t.Run("truncation never splits a multi-byte rune", func(t *testing.T) {
		enhancer, repo := newEnhancer(t)
		ctx := context.Background()

		// 200 three-byte runes: 600 bytes, so a byte-wise cut at 500
		// would land mid-rune.
		seedMemory(t, repo, "", strings.Repeat("世", 200))

		result, err := enhancer.Enhance(ctx, testTenantID, "truncate")
		gt.NoError(t, err).Required()
		gt.Bool(t, utf8.ValidString(result.Prompt)).True()
		gt.Bool(t, strings.Contains(result.Prompt, "�")).False()
	})
}
