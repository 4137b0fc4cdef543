package prompt

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/engram-dev/engram/pkg/domain/interfaces"
	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/engram-dev/engram/pkg/service/ranking"
	"github.com/engram-dev/engram/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultMaxMemories caps how many memories a single prompt pulls in.
const DefaultMaxMemories = 5

// snippetLength caps how much of a memory body is injected into the
// prompt.
const snippetLength = 500

// Enhancement is the result of running a prompt through the enhancer.
type Enhancement struct {
	// Prompt is the enhanced prompt. Equal to the input when no
	// memories matched.
	Prompt string

	// InjectedIDs lists the memories woven into the prompt, most
	// relevant first.
	InjectedIDs []model.MemoryID
}

// Enhancer injects a tenant's relevant memories into an agent prompt
// before it reaches the model.
type Enhancer struct {
	ranker      ranking.Ranker
	repo        interfaces.MemoryRepository
	maxMemories int
}

type Option func(*Enhancer)

// WithMaxMemories overrides the injection cap.
func WithMaxMemories(n int) Option {
	return func(e *Enhancer) {
		e.maxMemories = n
	}
}

func New(ranker ranking.Ranker, repo interfaces.MemoryRepository, opts ...Option) *Enhancer {
	e := &Enhancer{
		ranker:      ranker,
		repo:        repo,
		maxMemories: DefaultMaxMemories,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enhance looks up memories relevant to the prompt and prepends them
// as context. Injection counters are bumped best-effort: a counter
// failure never drops the enhancement.
func (e *Enhancer) Enhance(ctx context.Context, tenantID types.TenantID, input string) (*Enhancement, error) {
	if strings.TrimSpace(input) == "" {
		return nil, goerr.New("prompt must not be empty")
	}

	memories, err := e.ranker.Rank(ctx, tenantID, input, e.maxMemories)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to rank memories for prompt",
			goerr.V("tenant_id", tenantID.String()))
	}
	if len(memories) == 0 {
		return &Enhancement{Prompt: input, InjectedIDs: []model.MemoryID{}}, nil
	}

	var sb strings.Builder
	sb.WriteString("# Relevant memories\n\n")
	sb.WriteString("The following memories from earlier sessions may be relevant:\n\n")

	injected := make([]model.MemoryID, 0, len(memories))
	for _, mem := range memories {
		fmt.Fprintf(&sb, "- [%s/%s] %s\n", mem.Category, mem.Importance, snippet(mem))
		injected = append(injected, mem.ID)
	}
	sb.WriteString("\n---\n\n")
	sb.WriteString(input)

	for _, id := range injected {
		if err := e.repo.RecordInjection(ctx, id); err != nil {
			logging.From(ctx).Warn("failed to record memory injection",
				"memory_id", id.String(), "error", err.Error())
		}
	}

	return &Enhancement{Prompt: sb.String(), InjectedIDs: injected}, nil
}

func snippet(mem *model.Memory) string {
	text := mem.Summary
	if text == "" {
		text = mem.Content
	}
	text = strings.ReplaceAll(text, "\n", " ")
	if len(text) > snippetLength {
		// Back up to a rune boundary so the cut never emits invalid
		// UTF-8 into the prompt.
		cut := snippetLength
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	return text
}
