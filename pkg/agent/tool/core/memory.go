package core

import (
	"context"
	"fmt"

	"github.com/engram-dev/engram/pkg/agent/tool"
	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/engram-dev/engram/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// defaultSearchLimit caps search_memories results when the caller
// omits a limit.
const defaultSearchLimit = 10

// createMemoryTool stores a new memory for the current tenant
type createMemoryTool struct {
	uc *usecase.UseCases
}

func (t *createMemoryTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "create_memory",
		Description: "Create a new memory entry. Use memories to carry decisions, patterns, domain knowledge, bugs and optimizations across coding sessions.",
		Parameters: map[string]*gollem.Parameter{
			"content": {
				Type:        gollem.TypeString,
				Description: "The knowledge to remember",
				Required:    true,
			},
			"summary": {
				Type:        gollem.TypeString,
				Description: "A one-line summary of the content",
			},
			"category": {
				Type:        gollem.TypeString,
				Description: "Memory category: DECISION, PATTERN, ANTIPATTERN, DOMAIN, BUG, OPTIMIZATION or INTEGRATION",
			},
			"importance": {
				Type:        gollem.TypeString,
				Description: "Importance level: CRITICAL, IMPORTANT or MINOR (default: MINOR)",
			},
			"tags": {
				Type:        gollem.TypeArray,
				Description: "Tags for lookup, e.g. [\"auth\", \"decision\"]",
				Items:       &gollem.Parameter{Type: gollem.TypeString},
			},
			"metadata": {
				Type:        gollem.TypeObject,
				Description: "Free-form string key/value annotations",
			},
		},
	}
}

func (t *createMemoryTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	tenantID, err := currentTenant(ctx)
	if err != nil {
		return nil, err
	}

	content, err := requireString(args, "content")
	if err != nil {
		return nil, err
	}

	tool.Update(ctx, "Creating memory...")

	input := usecase.CreateMemoryInput{
		Content:  content,
		Summary:  optionalString(args, "summary"),
		Tags:     extractStringSlice(args, "tags"),
		Metadata: extractStringMap(args, "metadata"),
	}
	if raw := optionalString(args, "category"); raw != "" {
		category, err := types.ParseCategory(raw)
		if err != nil {
			return nil, goerr.Wrap(tool.ErrInvalidArgument, err.Error(), goerr.V("field", "category"))
		}
		input.Category = category
	}
	if raw := optionalString(args, "importance"); raw != "" {
		importance, err := types.ParseImportance(raw)
		if err != nil {
			return nil, goerr.Wrap(tool.ErrInvalidArgument, err.Error(), goerr.V("field", "importance"))
		}
		input.Importance = importance
	}

	created, err := t.uc.Memory.Create(ctx, tenantID, input)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"memoryId": created.ID.String(),
		"version":  created.Version,
	}, nil
}

// getMemoryTool fetches a single memory by ID
type getMemoryTool struct {
	uc *usecase.UseCases
}

func (t *getMemoryTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "get_memory",
		Description: "Retrieve a memory by its ID. Reading a memory this way counts as agent usage and bumps its access statistics.",
		Parameters: map[string]*gollem.Parameter{
			"memoryId": {
				Type:        gollem.TypeString,
				Description: "The ID of the memory to retrieve",
				Required:    true,
			},
		},
	}
}

func (t *getMemoryTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	tenantID, err := currentTenant(ctx)
	if err != nil {
		return nil, err
	}

	memoryID, err := requireString(args, "memoryId")
	if err != nil {
		return nil, err
	}

	tool.Update(ctx, fmt.Sprintf("Fetching memory %s...", memoryID))

	mem, err := t.uc.Memory.Get(ctx, tenantID, model.MemoryID(memoryID))
	if err != nil {
		return nil, err
	}

	return map[string]any{"memory": renderMemory(mem)}, nil
}

// searchMemoriesTool returns ranked memories for a query
type searchMemoriesTool struct {
	uc *usecase.UseCases
}

func (t *searchMemoriesTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "search_memories",
		Description: "Search the current tenant's memories for the given query, most relevant first",
		Parameters: map[string]*gollem.Parameter{
			"query": {
				Type:        gollem.TypeString,
				Description: "Search query text",
				Required:    true,
			},
			"limit": {
				Type:        gollem.TypeInteger,
				Description: "Maximum number of results to return (default: 10)",
			},
		},
	}
}

func (t *searchMemoriesTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	tenantID, err := currentTenant(ctx)
	if err != nil {
		return nil, err
	}

	query, err := requireString(args, "query")
	if err != nil {
		return nil, err
	}

	tool.Update(ctx, fmt.Sprintf("Searching memories: %s", query))

	limit := defaultSearchLimit
	if v, err := extractInt64(args, "limit"); err == nil && v > 0 {
		limit = int(v)
	}

	memories, err := t.uc.Memory.Search(ctx, tenantID, query, limit)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"memories": renderMemories(memories),
		"count":    len(memories),
	}, nil
}

// listMemoriesTool lists the tenant's memories
type listMemoriesTool struct {
	uc *usecase.UseCases
}

func (t *listMemoriesTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "list_memories",
		Description: "List the current tenant's memories in creation order, optionally filtered by category or tags",
		Parameters: map[string]*gollem.Parameter{
			"category": {
				Type:        gollem.TypeString,
				Description: "Only return memories in this category",
			},
			"tags": {
				Type:        gollem.TypeArray,
				Description: "Only return memories carrying every one of these tags",
				Items:       &gollem.Parameter{Type: gollem.TypeString},
			},
		},
	}
}

func (t *listMemoriesTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	tenantID, err := currentTenant(ctx)
	if err != nil {
		return nil, err
	}

	tool.Update(ctx, "Listing memories...")

	var memories []*model.Memory
	switch {
	case len(extractStringSlice(args, "tags")) > 0:
		memories, err = t.uc.Memory.FindByTags(ctx, tenantID, extractStringSlice(args, "tags"))

	case optionalString(args, "category") != "":
		category, parseErr := types.ParseCategory(optionalString(args, "category"))
		if parseErr != nil {
			return nil, goerr.Wrap(tool.ErrInvalidArgument, parseErr.Error(), goerr.V("field", "category"))
		}
		memories, err = t.uc.Memory.ListByCategory(ctx, tenantID, category)

	default:
		memories, err = t.uc.Memory.List(ctx, tenantID)
	}
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"memories": renderMemories(memories),
		"count":    len(memories),
	}, nil
}

// deleteMemoryTool removes a memory and its relationships
type deleteMemoryTool struct {
	uc *usecase.UseCases
}

func (t *deleteMemoryTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "delete_memory",
		Description: "Delete a memory by its ID. Relationships touching the memory are removed with it.",
		Parameters: map[string]*gollem.Parameter{
			"memoryId": {
				Type:        gollem.TypeString,
				Description: "The ID of the memory to delete",
				Required:    true,
			},
		},
	}
}

func (t *deleteMemoryTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	tenantID, err := currentTenant(ctx)
	if err != nil {
		return nil, err
	}

	memoryID, err := requireString(args, "memoryId")
	if err != nil {
		return nil, err
	}

	tool.Update(ctx, fmt.Sprintf("Deleting memory %s...", memoryID))

	if err := t.uc.Memory.Delete(ctx, tenantID, model.MemoryID(memoryID)); err != nil {
		return nil, err
	}

	return map[string]any{"deleted": true}, nil
}

// memoryFeedbackTool records whether an injected memory helped
type memoryFeedbackTool struct {
	uc *usecase.UseCases
}

func (t *memoryFeedbackTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "memory_feedback",
		Description: "Record whether a previously injected memory was helpful. Feedback shapes future ranking.",
		Parameters: map[string]*gollem.Parameter{
			"memoryId": {
				Type:        gollem.TypeString,
				Description: "The ID of the memory the feedback is about",
				Required:    true,
			},
			"helpful": {
				Type:        gollem.TypeBoolean,
				Description: "Whether the memory helped",
				Required:    true,
			},
		},
	}
}

func (t *memoryFeedbackTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	tenantID, err := currentTenant(ctx)
	if err != nil {
		return nil, err
	}

	memoryID, err := requireString(args, "memoryId")
	if err != nil {
		return nil, err
	}
	helpful, ok := args["helpful"].(bool)
	if !ok {
		return nil, goerr.Wrap(tool.ErrInvalidArgument, "helpful is required",
			goerr.V("field", "helpful"))
	}

	if err := t.uc.Memory.Feedback(ctx, tenantID, model.MemoryID(memoryID), helpful); err != nil {
		return nil, err
	}

	return map[string]any{"recorded": true}, nil
}
