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

// linkMemoriesTool creates or updates a directed edge between memories
type linkMemoriesTool struct {
	uc *usecase.UseCases
}

func (t *linkMemoriesTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "link_memories",
		Description: "Link one memory to another with a typed, weighted relationship. Linking the same pair again updates the type and strength in place.",
		Parameters: map[string]*gollem.Parameter{
			"fromId": {
				Type:        gollem.TypeString,
				Description: "The ID of the source memory",
				Required:    true,
			},
			"toId": {
				Type:        gollem.TypeString,
				Description: "The ID of the target memory",
				Required:    true,
			},
			"type": {
				Type:        gollem.TypeString,
				Description: "Relation type: RELATED_TO, SUPERSEDES, DERIVED_FROM, CONFLICTS_WITH or SHARED_TAG (default: RELATED_TO)",
			},
			"strength": {
				Type:        gollem.TypeNumber,
				Description: "Relation strength within [0, 1] (default: 1)",
			},
		},
	}
}

func (t *linkMemoriesTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	tenantID, err := currentTenant(ctx)
	if err != nil {
		return nil, err
	}

	fromID, err := requireString(args, "fromId")
	if err != nil {
		return nil, err
	}
	toID, err := requireString(args, "toId")
	if err != nil {
		return nil, err
	}

	relType := types.RelationType(optionalString(args, "type")).Normalize()

	strength := 1.0
	if v, ok := args["strength"].(float64); ok {
		strength = v
	}

	tool.Update(ctx, fmt.Sprintf("Linking %s to %s...", fromID, toID))

	rel, err := t.uc.Relationship.Link(ctx, tenantID,
		model.MemoryID(fromID), model.MemoryID(toID), relType, strength)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"relationshipId": rel.ID.String(),
		"type":           rel.Type.String(),
		"strength":       rel.Strength,
	}, nil
}

// relatedMemoriesTool resolves memories related to a seed memory,
// by shared tags by default
type relatedMemoriesTool struct {
	uc *usecase.UseCases
}

func (t *relatedMemoriesTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "related_memories",
		Description: "Find memories related to the given one, such as those sharing its tags, most relevant first",
		Parameters: map[string]*gollem.Parameter{
			"memoryId": {
				Type:        gollem.TypeString,
				Description: "The ID of the memory to start from",
				Required:    true,
			},
			"depth": {
				Type:        gollem.TypeInteger,
				Description: "Breadth of the lookup; results are capped at five per depth level (default: 1)",
			},
		},
	}
}

func (t *relatedMemoriesTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	tenantID, err := currentTenant(ctx)
	if err != nil {
		return nil, err
	}

	memoryID, err := requireString(args, "memoryId")
	if err != nil {
		return nil, err
	}

	depth := 1
	if v, err := extractInt64(args, "depth"); err == nil && v > 0 {
		depth = int(v)
	}

	tool.Update(ctx, fmt.Sprintf("Finding memories related to %s...", memoryID))

	memories, err := t.uc.Relationship.FindRelated(ctx, tenantID, model.MemoryID(memoryID), depth)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"memories": renderMemories(memories),
		"count":    len(memories),
	}, nil
}

// interceptPromptTool enhances an agent prompt with relevant memories
type interceptPromptTool struct {
	uc *usecase.UseCases
}

func (t *interceptPromptTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "intercept_prompt",
		Description: "Enhance an agent prompt by weaving in the tenant's relevant memories before it reaches the model",
		Parameters: map[string]*gollem.Parameter{
			"prompt": {
				Type:        gollem.TypeString,
				Description: "The prompt to enhance",
				Required:    true,
			},
		},
	}
}

func (t *interceptPromptTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	tenantID, err := currentTenant(ctx)
	if err != nil {
		return nil, err
	}

	rawPrompt, err := requireString(args, "prompt")
	if err != nil {
		return nil, err
	}

	tool.Update(ctx, "Enhancing prompt with relevant memories...")

	enhanced, err := t.uc.Intercept(ctx, tenantID, rawPrompt)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to enhance prompt")
	}

	injected := make([]string, len(enhanced.InjectedIDs))
	for i, id := range enhanced.InjectedIDs {
		injected[i] = id.String()
	}

	return map[string]any{
		"prompt":        enhanced.Prompt,
		"injectedIds":   injected,
		"injectedCount": len(injected),
	}, nil
}
