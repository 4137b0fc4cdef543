package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/engram-dev/engram/pkg/agent/tool"
	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/engram-dev/engram/pkg/tenant"
	"github.com/engram-dev/engram/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// New builds the memory tools for agent dispatch. Every tool reads its
// tenant from the context the dispatcher bound; none accepts a tenant
// argument of its own.
func New(uc *usecase.UseCases) []gollem.Tool {
	return []gollem.Tool{
		&createMemoryTool{uc: uc},
		&getMemoryTool{uc: uc},
		&searchMemoriesTool{uc: uc},
		&listMemoriesTool{uc: uc},
		&deleteMemoryTool{uc: uc},
		&memoryFeedbackTool{uc: uc},
		&linkMemoriesTool{uc: uc},
		&relatedMemoriesTool{uc: uc},
		&interceptPromptTool{uc: uc},
	}
}

// currentTenant returns the tenant the dispatcher bound for this call.
func currentTenant(ctx context.Context) (types.TenantID, error) {
	id, ok := tenant.From(ctx)
	if !ok {
		return "", goerr.New("no tenant bound to this operation")
	}
	return id, nil
}

func requireString(args map[string]any, key string) (string, error) {
	v, _ := args[key].(string)
	if strings.TrimSpace(v) == "" {
		return "", goerr.Wrap(tool.ErrInvalidArgument, fmt.Sprintf("%s is required", key),
			goerr.V("field", key))
	}
	return v, nil
}

func optionalString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func extractInt64(args map[string]any, key string) (int64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%s is required", key)
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%s must be an integer, got %T", key, v)
	}
}

func extractStringSlice(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

func extractStringMap(args map[string]any, key string) map[string]string {
	raw, ok := args[key].(map[string]any)
	if !ok {
		return nil
	}
	result := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			result[k] = s
		}
	}
	return result
}

func renderMemory(m *model.Memory) map[string]any {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"memoryId":       m.ID.String(),
		"content":        m.Content,
		"summary":        m.Summary,
		"category":       m.Category.String(),
		"importance":     m.Importance.String(),
		"tags":           tags,
		"version":        m.Version,
		"accessCount":    m.AccessCount,
		"injectionCount": m.InjectionCount,
		"createdAt":      m.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":      m.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func renderMemories(memories []*model.Memory) []map[string]any {
	items := make([]map[string]any, len(memories))
	for i, m := range memories {
		items[i] = renderMemory(m)
	}
	return items
}
