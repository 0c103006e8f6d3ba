package tool

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentflow/core"
)

// StateManagerTool gives the model direct access to framework facilities
// through a single dispatching tool: session state, escalation, artifacts,
// memory and conversation history.
type StateManagerTool struct {
	name        string
	description string
}

// NewStateManagerTool constructs the state management tool.
func NewStateManagerTool() *StateManagerTool {
	return &StateManagerTool{
		name: "state_manager",
		description: "Manages session state, loop control, and framework integration. " +
			"Supports operations: get_state, set_state, escalate, save_artifact, " +
			"load_artifact, search_memory, store_memory.",
	}
}

// Name implements Tool.
func (t *StateManagerTool) Name() string { return t.name }

// Description implements Tool.
func (t *StateManagerTool) Description() string { return t.description }

// Parameters implements Tool.
func (t *StateManagerTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type": "string",
				"enum": []string{
					"get_state", "set_state", "escalate",
					"save_artifact", "load_artifact", "list_artifacts",
					"search_memory", "store_memory",
					"get_session_history", "skip_summarization",
				},
				"description": "The state management operation to perform",
			},
			"key":           map[string]any{"type": "string", "description": "State key for get_state/set_state"},
			"value":         map[string]any{"description": "Value for set_state (any type)"},
			"artifact_name": map[string]any{"type": "string", "description": "Artifact name for artifact operations"},
			"data":          map[string]any{"type": "string", "description": "Data for save_artifact"},
			"query":         map[string]any{"type": "string", "description": "Search query for search_memory"},
			"content":       map[string]any{"type": "string", "description": "Content for store_memory"},
			"metadata":      map[string]any{"type": "object", "description": "Metadata for store_memory"},
			"limit":         map[string]any{"type": "integer", "description": "Result limit for search operations", "default": 10},
		},
		"required": []string{"operation"},
	}
}

// Call dispatches on the operation argument.
func (t *StateManagerTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	operation, _ := args["operation"].(string)

	switch operation {
	case "get_state":
		return t.getState(toolCtx, args)
	case "set_state":
		return t.setState(toolCtx, args)
	case "escalate":
		toolCtx.Escalate()
		return map[string]any{"success": true, "message": "Escalation initiated"}, nil
	case "save_artifact":
		return t.saveArtifact(toolCtx, args)
	case "load_artifact":
		return t.loadArtifact(toolCtx, args)
	case "list_artifacts":
		return t.listArtifacts(toolCtx)
	case "search_memory":
		return t.searchMemory(toolCtx, args)
	case "store_memory":
		return t.storeMemory(toolCtx, args)
	case "get_session_history":
		return t.sessionHistory(toolCtx)
	case "skip_summarization":
		toolCtx.SkipSummarization()
		return map[string]any{"success": true, "message": "Summarization will be skipped"}, nil
	case "":
		return nil, fmt.Errorf("operation parameter is required")
	default:
		return nil, fmt.Errorf("unknown operation: %s", operation)
	}
}

func requireString(args map[string]any, key, op string) (string, error) {
	s, ok := args[key].(string)
	if !ok {
		return "", fmt.Errorf("%s parameter is required for %s operation", key, op)
	}

	return s, nil
}

func (t *StateManagerTool) getState(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	key, err := requireString(args, "key", "get_state")
	if err != nil {
		return nil, err
	}

	value, exists := toolCtx.GetState(key)

	return map[string]any{"key": key, "exists": exists, "value": value}, nil
}

func (t *StateManagerTool) setState(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	key, err := requireString(args, "key", "set_state")
	if err != nil {
		return nil, err
	}

	toolCtx.SetState(key, args["value"])

	return map[string]any{"key": key, "value": args["value"], "success": true}, nil
}

func (t *StateManagerTool) saveArtifact(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	name, err := requireString(args, "artifact_name", "save_artifact")
	if err != nil {
		return nil, err
	}
	data, err := requireString(args, "data", "save_artifact")
	if err != nil {
		return nil, err
	}

	version, err := toolCtx.SaveArtifact(name, []byte(data))
	if err != nil {
		return nil, fmt.Errorf("failed to save artifact: %w", err)
	}

	return map[string]any{
		"artifact_name": name,
		"version":       version,
		"size":          len(data),
		"success":       true,
	}, nil
}

func (t *StateManagerTool) loadArtifact(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	name, err := requireString(args, "artifact_name", "load_artifact")
	if err != nil {
		return nil, err
	}

	data, err := toolCtx.LoadArtifact(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}

	return map[string]any{
		"artifact_name": name,
		"data":          string(data),
		"size":          len(data),
		"success":       true,
	}, nil
}

func (t *StateManagerTool) listArtifacts(toolCtx *core.ToolContext) (any, error) {
	names, err := toolCtx.ListArtifacts()
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	return map[string]any{"artifacts": names, "count": len(names), "success": true}, nil
}

func (t *StateManagerTool) searchMemory(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	query, err := requireString(args, "query", "search_memory")
	if err != nil {
		return nil, err
	}

	limit := 10
	if l, ok := args["limit"].(float64); ok {
		limit = int(l)
	}

	results, err := toolCtx.SearchMemory(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search memory: %w", err)
	}

	return map[string]any{
		"query":   query,
		"count":   len(results),
		"results": results,
		"success": true,
	}, nil
}

func (t *StateManagerTool) storeMemory(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	content, err := requireString(args, "content", "store_memory")
	if err != nil {
		return nil, err
	}

	metadata, _ := args["metadata"].(map[string]any)
	if metadata == nil {
		metadata = map[string]any{}
	}

	if err := toolCtx.StoreMemory(content, metadata); err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}

	return map[string]any{"content": content, "metadata": metadata, "success": true}, nil
}

func (t *StateManagerTool) sessionHistory(toolCtx *core.ToolContext) (any, error) {
	history := toolCtx.GetSessionHistory()

	events := make([]map[string]any, len(history))
	for i, ev := range history {
		entry := map[string]any{
			"id":      ev.ID,
			"author":  ev.Author,
			"time":    ev.Time,
			"partial": ev.Partial,
		}
		if ev.Content != nil {
			entry["content_summary"] = summarizeParts(ev.Content.Parts)
		}
		events[i] = entry
	}

	return map[string]any{"events": events, "count": len(events), "success": true}, nil
}

func summarizeParts(parts []core.Part) string {
	summaries := make([]string, 0, len(parts))

	for _, part := range parts {
		switch p := part.(type) {
		case core.TextPart:
			preview := p.Text
			if len(preview) > 100 {
				preview = preview[:100] + "..."
			}
			summaries = append(summaries, "text: "+preview)
		case core.FunctionCallPart:
			summaries = append(summaries, "function_call: "+p.FunctionCall.Name)
		case core.FunctionResponsePart:
			summaries = append(summaries, "function_response: "+p.FunctionResponse.Name)
		default:
			summaries = append(summaries, "other")
		}
	}

	return strings.Join(summaries, ", ")
}
