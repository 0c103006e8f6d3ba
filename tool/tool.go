// Package tool defines the function-calling surface agents expose to models:
// named capabilities with a JSON-schema argument contract, validated input and
// a uniform error shape.
package tool

import (
	"fmt"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/internal/util"
)

// Tool is a capability an agent can offer to its model. Implementations must
// be safe for concurrent use; a single tool instance may serve parallel
// invocations.
type Tool interface {
	// Name is the identifier the model uses in function calls (snake_case).
	Name() string

	// Description tells the model when and how to use the tool.
	Description() string

	// Parameters returns the JSON schema the arguments are validated against.
	Parameters() map[string]any

	// Call executes the tool. The ToolContext gives access to session state,
	// artifacts, memory and escalation signalling.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError is re-exported so callers can match argument failures
// without importing internal/util.
type ValidationError = util.ValidationError

// ToolError is the uniform failure shape for tool execution. Code categorizes
// the failure (VALIDATION_ERROR, EXECUTION_ERROR, or a tool-specific code).
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}

	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError builds a ToolError with the given tool name, message and code.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
