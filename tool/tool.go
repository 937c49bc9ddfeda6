// Package tool implements the function calling subsystem that lets agents
// invoke structured capabilities with schema-validated arguments and
// consistent error handling.
package tool

import (
	"fmt"

	"github.com/agentcraft-ai/agentcraft/core"
	"github.com/agentcraft-ai/agentcraft/internal/util"
)

// Tool extends agent capabilities beyond text generation. Registered tools
// are described to the model (name, description, parameter schema); when the
// model emits a function call the framework validates arguments and invokes
// Call with a ToolContext granting access to session state and flow control.
//
// Implementations must be safe for concurrent use; parallel tool execution is
// the default.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case
	// recommended).
	Name() string

	// Description tells the model when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool with parsed arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError reports a parameter that failed schema validation.
type ValidationError = util.ValidationError

// Error codes attached to ToolError for categorization.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeExecutionError  = "EXECUTION_ERROR"
)

// ToolError represents a failure during tool execution. The Code categorizes
// the failure; Details may carry structured diagnostics.
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

// NewToolError creates a ToolError with the given details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
