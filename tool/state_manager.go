package tool

import (
	"fmt"
	"strings"

	"github.com/agentcraft-ai/agentcraft/core"
)

// StateManagerTool exposes session state and flow control to the model as a
// single multiplexed tool. It is mostly useful for demos and debugging; real
// applications usually register purpose-built tools instead.
type StateManagerTool struct {
	name        string
	description string
}

// NewStateManagerTool creates a state management tool supporting state
// reads/writes, transfer, escalation, history inspection and summarization
// control.
func NewStateManagerTool() *StateManagerTool {
	return &StateManagerTool{
		name: "state_manager",
		description: "Manages session state and agent flow control. " +
			"Supports operations: get_state, set_state, transfer_agent, escalate, " +
			"get_session_history, skip_summarization.",
	}
}

// Name returns the tool identifier.
func (t *StateManagerTool) Name() string { return t.name }

// Description returns the tool description.
func (t *StateManagerTool) Description() string { return t.description }

// Parameters returns the JSON schema for tool parameters.
func (t *StateManagerTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type": "string",
				"enum": []string{
					"get_state", "set_state", "transfer_agent", "escalate",
					"get_session_history", "skip_summarization",
				},
				"description": "The operation to perform",
			},
			"key": map[string]any{
				"type":        "string",
				"description": "State key for get_state/set_state operations",
			},
			"value": map[string]any{
				"description": "Value for set_state operations (any type)",
			},
			"agent_name": map[string]any{
				"type":        "string",
				"description": "Agent name for transfer_agent operation",
			},
		},
		"required": []string{"operation"},
	}
}

// Call dispatches on the operation argument.
func (t *StateManagerTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	operation, ok := args["operation"].(string)
	if !ok {
		return nil, fmt.Errorf("operation parameter is required")
	}

	switch operation {
	case "get_state":
		return t.handleGetState(args, toolCtx)
	case "set_state":
		return t.handleSetState(args, toolCtx)
	case "transfer_agent":
		return t.handleTransferAgent(args, toolCtx)
	case "escalate":
		toolCtx.Escalate()
		return map[string]any{"success": true, "message": "Escalation initiated"}, nil
	case "get_session_history":
		return t.handleGetSessionHistory(toolCtx)
	case "skip_summarization":
		toolCtx.SkipSummarization()
		return map[string]any{"success": true, "message": "Summarization will be skipped"}, nil
	default:
		return nil, fmt.Errorf("unknown operation: %s", operation)
	}
}

func (t *StateManagerTool) handleGetState(args map[string]any, toolCtx *core.ToolContext) (any, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, fmt.Errorf("key parameter is required for get_state operation")
	}

	value, exists := toolCtx.GetState(key)
	return map[string]any{
		"key":    key,
		"exists": exists,
		"value":  value,
	}, nil
}

func (t *StateManagerTool) handleSetState(args map[string]any, toolCtx *core.ToolContext) (any, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, fmt.Errorf("key parameter is required for set_state operation")
	}

	value := args["value"]
	toolCtx.SetState(key, value)

	return map[string]any{
		"key":     key,
		"value":   value,
		"success": true,
	}, nil
}

func (t *StateManagerTool) handleTransferAgent(args map[string]any, toolCtx *core.ToolContext) (any, error) {
	agentName, ok := args["agent_name"].(string)
	if !ok {
		return nil, fmt.Errorf("agent_name parameter is required for transfer_agent operation")
	}

	toolCtx.TransferToAgent(agentName)

	return map[string]any{
		"agent_name": agentName,
		"success":    true,
	}, nil
}

func (t *StateManagerTool) handleGetSessionHistory(toolCtx *core.ToolContext) (any, error) {
	history := toolCtx.SessionHistory()

	events := make([]map[string]any, len(history))
	for i, ev := range history {
		events[i] = map[string]any{
			"id":          ev.ID,
			"author":      ev.Author,
			"timestamp":   ev.Timestamp,
			"has_content": ev.Content != nil,
		}
		if ev.Content != nil && len(ev.Content.Parts) > 0 {
			var summary []string
			for _, part := range ev.Content.Parts {
				switch p := part.(type) {
				case core.TextPart:
					preview := p.Text
					if len(preview) > 100 {
						preview = preview[:100] + "..."
					}
					summary = append(summary, fmt.Sprintf("text: %s", preview))
				case core.FunctionCallPart:
					summary = append(summary, fmt.Sprintf("function_call: %s", p.FunctionCall.Name))
				case core.FunctionResponsePart:
					summary = append(summary, fmt.Sprintf("function_response: %s", p.FunctionResponse.Name))
				default:
					summary = append(summary, "other")
				}
			}
			events[i]["content_summary"] = strings.Join(summary, ", ")
		}
	}

	return map[string]any{
		"events": events,
		"count":  len(events),
	}, nil
}
