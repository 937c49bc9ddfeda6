// Package flow provides the execution pipeline for model-backed agents: a
// request -> model -> tool loop with pluggable request/response processors,
// flow selection based on agent capabilities, and parallel tool execution.
package flow

import (
	"github.com/agentcraft-ai/agentcraft/core"
	"github.com/agentcraft-ai/agentcraft/model"
	"github.com/agentcraft-ai/agentcraft/tool"
)

// Flow orchestrates the complete execution pipeline of an agent, from request
// assembly to the final response. Events are emitted through the RunContext.
type Flow interface {
	// Execute runs the flow to completion within the given run scope.
	Execute(runCtx *core.RunContext) error
}

// FlowAgent is the view of an agent that flows operate on. It exposes agent
// capabilities without revealing the concrete implementation.
type FlowAgent interface {
	// GetName returns the agent's display name.
	GetName() string

	// GetModel returns the language model driving the agent.
	GetModel() model.Model

	// ResolveInstructions produces the system prompt for the current run.
	ResolveInstructions(runCtx *core.RunContext) (string, error)

	// GetTools returns the registered tools for function calling.
	GetTools() map[string]tool.Tool

	// GetSubAgents returns the agent's direct children.
	GetSubAgents() []core.Agent

	// IsStreamingEnabled reports whether streaming responses are enabled.
	IsStreamingEnabled() bool

	// IsTransferEnabled reports whether delegation to sub-agents is enabled.
	IsTransferEnabled() bool

	// GetOutputKey returns the session state key for saving the final
	// response, or "" when the response is not captured.
	GetOutputKey() string

	// GetOutputSchema returns the JSON schema the final response must
	// satisfy, or nil for free-form output.
	GetOutputSchema() map[string]any

	// MaxHistoryMessages returns the conversation history window size.
	MaxHistoryMessages() int

	// TransferToAgent hands execution to a named agent in the hierarchy.
	TransferToAgent(runCtx *core.RunContext, agentName string) error
}

// RequestProcessor mutates the model request before generation.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the request before model execution.
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor inspects or mutates each model response chunk before it
// is turned into an event.
type ResponseProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessResponse handles the model response chunk.
	ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error
}
