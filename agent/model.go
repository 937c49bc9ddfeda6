package agent

import (
	"fmt"

	"github.com/agentcraft-ai/agentcraft/core"
	"github.com/agentcraft-ai/agentcraft/flow"
	"github.com/agentcraft-ai/agentcraft/model"
	"github.com/agentcraft-ai/agentcraft/tool"
)

// ModelAgentOptions configures a ModelAgent. Use functional options with
// NewModelAgent to override defaults.
type ModelAgentOptions struct {
	// Instruction is the system prompt; {{.key}} references are rendered
	// against session state.
	Instruction Instruction
	// EnableStreaming requests partial response chunks from the model.
	EnableStreaming bool
	// OutputKey names the session state key receiving the final response.
	OutputKey string
	// OutputSchema is a JSON schema the final response must satisfy. When
	// set the parsed object (not raw text) is stored under OutputKey and
	// tools are disabled for the agent.
	OutputSchema map[string]any
	// MaxHistoryMessages caps the conversation window; 0 means unlimited.
	MaxHistoryMessages int
	// AllowTransfer enables delegation to sub-agents.
	AllowTransfer bool
	// Tools seeds the tool registry.
	Tools []tool.Tool
}

// ModelAgent is a language-model-backed agent supporting conversation,
// function calling, streaming, structured outputs and delegation to
// sub-agents. It embeds BaseAgent for hierarchy management.
type ModelAgent struct {
	BaseAgent
	llm                model.Model
	instruction        Instruction
	tools              map[string]tool.Tool
	enableStreaming    bool
	outputKey          string
	outputSchema       map[string]any
	maxHistoryMessages int
	allowTransfer      bool
}

// NewModelAgent creates a model-backed agent. Defaults: streaming on, a
// 20-message history window, transfer enabled, no output capture.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		EnableStreaming:    true,
		MaxHistoryMessages: 20,
		AllowTransfer:      true,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &ModelAgent{
		BaseAgent:          NewBaseAgent(name),
		llm:                llm,
		instruction:        opts.Instruction,
		enableStreaming:    opts.EnableStreaming,
		outputKey:          opts.OutputKey,
		outputSchema:       opts.OutputSchema,
		maxHistoryMessages: opts.MaxHistoryMessages,
		allowTransfer:      opts.AllowTransfer,
		tools:              make(map[string]tool.Tool, len(opts.Tools)),
	}
	for _, t := range opts.Tools {
		a.tools[t.Name()] = t
	}
	return a
}

// RegisterTool adds a tool to the agent's capability set.
func (a *ModelAgent) RegisterTool(t tool.Tool) {
	a.tools[t.Name()] = t
}

// RegisterTools adds multiple tools to the agent's capability set.
func (a *ModelAgent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// UnregisterTool removes a tool; reports whether it was registered.
func (a *ModelAgent) UnregisterTool(name string) bool {
	if _, exists := a.tools[name]; exists {
		delete(a.tools, name)
		return true
	}
	return false
}

// HasTool reports whether a tool is registered with the agent.
func (a *ModelAgent) HasTool(name string) bool {
	_, exists := a.tools[name]
	return exists
}

// GetName implements flow.FlowAgent.
func (a *ModelAgent) GetName() string { return a.Name() }

// GetModel implements flow.FlowAgent.
func (a *ModelAgent) GetModel() model.Model { return a.llm }

// GetTools returns a copy of the registered tool set.
func (a *ModelAgent) GetTools() map[string]tool.Tool {
	tools := make(map[string]tool.Tool, len(a.tools))
	for name, t := range a.tools {
		tools[name] = t
	}
	return tools
}

// GetSubAgents implements flow.FlowAgent.
func (a *ModelAgent) GetSubAgents() []core.Agent { return a.SubAgents() }

// IsStreamingEnabled implements flow.FlowAgent.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// IsTransferEnabled implements flow.FlowAgent.
func (a *ModelAgent) IsTransferEnabled() bool { return a.allowTransfer }

// GetOutputKey implements flow.FlowAgent.
func (a *ModelAgent) GetOutputKey() string { return a.outputKey }

// GetOutputSchema implements flow.FlowAgent.
func (a *ModelAgent) GetOutputSchema() map[string]any { return a.outputSchema }

// MaxHistoryMessages implements flow.FlowAgent.
func (a *ModelAgent) MaxHistoryMessages() int { return a.maxHistoryMessages }

// ResolveInstructions produces the system prompt by resolving the static or
// dynamic instruction source.
func (a *ModelAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	return a.instruction.Resolve(runCtx)
}

// TransferToAgent delegates execution to a named agent. The search starts at
// the root of the hierarchy so transfers can reach siblings and ancestors,
// not only descendants.
func (a *ModelAgent) TransferToAgent(runCtx *core.RunContext, agentName string) error {
	var root core.Agent = &agentWrapper{&a.BaseAgent}
	for root.Parent() != nil {
		root = root.Parent()
	}

	target := root.FindAgent(agentName)
	if target == nil {
		return fmt.Errorf("agent '%s' not found in hierarchy", agentName)
	}

	return target.Run(runCtx)
}

// Run implements core.Agent. It selects the execution flow matching the
// agent's capabilities and drives it to completion, emitting events through
// the run context.
func (a *ModelAgent) Run(runCtx *core.RunContext) error {
	runCtx.LogDebug("agent.run.start", "agent", a.Name(), "run", runCtx.RunID)

	fl := flow.NewSelector().SelectFlow(a)

	runCtx.LogDebug("agent.flow.selected", "agent", a.Name(), "flow", fmt.Sprintf("%T", fl))

	if err := fl.Execute(runCtx); err != nil {
		runCtx.LogError("agent.flow.execute.error", "agent", a.Name(), "error", err.Error())
		return fmt.Errorf("flow execution failed: %w", err)
	}

	runCtx.LogDebug("agent.flow.execute.complete", "agent", a.Name())
	return nil
}
