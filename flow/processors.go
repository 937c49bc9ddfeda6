package flow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentcraft-ai/agentcraft/core"
	internalutil "github.com/agentcraft-ai/agentcraft/internal/util"
	"github.com/agentcraft-ai/agentcraft/model"
)

// InstructionsProcessor resolves the agent's instructions and renders
// {{.key}} templates against session state.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets the system instructions on the request.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	runCtx.LogDebug("agent.instruction.resolved", "agent", agent.GetName(), "length", len(instructions))

	if runCtx.Session != nil && runCtx.Session.State != nil {
		req.Instructions, err = internalutil.RenderTemplate(instructions, runCtx.Session.State)
		if err != nil {
			return fmt.Errorf("failed to render template: %w", err)
		}
	} else {
		req.Instructions = instructions
	}

	return nil
}

// ContentsProcessor assembles the message list: system instructions followed
// by the trimmed conversation history.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest populates req.Contents from instructions and history.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	contents := []core.Content{{
		Role:  "system",
		Parts: []core.Part{core.TextPart{Text: req.Instructions}},
	}}

	if runCtx.Session != nil {
		events := runCtx.Session.ConversationHistory()
		if max := agent.MaxHistoryMessages(); max > 0 && len(events) > max {
			events = events[len(events)-max:]
		}

		for _, ev := range events {
			if ev.Content != nil && len(ev.Content.Parts) > 0 {
				contents = append(contents, *ev.Content)
			}
		}
	}

	req.Contents = contents
	return nil
}

// TransferToolInjector appends delegation guidance listing the agent's
// sub-agents, so the model knows which targets transfer_to_agent accepts.
type TransferToolInjector struct{}

// NewTransferToolInjector creates a new transfer injector.
func NewTransferToolInjector() *TransferToolInjector { return &TransferToolInjector{} }

// Name returns the processor's identifier.
func (p *TransferToolInjector) Name() string { return "transfer_injector" }

// ProcessRequest appends the sub-agent catalog to the instructions when
// delegation applies. Must run after InstructionsProcessor and before
// ContentsProcessor.
func (p *TransferToolInjector) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	subAgents := agent.GetSubAgents()
	if !agent.IsTransferEnabled() || len(subAgents) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("\n\nYou can delegate to the following agents using the transfer_to_agent tool:\n")
	for _, sub := range subAgents {
		fmt.Fprintf(&b, "- %s: %s\n", sub.Name(), sub.Description())
	}
	b.WriteString("Delegate when another agent is better suited; otherwise answer yourself.")

	req.Instructions += b.String()
	return nil
}

// OutputSchemaProcessor instructs the model to answer with JSON matching the
// agent's output schema.
type OutputSchemaProcessor struct{}

// NewOutputSchemaProcessor creates a new output schema processor.
func NewOutputSchemaProcessor() *OutputSchemaProcessor { return &OutputSchemaProcessor{} }

// Name returns the processor's identifier.
func (p *OutputSchemaProcessor) Name() string { return "output_schema" }

// ProcessRequest appends the schema contract to the instructions. Must run
// after InstructionsProcessor and before ContentsProcessor.
func (p *OutputSchemaProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	schema := agent.GetOutputSchema()
	if schema == nil {
		return nil
	}

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output schema: %w", err)
	}

	req.Instructions += fmt.Sprintf(
		"\n\nRespond ONLY with a JSON object matching this schema, without markdown fences or commentary:\n%s",
		schemaJSON,
	)
	return nil
}
