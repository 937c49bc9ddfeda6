package flow

// SingleAgentFlow is the execution flow for a standalone agent with no
// sub-agent delegation. It wires the default processors for instruction
// resolution, structured output and content assembly.
type SingleAgentFlow struct{ *BaseFlow }

// NewSingleAgentFlow creates a basic single-agent flow.
func NewSingleAgentFlow(agent FlowAgent) *SingleAgentFlow {
	baseFlow := NewBaseFlow(agent)

	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewOutputSchemaProcessor())
	baseFlow.AddRequestProcessor(NewContentsProcessor())

	return &SingleAgentFlow{BaseFlow: baseFlow}
}
