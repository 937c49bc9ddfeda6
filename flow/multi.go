package flow

// MultiAgentFlow orchestrates an agent that may perform tool calls and hand
// control to sub-agents. It extends the single-agent processor set with
// delegation guidance.
type MultiAgentFlow struct{ *BaseFlow }

// NewMultiAgentFlow creates a flow with delegation support.
func NewMultiAgentFlow(agent FlowAgent) *MultiAgentFlow {
	baseFlow := NewBaseFlow(agent)

	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewOutputSchemaProcessor())
	baseFlow.AddRequestProcessor(NewTransferToolInjector())
	baseFlow.AddRequestProcessor(NewContentsProcessor())

	return &MultiAgentFlow{BaseFlow: baseFlow}
}
