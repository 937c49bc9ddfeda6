package flow

// Selector chooses a flow implementation based on agent capabilities.
type Selector struct{}

// NewSelector creates a flow selector.
func NewSelector() *Selector { return &Selector{} }

// SelectFlow picks the appropriate flow for the given agent:
//   - SingleAgentFlow for isolated agents without transfers or sub-agents
//   - MultiAgentFlow for agents with delegation capabilities
func (s *Selector) SelectFlow(agent FlowAgent) Flow {
	if !agent.IsTransferEnabled() || len(agent.GetSubAgents()) == 0 {
		return NewSingleAgentFlow(agent)
	}
	return NewMultiAgentFlow(agent)
}
