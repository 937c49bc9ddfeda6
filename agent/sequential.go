package agent

import (
	"fmt"

	"github.com/agentcraft-ai/agentcraft/core"
)

// SequentialAgent executes its child agents in order, passing the shared run
// context (and therefore accumulated session state) from one to the next.
// Execution stops at the first error. Pair it with output keys on the
// children so each step can consume its predecessors' results.
type SequentialAgent struct {
	BaseAgent
}

// NewSequentialAgent creates a sequential coordinator over the given
// children.
func NewSequentialAgent(name string, children ...core.Agent) *SequentialAgent {
	a := &SequentialAgent{BaseAgent: NewBaseAgent(name)}
	a.SetDescription(fmt.Sprintf("Executes sub-agents in sequence: %s", agentNames(children)))
	_ = a.SetSubAgents(children...)
	return a
}

// Run implements core.Agent, executing each child in order.
func (s *SequentialAgent) Run(runCtx *core.RunContext) error {
	for _, child := range s.SubAgents() {
		runCtx.LogDebug("agent.sequential.step", "agent", s.Name(), "child", child.Name())
		if err := child.Run(runCtx); err != nil {
			return fmt.Errorf("sequential execution failed at agent %s: %w", child.Name(), err)
		}
	}
	return nil
}

func agentNames(agents []core.Agent) string {
	out := ""
	for i, a := range agents {
		if i > 0 {
			out += ", "
		}
		out += a.Name()
	}
	return out
}
