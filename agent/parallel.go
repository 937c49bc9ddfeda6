package agent

import (
	"fmt"
	"sync"

	"github.com/agentcraft-ai/agentcraft/core"
)

// ParallelAgent executes its child agents concurrently. Each child receives
// a cloned run context with a hierarchical branch label so emitted events and
// staged state deltas stay attributable; all children still read and write
// the same underlying session.
type ParallelAgent struct {
	BaseAgent
}

// NewParallelAgent creates a parallel coordinator over the given children.
func NewParallelAgent(name string, children ...core.Agent) *ParallelAgent {
	a := &ParallelAgent{BaseAgent: NewBaseAgent(name)}
	a.SetDescription(fmt.Sprintf("Executes sub-agents concurrently: %s", agentNames(children)))
	_ = a.SetSubAgents(children...)
	return a
}

// branchContext clones the parent context assigning a branch path of the form
// "Parent.Child" (nested under any existing branch).
func (p *ParallelAgent) branchContext(runCtx *core.RunContext, child core.Agent) *core.RunContext {
	suffix := fmt.Sprintf("%s.%s", p.Name(), child.Name())
	return runCtx.WithBranch(buildBranchPath(runCtx.Branch, suffix))
}

// Run implements core.Agent, launching all children concurrently. All
// children run to completion; the first error encountered is returned.
func (p *ParallelAgent) Run(runCtx *core.RunContext) error {
	children := p.SubAgents()
	var wg sync.WaitGroup
	errCh := make(chan error, len(children))

	for _, child := range children {
		wg.Add(1)
		go func(c core.Agent) {
			defer wg.Done()

			branchCtx := p.branchContext(runCtx, c)
			if err := c.Run(branchCtx); err != nil {
				errCh <- fmt.Errorf("parallel execution failed for agent %s: %w", c.Name(), err)
			}
		}(child)
	}

	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return err
	}
	return nil
}
