package core

// Agent is the primary processing unit of the framework. An agent receives a
// RunContext, does its work (usually one or more model turns, tool calls, or
// delegation to sub-agents), and emits events through the context.
//
// Implementations must respect context cancellation and emit events only via
// the provided RunContext so the runner can persist state and history.
type Agent interface {
	// Name returns the unique, human-readable identifier for the agent.
	Name() string

	// Description returns a short summary of the agent's purpose. It is
	// surfaced to parent agents when deciding where to delegate.
	Description() string

	// Run executes the agent within the given run scope.
	Run(runCtx *RunContext) error

	// SetSubAgents replaces the agent's children, establishing this agent
	// as their parent.
	SetSubAgents(children ...Agent) error

	// SubAgents returns the agent's direct children.
	SubAgents() []Agent

	// Parent returns the parent agent, or nil for a root agent.
	Parent() Agent

	// FindAgent searches the subtree rooted at this agent (inclusive) for
	// an agent with the given name.
	FindAgent(name string) Agent
}

// AgentInfo carries identifying details about an agent used in run contexts
// and events. Name is the external identifier; Type categorizes the
// implementation (e.g. "model", "sequential", "parallel", "loop").
type AgentInfo struct{ Name, Type string }
