// Package core defines the shared vocabulary of the agentcraft framework:
// the Agent interface, Session state and event history, the Event stream
// exchanged between agents and the runner, and the per-run execution scopes
// (RunContext for agents, ToolContext for tools). Higher-level packages
// (agent, flow, runner, session) build on these types without depending on
// each other directly.
package core
