package tool

import (
	"github.com/agentcraft-ai/agentcraft/core"
)

// exitLoopTool lets an agent inside a loop workflow terminate iteration by
// raising the escalate signal.
type exitLoopTool struct{}

// NewExitLoopTool constructs the exit tool. Give it to an agent running under
// a loop orchestrator so the model can stop iterating once its goal is met.
func NewExitLoopTool() Tool { return &exitLoopTool{} }

func (t *exitLoopTool) Name() string { return "exit_loop" }

func (t *exitLoopTool) Description() string {
	return "Exit the current loop immediately. Call this only when the task is complete and no further iterations are needed."
}

func (t *exitLoopTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *exitLoopTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	tc.Escalate()
	return map[string]any{"exited": true}, nil
}
