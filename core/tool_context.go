package core

import (
	"context"
	"fmt"
	"maps"

	"github.com/agentcraft-ai/agentcraft/logging"
)

// ToolContext provides a constrained, auditable surface for tool
// implementations invoked by an agent. It accumulates EventActions (state
// deltas, transfers, escalation signals) without directly mutating the
// underlying session until applied to the function-response event.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string
	agentInfo      AgentInfo
	eventActions   EventActions

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent RunContext and
// unique functionCallID.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		runCtx:         runCtx,
		functionCallID: functionCallID,
		agentInfo:      runCtx.Agent,
		eventActions:   EventActions{},
		loggerAdapter:  newLoggerAdapter(runCtx.Logger()),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// SessionKey returns the session key associated with the tool invocation.
func (tc *ToolContext) SessionKey() SessionKey { return tc.runCtx.Key }

// RunID returns the run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// FunctionCallID returns the function call ID being executed.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the invoking agent's name.
func (tc *ToolContext) AgentName() string { return tc.agentInfo.Name }

// GetState retrieves the state value for the given key, consulting staged
// deltas first, then the persisted session.
func (tc *ToolContext) GetState(k string) (any, bool) {
	return tc.runCtx.GetState(k)
}

// SetState records a state mutation both on the underlying run context (for
// immediate visibility to subsequent tools) and in the local EventActions
// delta attached to the function-response event.
func (tc *ToolContext) SetState(k string, v any) {
	tc.runCtx.SetState(k, v)
	if tc.eventActions.StateDelta == nil {
		tc.eventActions.StateDelta = map[string]any{}
	}
	tc.eventActions.StateDelta[k] = v
}

// Actions returns the event actions accumulated so far.
func (tc *ToolContext) Actions() *EventActions { return &tc.eventActions }

// TransferToAgent signals orchestration to hand off control to another agent.
func (tc *ToolContext) TransferToAgent(name string) {
	tc.eventActions.TransferToAgent = &name
	tc.LogInfo("tool.transfer.request",
		"from_agent", tc.AgentName(),
		"to_agent", name,
		"function_call_id", tc.functionCallID,
	)
}

// Escalate requests escalation, e.g. to terminate a surrounding loop.
func (tc *ToolContext) Escalate() {
	b := true
	tc.eventActions.Escalate = &b
	tc.LogInfo("tool.escalate.request", "agent", tc.AgentName(), "function_call_id", tc.functionCallID)
}

// SkipSummarization requests that post-processing summarization be bypassed
// for the originating event.
func (tc *ToolContext) SkipSummarization() {
	b := true
	tc.eventActions.SkipSummarization = &b
}

// SessionHistory returns the filtered conversation history for context.
func (tc *ToolContext) SessionHistory() []Event {
	if tc.runCtx.Session == nil {
		return nil
	}
	return tc.runCtx.Session.ConversationHistory()
}

// RefreshSession reloads the underlying session from the SessionStore.
func (tc *ToolContext) RefreshSession() error {
	if tc.runCtx.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}
	s, err := tc.runCtx.SessionStore.Get(tc.SessionKey())
	if err != nil {
		return err
	}
	tc.runCtx.Session = s
	return nil
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.runCtx == nil || tc.functionCallID == "" {
		return fmt.Errorf("invalid ToolContext")
	}
	return tc.runCtx.Key.Validate()
}

// InternalRunContext returns the parent run context. Intended for framework
// internals, not tool implementations.
func (tc *ToolContext) InternalRunContext() *RunContext { return tc.runCtx }

// InternalApplyActions merges accumulated EventActions into the provided
// event. Used by flows when finalizing tool invocation events.
func (tc *ToolContext) InternalApplyActions(ev *Event) {
	if len(tc.eventActions.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, tc.eventActions.StateDelta)
	}
	if tc.eventActions.TransferToAgent != nil {
		ev.Actions.TransferToAgent = tc.eventActions.TransferToAgent
	}
	if tc.eventActions.Escalate != nil {
		ev.Actions.Escalate = tc.eventActions.Escalate
	}
	if tc.eventActions.SkipSummarization != nil {
		ev.Actions.SkipSummarization = tc.eventActions.SkipSummarization
	}
}
