package core

import (
	"context"
	"fmt"
	"maps"

	"github.com/agentcraft-ai/agentcraft/logging"
)

// ToolHook receives notifications around individual tool executions. The
// runner installs its callback pipeline here so flows can signal tool
// lifecycle points without depending on the runner package.
//
// BeforeTool may veto the execution by returning an error; the error is
// surfaced as the tool result.
type ToolHook interface {
	BeforeTool(toolCtx *ToolContext, tool string, args map[string]any) error
	AfterTool(toolCtx *ToolContext, tool string, result any, err error)
}

// RunContext is the mutable, per-run execution scope passed to an Agent's
// Run method. It aggregates:
//   - the ambient cancellation Context
//   - identifiers (session Key, RunID, Agent info)
//   - the input user Content
//   - emission / resumption coordination channels
//   - the backing SessionStore plus a working Session snapshot
//   - a pending StateDelta buffer and a Branch label for hierarchical flows
//
// State mutations performed via SetState accumulate in StateDelta until
// CommitStateDelta or EmitEvent applies them. Cloning produces an isolated
// delta buffer while keeping references to the underlying store.
type RunContext struct {
	Context       context.Context
	Key           SessionKey
	RunID         string
	Agent         AgentInfo
	UserContent   Content
	MaxModelCalls int
	Emit          chan<- Event
	Resume        <-chan struct{}
	SessionStore  SessionStore
	Limiter       *ModelLimiter
	Session       *Session
	StateDelta    map[string]any
	Branch        string
	Hooks         ToolHook

	*loggerAdapter
}

// NewRunContext constructs a RunContext with an empty state delta.
func NewRunContext(
	ctx context.Context,
	key SessionKey,
	runID string,
	agent AgentInfo,
	userContent Content,
	maxModelCalls int,
	emit chan<- Event,
	resume <-chan struct{},
	sess *Session,
	store SessionStore,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:       ctx,
		Key:           key,
		RunID:         runID,
		Agent:         agent,
		UserContent:   userContent,
		MaxModelCalls: maxModelCalls,
		Emit:          emit,
		Resume:        resume,
		Session:       sess,
		SessionStore:  store,
		Limiter:       NewModelLimiter(maxModelCalls),
		StateDelta:    map[string]any{},
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetState returns a staged (delta) value if present, else the persisted
// session value.
func (rc *RunContext) GetState(k string) (any, bool) {
	if v, ok := rc.StateDelta[k]; ok {
		return v, true
	}
	if rc.Session != nil {
		return rc.Session.GetState(k)
	}
	return nil, false
}

// SetState stages a state mutation in the in-memory delta buffer.
func (rc *RunContext) SetState(k string, v any) { rc.StateDelta[k] = v }

// ApplyStateDelta merges all pairs from d into the staged StateDelta.
func (rc *RunContext) ApplyStateDelta(d map[string]any) {
	maps.Copy(rc.StateDelta, d)
}

// RefreshSession reloads the session snapshot from the SessionStore.
func (rc *RunContext) RefreshSession() error {
	if rc.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}
	s, err := rc.SessionStore.Get(rc.Key)
	if err != nil {
		return err
	}
	rc.Session = s
	return nil
}

// CommitStateDelta persists the accumulated StateDelta then clears the
// buffer. It is a no-op when nothing is staged.
func (rc *RunContext) CommitStateDelta() error {
	if len(rc.StateDelta) == 0 {
		return nil
	}
	if rc.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}
	if err := rc.SessionStore.ApplyDelta(rc.Key, rc.StateDelta); err != nil {
		return err
	}
	rc.StateDelta = map[string]any{}
	return nil
}

// SessionHistory returns all historical events for the session snapshot.
func (rc *RunContext) SessionHistory() []Event {
	if rc.Session == nil {
		return []Event{}
	}
	return rc.Session.Events()
}

// Clone returns a shallow copy with a deep-copied delta buffer. It shares the
// store pointer and is safe for speculative processing.
func (rc *RunContext) Clone() *RunContext {
	c := &RunContext{
		Context:       rc.Context,
		Key:           rc.Key,
		RunID:         rc.RunID,
		Agent:         rc.Agent,
		UserContent:   rc.UserContent,
		MaxModelCalls: rc.MaxModelCalls,
		Emit:          rc.Emit,
		Resume:        rc.Resume,
		SessionStore:  rc.SessionStore,
		Limiter:       rc.Limiter,
		Session:       rc.Session,
		StateDelta:    map[string]any{},
		Branch:        rc.Branch,
		Hooks:         rc.Hooks,
		loggerAdapter: rc.loggerAdapter,
	}
	maps.Copy(c.StateDelta, rc.StateDelta)
	return c
}

// WithBranch clones the context and sets the Branch label.
func (rc *RunContext) WithBranch(b string) *RunContext {
	c := rc.Clone()
	c.Branch = b
	return c
}

// NewChildContext derives a context for a nested execution path. It replaces
// the Emit and Resume channels, resets the pending StateDelta buffer and
// optionally sets a branch label if non-empty. Composite agents use this to
// intercept or isolate child output without mutating the parent's transient
// buffers.
func (rc *RunContext) NewChildContext(emit chan<- Event, resume <-chan struct{}, branch string) *RunContext {
	finalBranch := rc.Branch
	if branch != "" {
		finalBranch = branch
	}
	return &RunContext{
		Context:       rc.Context,
		Key:           rc.Key,
		RunID:         rc.RunID,
		Agent:         rc.Agent,
		UserContent:   rc.UserContent,
		MaxModelCalls: rc.MaxModelCalls,
		Emit:          emit,
		Resume:        resume,
		SessionStore:  rc.SessionStore,
		Limiter:       rc.Limiter,
		Session:       rc.Session,
		StateDelta:    map[string]any{}, // fresh buffer
		Branch:        finalBranch,
		Hooks:         rc.Hooks,
		loggerAdapter: rc.loggerAdapter,
	}
}

// EmitEvent merges the pending StateDelta into ev.Actions, sends it on the
// Emit channel, then resets the buffer. If the context is cancelled before
// emission it returns the cancellation error.
func (rc *RunContext) EmitEvent(ev Event) error {
	if len(rc.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, rc.StateDelta)
	}
	if ev.Branch == "" {
		ev.Branch = rc.Branch
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
	}

	rc.StateDelta = map[string]any{}
	return nil
}

// WaitForResume blocks until the Resume channel signals or the context is
// cancelled. If Resume is nil it returns immediately.
func (rc *RunContext) WaitForResume() error {
	if rc.Resume == nil {
		return nil
	}
	select {
	case <-rc.Resume:
		return nil
	case <-rc.Context.Done():
		return rc.Context.Err()
	}
}
