package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentcraft-ai/agentcraft/core"
	"github.com/agentcraft-ai/agentcraft/logging"
)

// CallbackType identifies a lifecycle point callbacks can attach to.
type CallbackType string

const (
	// BeforeAgent fires before the root agent starts processing a run.
	BeforeAgent CallbackType = "before_agent"
	// AfterAgent fires after the root agent finishes, successfully or not.
	AfterAgent CallbackType = "after_agent"
	// BeforeTool fires before each tool execution. Returning an error vetoes
	// the call; the error becomes the tool result.
	BeforeTool CallbackType = "before_tool"
	// AfterTool fires after each tool execution with its result or error.
	AfterTool CallbackType = "after_tool"
	// OnEvent fires for every event flowing out of the run.
	OnEvent CallbackType = "on_event"
	// OnStateChange fires when a persisted event carried a state delta.
	OnStateChange CallbackType = "on_state_change"
)

// CallbackContext carries the data relevant to a lifecycle point. Fields are
// populated according to Type; unrelated fields are zero.
type CallbackContext struct {
	Type       CallbackType
	RunID      string
	SessionKey core.SessionKey
	AgentName  string

	// Tool lifecycle fields.
	ToolName   string
	ToolArgs   map[string]any
	ToolResult any
	ToolError  error

	// Event lifecycle fields.
	Event      *core.Event
	StateDelta map[string]any

	// Run completion field, set for AfterAgent.
	RunError error
}

// Callback is a function invoked at a registered lifecycle point. For
// BeforeTool a non-nil error vetoes the tool call; for all other types errors
// are logged and do not interrupt the run.
type Callback func(ctx context.Context, cc *CallbackContext) error

// CallbackManager holds callbacks registered per lifecycle point and
// dispatches them in registration order. It is safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
	logger    logging.Logger
}

// NewCallbackManager creates an empty manager. A nil logger falls back to the
// no-op logger.
func NewCallbackManager(logger logging.Logger) *CallbackManager {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
		logger:    logger,
	}
}

// Register attaches a callback to a lifecycle point.
func (m *CallbackManager) Register(t CallbackType, cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[t] = append(m.callbacks[t], cb)
}

// Count returns the number of callbacks registered for a lifecycle point.
func (m *CallbackManager) Count(t CallbackType) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.callbacks[t])
}

// invoke dispatches all callbacks for cc.Type. For BeforeTool the first error
// short-circuits and is returned; otherwise errors are logged and dispatch
// continues.
func (m *CallbackManager) invoke(ctx context.Context, cc *CallbackContext) error {
	m.mu.RLock()
	cbs := m.callbacks[cc.Type]
	m.mu.RUnlock()

	for _, cb := range cbs {
		if err := cb(ctx, cc); err != nil {
			if cc.Type == BeforeTool {
				return fmt.Errorf("tool call vetoed by callback: %w", err)
			}
			m.logger.Warn("callback.error", "type", string(cc.Type), "error", err.Error())
		}
	}
	return nil
}

// toolHook adapts the callback manager to core.ToolHook so flows can notify
// tool lifecycle points without importing this package.
type toolHook struct {
	manager *CallbackManager
}

var _ core.ToolHook = (*toolHook)(nil)

func (h *toolHook) BeforeTool(toolCtx *core.ToolContext, tool string, args map[string]any) error {
	return h.manager.invoke(toolCtx.Context(), &CallbackContext{
		Type:       BeforeTool,
		RunID:      toolCtx.RunID(),
		SessionKey: toolCtx.SessionKey(),
		AgentName:  toolCtx.AgentName(),
		ToolName:   tool,
		ToolArgs:   args,
	})
}

func (h *toolHook) AfterTool(toolCtx *core.ToolContext, tool string, result any, err error) {
	_ = h.manager.invoke(toolCtx.Context(), &CallbackContext{
		Type:       AfterTool,
		RunID:      toolCtx.RunID(),
		SessionKey: toolCtx.SessionKey(),
		AgentName:  toolCtx.AgentName(),
		ToolName:   tool,
		ToolResult: result,
		ToolError:  err,
	})
}
