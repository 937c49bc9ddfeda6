package flow

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/agentcraft-ai/agentcraft/core"
	"github.com/agentcraft-ai/agentcraft/tool"
)

// FunctionExecutor executes a batch of tool calls, possibly in parallel, and
// emits one function response event per call through the emit callback.
// Implementations must:
//   - Respect runCtx.Context cancellation
//   - Never panic (recover internally and report the failure as a tool error)
//   - Apply ToolContext accumulated actions to emitted events
//   - Invoke runCtx.Hooks around each execution when set
//
// The emit callback is responsible for persistence synchronization.
type FunctionExecutor interface {
	Execute(runCtx *core.RunContext, agent FlowAgent, toolRegistry map[string]tool.Tool, fnCalls []core.FunctionCall, emit func(core.Event) error)
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // 0 or <1 means no explicit limit
	PreserveOrder  bool // buffer results and emit in original call order
	LogStartEvents bool // log a start line per function
}

// parallelFunctionExecutor is the default implementation.
type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs an executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	runCtx *core.RunContext,
	agent FlowAgent,
	toolRegistry map[string]tool.Tool,
	fnCalls []core.FunctionCall,
	emit func(core.Event) error,
) {
	n := len(fnCalls)
	if n == 0 {
		return
	}

	// Fast path: single call, execute inline.
	if n == 1 {
		ev := e.run(runCtx, agent, toolRegistry, fnCalls[0])
		if err := emit(ev); err != nil {
			runCtx.LogError("agent.function.emit.error", "function", fnCalls[0].Name, "error", err.Error())
		}
		return
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	results := make([]core.Event, n) // used only if PreserveOrder
	var mu sync.Mutex                // protects unordered emit
	var wg sync.WaitGroup

	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range fnCalls {
		if runCtx.Context.Err() != nil { // pre-check cancellation
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			if runCtx.Context.Err() != nil {
				return
			}

			ev := e.run(runCtx, agent, toolRegistry, fc)

			if e.cfg.PreserveOrder {
				results[idx] = ev
			} else {
				mu.Lock()
				err := emit(ev)
				mu.Unlock()
				if err != nil {
					runCtx.LogError("agent.function.emit.error", "function", fc.Name, "error", err.Error())
				}
			}
		}(i, fnCalls[i])
	}

	wg.Wait()

	if e.cfg.PreserveOrder {
		for i := 0; i < n; i++ {
			if results[i].ID == "" {
				continue
			}
			if err := emit(results[i]); err != nil {
				runCtx.LogError("agent.function.emit.error", "function", fnCalls[i].Name, "error", err.Error())
			}
		}
	}

	runCtx.LogDebug(
		"agent.functions.batch.complete",
		"agent", agent.GetName(),
		"count", n,
		"parallelism", maxPar,
		"preserve_order", e.cfg.PreserveOrder,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
}

// run executes a single tool call with hook notification and panic recovery,
// returning the function response event with ToolContext actions applied.
func (e *parallelFunctionExecutor) run(
	runCtx *core.RunContext,
	agent FlowAgent,
	toolRegistry map[string]tool.Tool,
	fc core.FunctionCall,
) core.Event {
	toolCtx := core.NewToolContext(runCtx, fc.ID)
	if e.cfg.LogStartEvents {
		runCtx.LogInfo(
			"agent.function.start",
			"agent", agent.GetName(),
			"function", fc.Name,
			"function_call_id", fc.ID,
		)
	}

	args, argErr := parseArguments(fc.Arguments)

	start := time.Now()
	var (
		result any
		err    error
	)
	switch {
	case argErr != nil:
		err = argErr
	default:
		if runCtx.Hooks != nil {
			if hookErr := runCtx.Hooks.BeforeTool(toolCtx, fc.Name, args); hookErr != nil {
				err = hookErr
				break
			}
		}
		func() { // panic safety
			defer func() {
				if r := recover(); r != nil {
					err = panicError(r)
					runCtx.LogError("agent.function.panic", "agent", agent.GetName(), "function", fc.Name, "recover", r)
				}
			}()
			result, err = executeTool(toolRegistry, toolCtx, fc.Name, args)
		}()
		if runCtx.Hooks != nil {
			runCtx.Hooks.AfterTool(toolCtx, fc.Name, result, err)
		}
	}

	runCtx.LogInfo(
		"agent.function.executed",
		"agent", agent.GetName(),
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	respEv := core.NewFunctionResponseEvent(runCtx.RunID, agent.GetName(), fc.ID, fc.Name, result, err)
	toolCtx.InternalApplyActions(&respEv)
	return respEv
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

func parseArguments(args string) (map[string]any, error) {
	if args == "" {
		return map[string]any{}, nil
	}
	var argMap map[string]any
	if err := json.Unmarshal([]byte(args), &argMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	return argMap, nil
}

// executeTool centralizes tool lookup and execution against the registry.
func executeTool(toolRegistry map[string]tool.Tool, toolCtx *core.ToolContext, toolName string, args map[string]any) (any, error) {
	impl, ok := toolRegistry[toolName]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}
	return impl.Call(toolCtx, args)
}
