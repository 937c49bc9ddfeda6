package flow

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/agentcraft-ai/agentcraft/core"
	"github.com/agentcraft-ai/agentcraft/model"
	"github.com/agentcraft-ai/agentcraft/tool"
)

// BaseFlow implements the request -> model -> (optional tool loop) cycle with
// pluggable pre/post processors. Events are emitted through the RunContext;
// after each non-partial event the flow waits for the runner's resume signal
// so request assembly always sees persisted history.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	executor           FunctionExecutor
}

// NewBaseFlow creates a flow around the given agent with the default parallel
// function executor.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:    agent,
		executor: NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true}),
	}
}

// AddRequestProcessor appends a request processor; registration order defines
// execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor executed after each model
// chunk.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// SetFunctionExecutor overrides the tool execution strategy.
func (f *BaseFlow) SetFunctionExecutor(executor FunctionExecutor) {
	f.executor = executor
}

// Execute drives model turns until a final response, transfer or escalation.
func (f *BaseFlow) Execute(runCtx *core.RunContext) error {
	for {
		last, err := f.runOnce(runCtx)
		if err != nil {
			return err
		}
		if last == nil {
			return nil
		}
		if last.Actions.TransferToAgent != nil && *last.Actions.TransferToAgent != "" {
			target := *last.Actions.TransferToAgent
			runCtx.LogInfo("flow.transfer", "agent", f.agent.GetName(), "target", target)
			return f.agent.TransferToAgent(runCtx, target)
		}
		if last.Actions.Escalate != nil && *last.Actions.Escalate {
			return nil
		}
		// A fresh tool response means the model gets another turn.
		if len(last.GetFunctionResponses()) > 0 {
			continue
		}
		if last.IsFinalResponse() {
			return nil
		}
		if last.IsPartial() {
			runCtx.LogWarn("flow.unexpected_partial_tail", "agent", f.agent.GetName())
			return nil
		}
	}
}

// effectiveTools returns the agent's tool registry, plus the transfer tool
// when delegation applies. Agents with an output schema expose no tools so
// the model's only move is the structured answer.
func (f *BaseFlow) effectiveTools() map[string]tool.Tool {
	if f.agent.GetOutputSchema() != nil {
		return nil
	}
	registry := make(map[string]tool.Tool, len(f.agent.GetTools())+1)
	for name, t := range f.agent.GetTools() {
		registry[name] = t
	}
	if f.agent.IsTransferEnabled() && len(f.agent.GetSubAgents()) > 0 {
		transfer := tool.NewTransferToAgentTool()
		registry[transfer.Name()] = transfer
	}
	return registry
}

// runOnce performs one model turn including any tool executions and returns
// the last emitted event. A nil event signals termination.
func (f *BaseFlow) runOnce(runCtx *core.RunContext) (*core.Event, error) {
	// Refresh the session snapshot so processors see the latest history,
	// including tool responses persisted by the runner.
	if runCtx.SessionStore != nil {
		if err := runCtx.RefreshSession(); err != nil {
			return nil, fmt.Errorf("session refresh failed: %w", err)
		}
	}

	req := &model.Request{Stream: f.agent.IsStreamingEnabled()}

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			return nil, fmt.Errorf("request processor %s failed: %w", processor.Name(), err)
		}
	}

	registry := f.effectiveTools()
	if len(registry) > 0 {
		defs := make([]model.ToolDefinition, 0, len(registry))
		for _, t := range registry {
			defs = append(defs, model.ToolDefinition{
				Type: "function",
				Function: model.FunctionDefinition{
					Name:        t.Name(),
					Description: t.Description(),
					Parameters:  t.Parameters(),
				},
			})
		}
		req.Tools = defs
	}

	if err := runCtx.Limiter.Increment(); err != nil {
		return nil, err
	}

	respCh, errCh := f.agent.GetModel().Generate(runCtx.Context, *req)

	var lastEvent *core.Event

	for respCh != nil || errCh != nil {
		select {
		case <-runCtx.Done():
			return lastEvent, runCtx.Err()
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			return nil, fmt.Errorf("model generation failed: %w", err)
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			for _, processor := range f.responseProcessors {
				if err := processor.ProcessResponse(runCtx, &resp, f.agent); err != nil {
					return nil, fmt.Errorf("response processor %s failed: %w", processor.Name(), err)
				}
			}

			ev := core.NewEvent(runCtx.RunID, f.agent.GetName())
			content := resp.Content
			ev.Content = &content
			partial := resp.Partial
			ev.Partial = &partial

			isFinal := !resp.Partial && len(ev.GetFunctionCalls()) == 0
			if isFinal {
				complete := true
				ev.TurnComplete = &complete

				if err := f.captureOutput(runCtx, &ev); err != nil {
					return nil, err
				}
			}

			if err := runCtx.EmitEvent(ev); err != nil {
				return lastEvent, err
			}
			lastEvent = &ev

			if !ev.IsPartial() {
				if err := runCtx.WaitForResume(); err != nil {
					return lastEvent, err
				}
			}

			if fnCalls := ev.GetFunctionCalls(); len(fnCalls) > 0 {
				f.executor.Execute(runCtx, f.agent, registry, fnCalls, func(respEv core.Event) error {
					if err := runCtx.EmitEvent(respEv); err != nil {
						return err
					}
					lastEvent = &respEv
					return runCtx.WaitForResume()
				})
			}
		}
	}

	return lastEvent, nil
}

// captureOutput stages the agent's final response into session state when an
// output key is configured, validating against the output schema if present.
func (f *BaseFlow) captureOutput(runCtx *core.RunContext, ev *core.Event) error {
	outputKey := f.agent.GetOutputKey()
	if outputKey == "" {
		return nil
	}

	text := ev.Text()
	schema := f.agent.GetOutputSchema()
	if schema == nil {
		runCtx.SetState(outputKey, text)
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewStringLoader(text),
	)
	if err != nil {
		return fmt.Errorf("output validation failed for agent %s: %w", f.agent.GetName(), err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return fmt.Errorf("output of agent %s does not match schema: %v", f.agent.GetName(), details)
	}

	var structured map[string]any
	if err := json.Unmarshal([]byte(text), &structured); err != nil {
		return fmt.Errorf("output of agent %s is not a JSON object: %w", f.agent.GetName(), err)
	}

	ev.Content.Parts = append(ev.Content.Parts, core.DataPart{Data: structured})
	runCtx.SetState(outputKey, structured)
	return nil
}
