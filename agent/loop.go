package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/agentcraft-ai/agentcraft/core"
)

// ErrEscalated is returned internally when a child agent signals escalation.
var ErrEscalated = errors.New("child agent escalated")

// LoopAgent repeatedly executes its child agents in order until a child
// escalates (e.g. via the exit_loop tool), the iteration limit is reached, or
// the context is cancelled. The shared run context carries session state
// across iterations so children can refine earlier results.
type LoopAgent struct {
	BaseAgent
	maxIters    int
	interval    time.Duration
	stopOnError bool
	stopWhen    func(text string) bool
}

// LoopOption customizes LoopAgent behavior.
type LoopOption func(*LoopAgent)

// WithMaxIters caps the number of loop iterations. The loop terminates after
// this many passes even without an escalation.
func WithMaxIters(n int) LoopOption {
	return func(l *LoopAgent) { l.maxIters = n }
}

// WithInterval adds a delay between iterations, useful for polling scenarios.
func WithInterval(d time.Duration) LoopOption {
	return func(l *LoopAgent) { l.interval = d }
}

// WithContinueOnError keeps iterating when a child fails instead of stopping
// at the first error.
func WithContinueOnError() LoopOption {
	return func(l *LoopAgent) { l.stopOnError = false }
}

// WithStopCondition ends the loop once a child's final response text satisfies
// the predicate, as an alternative to the exit_loop tool.
func WithStopCondition(fn func(text string) bool) LoopOption {
	return func(l *LoopAgent) { l.stopWhen = fn }
}

// NewLoopAgent constructs a looping coordinator. Defaults: 100 iterations, no
// interval, stop on first error.
func NewLoopAgent(name string, children ...core.Agent) *LoopAgent {
	la := &LoopAgent{
		BaseAgent:   NewBaseAgent(name),
		maxIters:    100,
		stopOnError: true,
	}
	la.SetDescription(fmt.Sprintf("Executes sub-agents repeatedly: %s", agentNames(children)))
	_ = la.SetSubAgents(children...)
	return la
}

// NewLoopAgentWithOptions constructs a looping coordinator with options
// applied before children are attached.
func NewLoopAgentWithOptions(name string, opts []LoopOption, children ...core.Agent) *LoopAgent {
	la := NewLoopAgent(name, children...)
	for _, o := range opts {
		o(la)
	}
	return la
}

// Run implements core.Agent with iterative execution and escalation
// detection. Escalation terminates the loop without error.
func (l *LoopAgent) Run(runCtx *core.RunContext) error {
	children := l.SubAgents()

	for i := 0; i < l.maxIters; i++ {
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		default:
		}

		runCtx.LogDebug("agent.loop.iteration", "agent", l.Name(), "iteration", i+1)

		for _, child := range children {
			childErr := l.runChildWithEscalationMonitoring(runCtx, child)

			if errors.Is(childErr, ErrEscalated) {
				runCtx.LogInfo("agent.loop.escalated", "agent", l.Name(), "child", child.Name(), "iteration", i+1)
				return nil
			}

			if childErr != nil {
				if l.stopOnError {
					return fmt.Errorf("loop iteration %d failed for agent %s: %w", i+1, child.Name(), childErr)
				}
				runCtx.LogWarn("agent.loop.child_error", "agent", l.Name(), "child", child.Name(), "error", childErr.Error())
			}
		}

		if l.interval > 0 && i < l.maxIters-1 {
			select {
			case <-runCtx.Done():
				return runCtx.Err()
			case <-time.After(l.interval):
			}
		}
	}

	runCtx.LogDebug("agent.loop.complete", "agent", l.Name(), "iterations", l.maxIters)
	return nil
}

// runChildWithEscalationMonitoring executes the child routing its emitted
// events through an intercept channel, inspecting for escalation flags before
// forwarding to the parent context.
func (l *LoopAgent) runChildWithEscalationMonitoring(runCtx *core.RunContext, child core.Agent) error {
	interceptChan := make(chan core.Event, 10)
	resumeChan := make(chan struct{}, 10)
	childCtx := runCtx.NewChildContext(interceptChan, resumeChan, runCtx.Branch)

	done := make(chan error, 1)
	go func() {
		done <- child.Run(childCtx)
		close(done)
	}()

	escalated := false

	forward := func(ev core.Event) error {
		if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
			escalated = true
		}
		if l.stopWhen != nil && !ev.IsPartial() && ev.Text() != "" && l.stopWhen(ev.Text()) {
			escalated = true
		}
		if err := runCtx.EmitEvent(ev); err != nil {
			return err
		}
		// The runner acknowledges non-partial events only; propagate its
		// resume signal back to the child.
		if !ev.IsPartial() {
			if err := runCtx.WaitForResume(); err != nil {
				return err
			}
			select {
			case resumeChan <- struct{}{}:
			case <-runCtx.Done():
				return runCtx.Err()
			}
		}
		return nil
	}

	for {
		select {
		case ev := <-interceptChan:
			if err := forward(ev); err != nil {
				return err
			}

		case err := <-done:
			// Drain events emitted before completion.
			for {
				select {
				case ev := <-interceptChan:
					if fwdErr := forward(ev); fwdErr != nil {
						return fwdErr
					}
					continue
				default:
				}
				break
			}
			if escalated {
				return ErrEscalated
			}
			return err

		case <-runCtx.Done():
			return runCtx.Err()
		}
	}
}
