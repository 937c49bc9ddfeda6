// Package agentcraft provides a high-level façade over the runner and the
// session services for applications hosting several agents. Most programs
// interact with this package by:
//  1. Creating an AgentCraft via New() (optionally overriding the default
//     in-memory session store and logger)
//  2. Registering one or more agents (model, sequential, parallel, loop,
//     custom)
//  3. Invoking a registered agent asynchronously (Invoke) or synchronously
//     (InvokeSync)
//
// Single-agent programs can use the runner package directly; the façade adds
// agent registration by name and shared service wiring.
package agentcraft

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentcraft-ai/agentcraft/core"
	"github.com/agentcraft-ai/agentcraft/logging"
	"github.com/agentcraft-ai/agentcraft/runner"
	"github.com/agentcraft-ai/agentcraft/session"
)

// Options configures the AgentCraft instance.
type Options struct {
	// AppName scopes all sessions created through this instance.
	AppName string

	// SessionStore persists sessions; defaults to the in-memory store.
	SessionStore core.SessionStore

	// Logger used by runners and run contexts; defaults to NoOpLogger.
	Logger logging.Logger

	// MaxModelCalls caps model invocations per run, 0 for unlimited.
	MaxModelCalls int

	// Callbacks receives lifecycle notifications for every run.
	Callbacks *runner.CallbackManager
}

// AgentCraft aggregates registered agents and the shared services they run
// against. It is safe for concurrent use.
type AgentCraft struct {
	opts    Options
	mu      sync.RWMutex
	agents  map[string]core.Agent
	runners map[string]*runner.Runner
}

// New creates an AgentCraft instance with optional overrides. Unset services
// fall back to in-memory defaults safe for local development.
func New(optFns ...func(o *Options)) *AgentCraft {
	opts := Options{
		AppName:      "agentcraft",
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &AgentCraft{
		opts:    opts,
		agents:  make(map[string]core.Agent),
		runners: make(map[string]*runner.Runner),
	}
}

// RegisterAgent adds an agent, addressable by its name in Invoke calls.
// Registering a second agent with the same name replaces the first.
func (ac *AgentCraft) RegisterAgent(a core.Agent) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.agents[a.Name()] = a
	delete(ac.runners, a.Name())
}

// Agent returns the registered agent with the given name, or nil.
func (ac *AgentCraft) Agent(name string) core.Agent {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.agents[name]
}

func (ac *AgentCraft) runnerFor(agentName string) (*runner.Runner, error) {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if r, ok := ac.runners[agentName]; ok {
		return r, nil
	}
	a, ok := ac.agents[agentName]
	if !ok {
		return nil, fmt.Errorf("agent %q not registered", agentName)
	}

	opts := []runner.Option{
		runner.WithSessionStore(ac.opts.SessionStore),
		runner.WithLogger(ac.opts.Logger),
		runner.WithMaxModelCalls(ac.opts.MaxModelCalls),
	}
	if ac.opts.Callbacks != nil {
		opts = append(opts, runner.WithCallbacks(ac.opts.Callbacks))
	}

	r, err := runner.NewRunner(ac.opts.AppName, a, opts...)
	if err != nil {
		return nil, err
	}
	ac.runners[agentName] = r
	return r, nil
}

// Invoke starts an asynchronous run of the named agent, returning the run ID
// plus event and error channels.
func (ac *AgentCraft) Invoke(
	ctx context.Context,
	userID, sessionID, agentName string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	r, err := ac.runnerFor(agentName)
	if err != nil {
		return "", nil, nil, err
	}
	return r.Run(ctx, userID, sessionID, userContent)
}

// InvokeSync runs the named agent to completion, returning the final response
// text and all emitted events.
func (ac *AgentCraft) InvokeSync(
	ctx context.Context,
	userID, sessionID, agentName string,
	userContent core.Content,
) (string, []core.Event, error) {
	r, err := ac.runnerFor(agentName)
	if err != nil {
		return "", nil, err
	}
	return r.RunSync(ctx, userID, sessionID, userContent)
}
