// Package runner drives agent executions end to end: it resolves the
// session, spawns the root agent, streams events to the caller, persists
// completed events and state deltas, and dispatches lifecycle callbacks.
package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentcraft-ai/agentcraft/core"
	"github.com/agentcraft-ai/agentcraft/logging"
	"github.com/agentcraft-ai/agentcraft/session"
)

const (
	defaultBufferSize    = 64
	defaultMaxModelCalls = 25
)

// Runner binds a root agent to an application name and a session store. Each
// Run resolves (or creates) the session for the given user/session IDs,
// executes the agent and returns live event and error channels.
//
// The runner acknowledges each non-partial event back to the producing agent
// only after persisting it, so agents observe a consistent session snapshot
// when they refresh mid-run.
type Runner struct {
	agent         core.Agent
	appName       string
	store         core.SessionStore
	logger        logging.Logger
	callbacks     *CallbackManager
	maxModelCalls int
	bufferSize    int

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// Option customizes a Runner.
type Option func(*Runner)

// WithSessionStore replaces the default in-memory store.
func WithSessionStore(store core.SessionStore) Option {
	return func(r *Runner) { r.store = store }
}

// WithLogger sets the logger used by the runner and run contexts.
func WithLogger(logger logging.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithCallbacks installs a callback manager for lifecycle notifications.
func WithCallbacks(m *CallbackManager) Option {
	return func(r *Runner) { r.callbacks = m }
}

// WithMaxModelCalls caps model invocations per run. Zero means unlimited.
func WithMaxModelCalls(n int) Option {
	return func(r *Runner) { r.maxModelCalls = n }
}

// WithBufferSize sets the event channel buffer size.
func WithBufferSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.bufferSize = n
		}
	}
}

// NewRunner constructs a Runner for the given application and root agent.
// Defaults: in-memory session store, no-op logger, 25 model calls per run.
func NewRunner(appName string, agent core.Agent, opts ...Option) (*Runner, error) {
	if appName == "" {
		return nil, fmt.Errorf("app name is required")
	}
	if agent == nil {
		return nil, fmt.Errorf("agent is required")
	}
	r := &Runner{
		agent:         agent,
		appName:       appName,
		logger:        logging.NoOpLogger{},
		maxModelCalls: defaultMaxModelCalls,
		bufferSize:    defaultBufferSize,
		active:        make(map[string]context.CancelFunc),
	}
	for _, o := range opts {
		o(r)
	}
	if r.store == nil {
		r.store = session.NewInMemoryStore()
	}
	return r, nil
}

// AppName returns the application name sessions are scoped to.
func (r *Runner) AppName() string { return r.appName }

// SessionStore returns the store backing the runner.
func (r *Runner) SessionStore() core.SessionStore { return r.store }

// Cancel aborts the run with the given ID by cancelling its context. It
// reports whether the run was active. The run's error channel yields
// context.Canceled once the agent unwinds.
func (r *Runner) Cancel(runID string) bool {
	r.mu.Lock()
	cancel, ok := r.active[runID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// finishRun releases the cancel func registered for the run.
func (r *Runner) finishRun(runID string) {
	r.mu.Lock()
	cancel, ok := r.active[runID]
	delete(r.active, runID)
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

// Callbacks returns the callback manager, creating one lazily so callers can
// register callbacks without configuring an option.
func (r *Runner) Callbacks() *CallbackManager {
	if r.callbacks == nil {
		r.callbacks = NewCallbackManager(r.logger)
	}
	return r.callbacks
}

// Run executes the root agent for the given user and session, feeding it the
// provided user content. It returns the run ID, a channel of events as the
// agent produces them and an error channel that yields at most one error
// after the event channel closes.
func (r *Runner) Run(ctx context.Context, userID, sessionID string, content core.Content) (string, <-chan core.Event, <-chan error, error) {
	key := core.SessionKey{AppName: r.appName, UserID: userID, SessionID: sessionID}
	if err := key.Validate(); err != nil {
		return "", nil, nil, err
	}

	sess, err := r.store.GetOrCreate(key)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to resolve session: %w", err)
	}

	runID := core.NewID()

	userEvent := core.NewUserContentEvent(runID, &content)
	if err := r.store.AppendEvent(key, userEvent); err != nil {
		return "", nil, nil, fmt.Errorf("failed to record user event: %w", err)
	}
	sess.AddEvent(userEvent)

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.active[runID] = cancel
	r.mu.Unlock()

	emit := make(chan core.Event, r.bufferSize)
	resume := make(chan struct{}, 1)
	out := make(chan core.Event, r.bufferSize)
	errCh := make(chan error, 1)

	runCtx := core.NewRunContext(
		ctx, key, runID,
		core.AgentInfo{Name: r.agent.Name(), Type: "agent"},
		content, r.maxModelCalls,
		emit, resume,
		sess, r.store, r.logger,
	)
	if r.callbacks != nil {
		runCtx.Hooks = &toolHook{manager: r.callbacks}
	}

	r.dispatch(ctx, &CallbackContext{
		Type:       BeforeAgent,
		RunID:      runID,
		SessionKey: key,
		AgentName:  r.agent.Name(),
	})

	agentDone := make(chan error, 1)
	go func() {
		defer close(emit)
		agentDone <- r.agent.Run(runCtx)
	}()

	go r.processEvents(ctx, key, runID, emit, resume, out, errCh, agentDone)

	r.logger.Info("runner.run.start",
		"run_id", runID,
		"session", key.String(),
		"agent", r.agent.Name(),
	)
	return runID, out, errCh, nil
}

// processEvents forwards agent events to the caller, persisting non-partial
// events and their state deltas before acknowledging the agent via resume.
func (r *Runner) processEvents(
	ctx context.Context,
	key core.SessionKey,
	runID string,
	emit <-chan core.Event,
	resume chan<- struct{},
	out chan<- core.Event,
	errCh chan<- error,
	agentDone <-chan error,
) {
	defer r.finishRun(runID)
	defer close(errCh)
	defer close(out)

	var persistErr error

	for ev := range emit {
		r.dispatch(ctx, &CallbackContext{
			Type:       OnEvent,
			RunID:      runID,
			SessionKey: key,
			Event:      &ev,
		})

		select {
		case out <- ev:
		case <-ctx.Done():
			errCh <- ctx.Err()
			return
		}

		if ev.IsPartial() {
			continue
		}

		if err := r.store.AppendEvent(key, ev); err != nil {
			persistErr = fmt.Errorf("failed to persist event %s: %w", ev.ID, err)
			r.logger.Error("runner.persist.event_failed", "run_id", runID, "event_id", ev.ID, "error", err.Error())
		}
		if len(ev.Actions.StateDelta) > 0 {
			if err := r.store.ApplyDelta(key, ev.Actions.StateDelta); err != nil {
				persistErr = fmt.Errorf("failed to persist state delta: %w", err)
				r.logger.Error("runner.persist.delta_failed", "run_id", runID, "error", err.Error())
			} else {
				r.dispatch(ctx, &CallbackContext{
					Type:       OnStateChange,
					RunID:      runID,
					SessionKey: key,
					StateDelta: ev.Actions.StateDelta,
				})
			}
		}

		select {
		case resume <- struct{}{}:
		case <-ctx.Done():
			errCh <- ctx.Err()
			return
		}
	}

	runErr := <-agentDone
	if runErr == nil {
		runErr = persistErr
	}

	r.dispatch(ctx, &CallbackContext{
		Type:       AfterAgent,
		RunID:      runID,
		SessionKey: key,
		AgentName:  r.agent.Name(),
		RunError:   runErr,
	})

	if runErr != nil {
		r.logger.Error("runner.run.failed", "run_id", runID, "error", runErr.Error())
		errCh <- runErr
		return
	}
	r.logger.Info("runner.run.complete", "run_id", runID)
}

func (r *Runner) dispatch(ctx context.Context, cc *CallbackContext) {
	if r.callbacks == nil {
		return
	}
	_ = r.callbacks.invoke(ctx, cc)
}

// RunSync executes a run to completion and returns the final response text
// along with all emitted events. It is a convenience wrapper over Run for
// non-streaming callers.
func (r *Runner) RunSync(ctx context.Context, userID, sessionID string, content core.Content) (string, []core.Event, error) {
	_, events, errCh, err := r.Run(ctx, userID, sessionID, content)
	if err != nil {
		return "", nil, err
	}

	var all []core.Event
	var final string
	for ev := range events {
		all = append(all, ev)
		if !ev.IsPartial() && ev.Text() != "" {
			final = ev.Text()
		}
	}
	if err := <-errCh; err != nil {
		return final, all, err
	}
	return final, all, nil
}

// RunText is a shorthand for RunSync with a plain user text message.
func (r *Runner) RunText(ctx context.Context, userID, sessionID, message string) (string, error) {
	text, _, err := r.RunSync(ctx, userID, sessionID, core.NewUserText(message))
	return text, err
}
