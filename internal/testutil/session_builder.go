package testutil

import (
	"github.com/agentcraft-ai/agentcraft/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder(Key("s1")).State("k", "v").Events(ev1, ev2).Build()
type SessionBuilder struct {
	key    core.SessionKey
	state  map[string]any
	events []core.Event
}

// Key returns a session key with test defaults for app and user.
func Key(sessionID string) core.SessionKey {
	return core.SessionKey{AppName: "test-app", UserID: "test-user", SessionID: sessionID}
}

// NewSessionBuilder creates a builder for a session with the given key.
func NewSessionBuilder(key core.SessionKey) *SessionBuilder {
	return &SessionBuilder{key: key, state: map[string]any{}}
}

// State sets a state key/value pair on the resulting session (chainable).
func (b *SessionBuilder) State(key string, val any) *SessionBuilder {
	b.state[key] = val
	return b
}

// Event appends a single event to the session history (chainable).
func (b *SessionBuilder) Event(ev core.Event) *SessionBuilder {
	b.events = append(b.events, ev)
	return b
}

// Events appends multiple events to the session history (chainable).
func (b *SessionBuilder) Events(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Build returns a *core.Session with pre-populated state and events.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.key)

	for k, v := range b.state {
		s.State[k] = v
	}

	s.History = append(s.History, b.events...)

	return s
}
