package core

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSessionNotFound is returned by SessionStore implementations when the
// requested session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// SessionKey identifies a session by the (application, user, session) triple.
// AppName scopes sessions per application, UserID per end user; SessionID
// distinguishes concurrent conversations of the same user.
type SessionKey struct {
	AppName   string `json:"app_name"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// String renders the key as app/user/session, suitable for log fields and
// flat storage keys.
func (k SessionKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.AppName, k.UserID, k.SessionID)
}

// Validate checks that all components are non-empty.
func (k SessionKey) Validate() error {
	if k.AppName == "" || k.UserID == "" || k.SessionID == "" {
		return fmt.Errorf("invalid session key %q: all components required", k.String())
	}
	return nil
}

// Session is a conversational container tracking mutable key/value state plus
// an ordered event history. It is safe for concurrent access.
//
// Contract:
//   - State mutations update the Updated timestamp
//   - Events returns a defensive copy to avoid external mutation
//   - ConversationHistory filters events to user/assistant/tool roles and
//     excludes partial streaming fragments
//   - Clone deep-copies maps and slices for safe divergence
type Session struct {
	Key     SessionKey     `json:"key"`
	State   map[string]any `json:"state"`
	History []Event        `json:"events"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
	mu      sync.RWMutex
}

// NewSession creates an empty session for the given key.
func NewSession(key SessionKey) *Session {
	now := time.Now()
	return &Session{
		Key:     key,
		State:   map[string]any{},
		History: []Event{},
		Created: now,
		Updated: now,
	}
}

// GetState returns the value and existence flag for a state key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.State[key]
	return v, ok
}

// SetState sets a key/value pair in session state.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State[key] = value
	s.Updated = time.Now()
}

// MergeState merges the provided key/value pairs into State.
func (s *Session) MergeState(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range delta {
		s.State[k] = v
	}
	s.Updated = time.Now()
}

// AddEvent appends an event to the history.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = append(s.History, ev)
	s.Updated = time.Now()
}

// Events returns a defensive copy of the full event log.
func (s *Session) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, len(s.History))
	copy(events, s.History)
	return events
}

// ConversationHistory returns the events suitable for providing conversational
// context to models: partials and non-conversational roles are excluded.
func (s *Session) ConversationHistory() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	allowed := map[string]bool{"user": true, "assistant": true, "tool": true}
	res := make([]Event, 0, len(s.History))
	for _, ev := range s.History {
		if ev.Content == nil || !allowed[ev.Content.Role] {
			continue
		}
		if ev.IsPartial() {
			continue
		}
		res = append(res, ev)
	}
	return res
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		Key:     s.Key,
		State:   make(map[string]any, len(s.State)),
		History: make([]Event, len(s.History)),
		Created: s.Created,
		Updated: s.Updated,
	}
	for k, v := range s.State {
		clone.State[k] = v
	}
	copy(clone.History, s.History)
	return clone
}

// SessionStore persists sessions and their evolving state and event history.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	// Create creates (or resets) the session for key, seeding its state
	// with initialState (may be nil).
	Create(key SessionKey, initialState map[string]any) (*Session, error)

	// Get returns the session for key or ErrSessionNotFound.
	Get(key SessionKey) (*Session, error)

	// GetOrCreate returns the existing session or lazily creates an empty one.
	GetOrCreate(key SessionKey) (*Session, error)

	// List returns the session IDs stored for an app/user pair.
	List(appName, userID string) ([]string, error)

	// Delete removes the session for key. Deleting a missing session is not
	// an error.
	Delete(key SessionKey) error

	// AppendEvent adds an event to the session's history.
	AppendEvent(key SessionKey, event Event) error

	// ApplyDelta merges a key/value delta into the session state.
	ApplyDelta(key SessionKey, delta map[string]any) error
}
