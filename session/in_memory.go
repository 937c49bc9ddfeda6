package session

import (
	"sync"

	"github.com/agentcraft-ai/agentcraft/core"
)

// InMemoryStore is a volatile SessionStore keeping sessions in a process
// local map. It is safe for concurrent access and best suited for tests or
// ephemeral demos. Returned sessions are clones to prevent external mutation
// of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[core.SessionKey]*core.Session
}

var _ core.SessionStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[core.SessionKey]*core.Session)}
}

// Create creates (or resets) the session for key with the given initial
// state.
func (s *InMemoryStore) Create(key core.SessionKey, initialState map[string]any) (*core.Session, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := core.NewSession(key)
	if len(initialState) > 0 {
		sess.MergeState(initialState)
	}
	s.sessions[key] = sess
	return sess.Clone(), nil
}

// Get returns a clone of the stored session or core.ErrSessionNotFound.
func (s *InMemoryStore) Get(key core.SessionKey) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[key]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// GetOrCreate returns the existing session or lazily creates an empty one.
func (s *InMemoryStore) GetOrCreate(key core.SessionKey) (*core.Session, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		sess = core.NewSession(key)
		s.sessions[key] = sess
	}
	return sess.Clone(), nil
}

// List returns the session IDs stored for an app/user pair.
func (s *InMemoryStore) List(appName, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0)
	for key := range s.sessions {
		if key.AppName == appName && key.UserID == userID {
			ids = append(ids, key.SessionID)
		}
	}
	return ids, nil
}

// Delete removes the session for key. Deleting a missing session is not an
// error.
func (s *InMemoryStore) Delete(key core.SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

// AppendEvent adds an event to the session history, creating the session if
// needed.
func (s *InMemoryStore) AppendEvent(key core.SessionKey, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		sess = core.NewSession(key)
		s.sessions[key] = sess
	}
	sess.AddEvent(ev)
	return nil
}

// ApplyDelta merges a key/value delta into the session state, creating the
// session if needed.
func (s *InMemoryStore) ApplyDelta(key core.SessionKey, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		sess = core.NewSession(key)
		s.sessions[key] = sess
	}
	sess.MergeState(delta)
	return nil
}
