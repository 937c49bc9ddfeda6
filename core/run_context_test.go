package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is a minimal in-package SessionStore for exercising the
// persistence hooks without importing the session package.
type fakeStore struct {
	sessions map[SessionKey]*Session
}

func newFakeStore() *fakeStore { return &fakeStore{sessions: map[SessionKey]*Session{}} }

func (f *fakeStore) Create(key SessionKey, initialState map[string]any) (*Session, error) {
	s := NewSession(key)
	s.MergeState(initialState)
	f.sessions[key] = s
	return s, nil
}

func (f *fakeStore) Get(key SessionKey) (*Session, error) {
	s, ok := f.sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeStore) GetOrCreate(key SessionKey) (*Session, error) {
	if s, ok := f.sessions[key]; ok {
		return s, nil
	}
	return f.Create(key, nil)
}

func (f *fakeStore) List(appName, userID string) ([]string, error) { return nil, nil }

func (f *fakeStore) Delete(key SessionKey) error {
	delete(f.sessions, key)
	return nil
}

func (f *fakeStore) AppendEvent(key SessionKey, ev Event) error {
	s, _ := f.GetOrCreate(key)
	s.AddEvent(ev)
	return nil
}

func (f *fakeStore) ApplyDelta(key SessionKey, delta map[string]any) error {
	s, _ := f.GetOrCreate(key)
	s.MergeState(delta)
	return nil
}

func testKey() SessionKey {
	return SessionKey{AppName: "app", UserID: "user", SessionID: "s1"}
}

func newTestRunContext(emit chan Event, resume chan struct{}, store SessionStore, sess *Session) *RunContext {
	return NewRunContext(
		context.Background(), testKey(), "run-1",
		AgentInfo{Name: "Agent", Type: "test"},
		NewUserText("hi"), 0,
		emit, resume, sess, store, nil,
	)
}

func TestRunContextStateLayering(t *testing.T) {
	sess := NewSession(testKey())
	sess.SetState("persisted", "base")

	rc := newTestRunContext(make(chan Event, 1), nil, nil, sess)

	v, ok := rc.GetState("persisted")
	require.True(t, ok)
	assert.Equal(t, "base", v)

	rc.SetState("persisted", "staged")
	v, _ = rc.GetState("persisted")
	assert.Equal(t, "staged", v, "staged delta shadows the persisted value")

	_, ok = sess.GetState("staged-only")
	assert.False(t, ok, "staging must not touch the session directly")
}

func TestRunContextEmitMergesDelta(t *testing.T) {
	emit := make(chan Event, 1)
	rc := newTestRunContext(emit, nil, nil, NewSession(testKey()))
	rc.Branch = "Root.Child"
	rc.SetState("k", "v")

	require.NoError(t, rc.EmitEvent(NewMessageEvent("run-1", "Agent", "done")))

	ev := <-emit
	assert.Equal(t, "v", ev.Actions.StateDelta["k"])
	assert.Equal(t, "Root.Child", ev.Branch)
	assert.Empty(t, rc.StateDelta, "delta buffer resets after emission")
}

func TestRunContextEmitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc := NewRunContext(ctx, testKey(), "run-1", AgentInfo{Name: "Agent"}, Content{}, 0,
		make(chan Event), nil, NewSession(testKey()), nil, nil)

	err := rc.EmitEvent(NewMessageEvent("run-1", "Agent", "late"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunContextWaitForResume(t *testing.T) {
	rc := newTestRunContext(make(chan Event, 1), nil, nil, NewSession(testKey()))
	assert.NoError(t, rc.WaitForResume(), "nil resume channel resolves immediately")

	resume := make(chan struct{}, 1)
	rc = newTestRunContext(make(chan Event, 1), resume, nil, NewSession(testKey()))
	resume <- struct{}{}
	assert.NoError(t, rc.WaitForResume())
}

func TestRunContextWaitForResumeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := NewRunContext(ctx, testKey(), "run-1", AgentInfo{Name: "Agent"}, Content{}, 0,
		make(chan Event, 1), make(chan struct{}), NewSession(testKey()), nil, nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	assert.ErrorIs(t, rc.WaitForResume(), context.Canceled)
}

func TestRunContextCommitStateDelta(t *testing.T) {
	store := newFakeStore()
	sess, err := store.Create(testKey(), nil)
	require.NoError(t, err)

	rc := newTestRunContext(make(chan Event, 1), nil, store, sess)
	rc.SetState("committed", true)

	require.NoError(t, rc.CommitStateDelta())
	assert.Empty(t, rc.StateDelta)

	stored, err := store.Get(testKey())
	require.NoError(t, err)
	v, ok := stored.GetState("committed")
	require.True(t, ok)
	assert.Equal(t, true, v)
}

func TestRunContextCloneIsolatesDelta(t *testing.T) {
	rc := newTestRunContext(make(chan Event, 1), nil, nil, NewSession(testKey()))
	rc.SetState("shared", 1)

	clone := rc.Clone()
	clone.SetState("clone-only", 2)

	_, ok := rc.StateDelta["clone-only"]
	assert.False(t, ok)

	v, ok := clone.GetState("shared")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestRunContextWithBranch(t *testing.T) {
	rc := newTestRunContext(make(chan Event, 1), nil, nil, NewSession(testKey()))
	branched := rc.WithBranch("Root.Worker")

	assert.Equal(t, "Root.Worker", branched.Branch)
	assert.Empty(t, rc.Branch)
}

func TestRunContextNewChildContext(t *testing.T) {
	rc := newTestRunContext(make(chan Event, 1), nil, nil, NewSession(testKey()))
	rc.SetState("parent", true)

	childEmit := make(chan Event, 1)
	childResume := make(chan struct{}, 1)
	child := rc.NewChildContext(childEmit, childResume, "Root.Child")

	assert.Empty(t, child.StateDelta, "child starts with a fresh delta buffer")
	assert.Equal(t, "Root.Child", child.Branch)
	assert.Same(t, rc.Limiter, child.Limiter, "model budget is shared across the run")

	require.NoError(t, child.EmitEvent(NewMessageEvent("run-1", "Child", "from child")))
	ev := <-childEmit
	assert.Equal(t, "from child", ev.Text())
}
