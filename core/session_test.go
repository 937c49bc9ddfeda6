package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionKeyString(t *testing.T) {
	key := SessionKey{AppName: "app", UserID: "user", SessionID: "s1"}
	assert.Equal(t, "app/user/s1", key.String())
}

func TestSessionKeyValidate(t *testing.T) {
	assert.NoError(t, SessionKey{AppName: "a", UserID: "u", SessionID: "s"}.Validate())
	assert.Error(t, SessionKey{UserID: "u", SessionID: "s"}.Validate())
	assert.Error(t, SessionKey{AppName: "a", SessionID: "s"}.Validate())
	assert.Error(t, SessionKey{AppName: "a", UserID: "u"}.Validate())
}

func TestSessionState(t *testing.T) {
	sess := NewSession(SessionKey{AppName: "a", UserID: "u", SessionID: "s"})

	_, ok := sess.GetState("missing")
	assert.False(t, ok)

	sess.SetState("name", "Ada")
	v, ok := sess.GetState("name")
	require.True(t, ok)
	assert.Equal(t, "Ada", v)

	sess.MergeState(map[string]any{"name": "Grace", "lang": "go"})
	v, _ = sess.GetState("name")
	assert.Equal(t, "Grace", v)
	v, _ = sess.GetState("lang")
	assert.Equal(t, "go", v)
}

func TestSessionEventsDefensiveCopy(t *testing.T) {
	sess := NewSession(SessionKey{AppName: "a", UserID: "u", SessionID: "s"})
	sess.AddEvent(NewMessageEvent("run-1", "agent", "one"))

	events := sess.Events()
	events[0].Author = "mutated"

	assert.Equal(t, "agent", sess.Events()[0].Author)
}

func TestConversationHistoryFiltering(t *testing.T) {
	sess := NewSession(SessionKey{AppName: "a", UserID: "u", SessionID: "s"})

	sess.AddEvent(NewUserMessageEvent("run-1", "question"))

	partial := true
	chunk := NewMessageEvent("run-1", "agent", "chu")
	chunk.Partial = &partial
	sess.AddEvent(chunk)

	sess.AddEvent(NewMessageEvent("run-1", "agent", "answer"))

	control := NewEvent("run-1", "agent")
	sess.AddEvent(control)

	system := NewEvent("run-1", "agent")
	system.Content = &Content{Role: "system", Parts: []Part{TextPart{Text: "instructions"}}}
	sess.AddEvent(system)

	history := sess.ConversationHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "question", history[0].Text())
	assert.Equal(t, "answer", history[1].Text())
}

func TestSessionClone(t *testing.T) {
	sess := NewSession(SessionKey{AppName: "a", UserID: "u", SessionID: "s"})
	sess.SetState("k", "v")
	sess.AddEvent(NewMessageEvent("run-1", "agent", "one"))

	clone := sess.Clone()
	clone.SetState("k", "changed")
	clone.AddEvent(NewMessageEvent("run-1", "agent", "two"))

	v, _ := sess.GetState("k")
	assert.Equal(t, "v", v)
	assert.Len(t, sess.Events(), 1)
	assert.Len(t, clone.Events(), 2)
}
