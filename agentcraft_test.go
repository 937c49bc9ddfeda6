package agentcraft_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcraft-ai/agentcraft"
	"github.com/agentcraft-ai/agentcraft/agent"
	"github.com/agentcraft-ai/agentcraft/core"
	"github.com/agentcraft-ai/agentcraft/model"
	"github.com/agentcraft-ai/agentcraft/session"
)

func newEchoAgent(name, reply string) *agent.ModelAgent {
	mock := model.NewMockModel("test", "mock")
	mock.EnqueueText(reply)
	return agent.NewModelAgent(name, mock, func(o *agent.ModelAgentOptions) {
		o.EnableStreaming = false
	})
}

func TestAgentCraftInvokeSync(t *testing.T) {
	ac := agentcraft.New()
	ac.RegisterAgent(newEchoAgent("Greeter", "hello from greeter"))

	text, events, err := ac.InvokeSync(context.Background(),
		"user-1", "session-1", "Greeter", core.NewUserText("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hello from greeter", text)
	assert.NotEmpty(t, events)
}

func TestAgentCraftUnknownAgent(t *testing.T) {
	ac := agentcraft.New()

	_, _, err := ac.InvokeSync(context.Background(),
		"user-1", "session-1", "Nope", core.NewUserText("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestAgentCraftSharedSessionStore(t *testing.T) {
	store := session.NewInMemoryStore()
	ac := agentcraft.New(func(o *agentcraft.Options) {
		o.AppName = "shared-app"
		o.SessionStore = store
	})
	ac.RegisterAgent(newEchoAgent("Greeter", "hello"))

	_, _, err := ac.InvokeSync(context.Background(),
		"user-1", "session-1", "Greeter", core.NewUserText("hi"))
	require.NoError(t, err)

	sess, err := store.Get(core.SessionKey{
		AppName: "shared-app", UserID: "user-1", SessionID: "session-1",
	})
	require.NoError(t, err)
	assert.Len(t, sess.Events(), 2)
}

func TestAgentCraftReRegisterReplaces(t *testing.T) {
	ac := agentcraft.New()
	ac.RegisterAgent(newEchoAgent("Greeter", "first"))

	text, _, err := ac.InvokeSync(context.Background(),
		"user-1", "session-1", "Greeter", core.NewUserText("hi"))
	require.NoError(t, err)
	assert.Equal(t, "first", text)

	ac.RegisterAgent(newEchoAgent("Greeter", "second"))
	text, _, err = ac.InvokeSync(context.Background(),
		"user-1", "session-2", "Greeter", core.NewUserText("hi again"))
	require.NoError(t, err)
	assert.Equal(t, "second", text)
}
