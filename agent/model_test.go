package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcraft-ai/agentcraft/core"
	"github.com/agentcraft-ai/agentcraft/internal/testutil"
	"github.com/agentcraft-ai/agentcraft/model"
	"github.com/agentcraft-ai/agentcraft/tool"
)

func newModelRunContext(agentName string, emit chan core.Event) *core.RunContext {
	sess := core.NewSession(testutil.Key("s1"))
	sess.AddEvent(core.NewUserMessageEvent("run-1", "hello"))
	return core.NewRunContext(
		context.Background(), testutil.Key("s1"), "run-1",
		core.AgentInfo{Name: agentName, Type: "model"},
		core.NewUserText("hello"), 0,
		emit, nil, sess, nil, nil,
	)
}

func collectEvents(emit chan core.Event) []core.Event {
	var events []core.Event
	for {
		select {
		case ev := <-emit:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestModelAgentDefaults(t *testing.T) {
	a := NewModelAgent("Helper", model.NewMockModel("test", "mock"))

	assert.Equal(t, "Helper", a.GetName())
	assert.True(t, a.IsStreamingEnabled())
	assert.True(t, a.IsTransferEnabled())
	assert.Equal(t, 20, a.MaxHistoryMessages())
	assert.Empty(t, a.GetOutputKey())
	assert.Nil(t, a.GetOutputSchema())

	text, err := a.ResolveInstructions(nil)
	require.NoError(t, err)
	assert.Contains(t, text, "Helper")
}

func TestModelAgentToolRegistry(t *testing.T) {
	a := NewModelAgent("Helper", model.NewMockModel("test", "mock"))
	greet := tool.NewFunctionTool("greet", "Greets", map[string]any{"type": "object"}, nil)

	a.RegisterTool(greet)
	assert.True(t, a.HasTool("greet"))

	// GetTools returns a copy; mutating it leaves the registry intact.
	tools := a.GetTools()
	delete(tools, "greet")
	assert.True(t, a.HasTool("greet"))

	assert.True(t, a.UnregisterTool("greet"))
	assert.False(t, a.UnregisterTool("greet"))
}

func TestModelAgentRunProducesFinalResponse(t *testing.T) {
	mock := model.NewMockModel("test", "mock")
	mock.EnqueueText("Hi, how can I help?")

	a := NewModelAgent("Helper", mock, func(o *ModelAgentOptions) {
		o.EnableStreaming = false
	})

	emit := make(chan core.Event, 16)
	require.NoError(t, a.Run(newModelRunContext("Helper", emit)))

	events := collectEvents(emit)
	require.Len(t, events, 1)
	assert.Equal(t, "Helper", events[0].Author)
	assert.Equal(t, "Hi, how can I help?", events[0].Text())
}

func TestModelAgentRunWithToolCall(t *testing.T) {
	mock := model.NewMockModel("test", "mock")
	mock.EnqueueToolCall("call-1", "get_time", `{}`)
	mock.EnqueueText("It is noon")

	a := NewModelAgent("Clock", mock, func(o *ModelAgentOptions) {
		o.EnableStreaming = false
		o.Tools = []tool.Tool{
			tool.NewFunctionTool("get_time", "Returns the current time",
				map[string]any{"type": "object"},
				func(tc *core.ToolContext, args map[string]any) (any, error) {
					return map[string]any{"time": "12:00"}, nil
				}),
		}
	})

	emit := make(chan core.Event, 16)
	require.NoError(t, a.Run(newModelRunContext("Clock", emit)))

	events := collectEvents(emit)
	require.Len(t, events, 3)
	assert.Len(t, events[0].GetFunctionCalls(), 1)
	assert.Len(t, events[1].GetFunctionResponses(), 1)
	assert.Equal(t, "It is noon", events[2].Text())
}

func TestModelAgentTransferReachesSiblings(t *testing.T) {
	billingModel := model.NewMockModel("test", "mock")
	billingModel.EnqueueText("invoice sent")

	triage := NewModelAgent("Triage", model.NewMockModel("test", "mock"))
	billing := NewModelAgent("Billing", billingModel, func(o *ModelAgentOptions) {
		o.EnableStreaming = false
	})
	coordinator := NewModelAgent("Coordinator", model.NewMockModel("test", "mock"))
	require.NoError(t, coordinator.SetSubAgents(triage, billing))

	emit := make(chan core.Event, 16)
	runCtx := newModelRunContext("Triage", emit)

	// Transfer from one child routes through the hierarchy root to a sibling.
	require.NoError(t, triage.TransferToAgent(runCtx, "Billing"))

	events := collectEvents(emit)
	require.NotEmpty(t, events)
	assert.Equal(t, "invoice sent", events[len(events)-1].Text())
}

func TestModelAgentTransferUnknownAgent(t *testing.T) {
	a := NewModelAgent("Solo", model.NewMockModel("test", "mock"))

	err := a.TransferToAgent(newModelRunContext("Solo", make(chan core.Event, 1)), "Ghost")
	assert.ErrorContains(t, err, "not found")
}
