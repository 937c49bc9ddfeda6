package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcraft-ai/agentcraft/core"
	"github.com/agentcraft-ai/agentcraft/internal/testutil"
	"github.com/agentcraft-ai/agentcraft/model"
	"github.com/agentcraft-ai/agentcraft/tool"
)

// stubFlowAgent is a scriptable FlowAgent implementation for flow tests.
type stubFlowAgent struct {
	name          string
	model         model.Model
	instructions  string
	tools         map[string]tool.Tool
	subAgents     []core.Agent
	streaming     bool
	transfer      bool
	outputKey     string
	outputSchema  map[string]any
	maxHistory    int
	transferredTo string
}

func (a *stubFlowAgent) GetName() string       { return a.name }
func (a *stubFlowAgent) GetModel() model.Model { return a.model }
func (a *stubFlowAgent) ResolveInstructions(_ *core.RunContext) (string, error) {
	return a.instructions, nil
}
func (a *stubFlowAgent) GetTools() map[string]tool.Tool  { return a.tools }
func (a *stubFlowAgent) GetSubAgents() []core.Agent      { return a.subAgents }
func (a *stubFlowAgent) IsStreamingEnabled() bool        { return a.streaming }
func (a *stubFlowAgent) IsTransferEnabled() bool         { return a.transfer }
func (a *stubFlowAgent) GetOutputKey() string            { return a.outputKey }
func (a *stubFlowAgent) GetOutputSchema() map[string]any { return a.outputSchema }
func (a *stubFlowAgent) MaxHistoryMessages() int         { return a.maxHistory }
func (a *stubFlowAgent) TransferToAgent(_ *core.RunContext, name string) error {
	a.transferredTo = name
	return nil
}

// fakeSubAgent satisfies core.Agent for delegation catalogs.
type fakeSubAgent struct{ name, desc string }

func (f *fakeSubAgent) Name() string                     { return f.name }
func (f *fakeSubAgent) Description() string              { return f.desc }
func (f *fakeSubAgent) Run(_ *core.RunContext) error     { return nil }
func (f *fakeSubAgent) SetSubAgents(...core.Agent) error { return nil }
func (f *fakeSubAgent) SubAgents() []core.Agent          { return nil }
func (f *fakeSubAgent) Parent() core.Agent               { return nil }
func (f *fakeSubAgent) FindAgent(string) core.Agent      { return nil }

func newStubAgent(m model.Model) *stubFlowAgent {
	return &stubFlowAgent{
		name:         "Stub",
		model:        m,
		instructions: "You are a test agent.",
		tools:        map[string]tool.Tool{},
		maxHistory:   20,
	}
}

func newFlowRunContext(sess *core.Session, emit chan core.Event, maxModelCalls int) *core.RunContext {
	return core.NewRunContext(
		context.Background(), testutil.Key("s1"), "run-1",
		core.AgentInfo{Name: "Stub", Type: "model"},
		core.NewUserText("hi"), maxModelCalls,
		emit, nil, sess, nil, nil,
	)
}

func drain(emit chan core.Event) []core.Event {
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

func TestSingleAgentFlowFinalResponse(t *testing.T) {
	mock := model.NewMockModel("test", "mock")
	mock.EnqueueText("All done")

	agent := newStubAgent(mock)
	sess := testutil.NewSessionBuilder(testutil.Key("s1")).
		Event(testutil.NewEventBuilder().Author("user").UserText("hi").Build()).
		Build()
	emit := make(chan core.Event, 16)
	runCtx := newFlowRunContext(sess, emit, 0)

	require.NoError(t, NewSingleAgentFlow(agent).Execute(runCtx))

	events := drain(emit)
	require.Len(t, events, 1)
	assert.Equal(t, "All done", events[0].Text())
	require.NotNil(t, events[0].TurnComplete)
	assert.True(t, *events[0].TurnComplete)
	assert.True(t, events[0].IsFinalResponse())
}

func TestSingleAgentFlowToolLoop(t *testing.T) {
	mock := model.NewMockModel("test", "mock")
	mock.EnqueueToolCall("call-1", "greet", `{"name":"Ada"}`)
	mock.EnqueueText("Hello Ada")

	greet := tool.NewFunctionTool("greet", "Greets a person",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string"},
			},
			"required": []string{"name"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			tc.SetState("last_greeted", args["name"])
			return map[string]any{"greeting": "Hello " + args["name"].(string)}, nil
		},
	)

	agent := newStubAgent(mock)
	agent.tools["greet"] = greet

	sess := testutil.NewSessionBuilder(testutil.Key("s1")).
		Event(testutil.NewEventBuilder().Author("user").UserText("greet Ada").Build()).
		Build()
	emit := make(chan core.Event, 16)
	runCtx := newFlowRunContext(sess, emit, 0)

	require.NoError(t, NewSingleAgentFlow(agent).Execute(runCtx))

	events := drain(emit)
	require.Len(t, events, 3)

	calls := events[0].GetFunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "greet", calls[0].Name)

	responses := events[1].GetFunctionResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, "call-1", responses[0].ID)
	assert.Empty(t, responses[0].Error)
	assert.Equal(t, "Ada", events[1].Actions.StateDelta["last_greeted"])

	assert.Equal(t, "Hello Ada", events[2].Text())
}

func TestSingleAgentFlowToolNotFound(t *testing.T) {
	mock := model.NewMockModel("test", "mock")
	mock.EnqueueToolCall("call-1", "missing_tool", `{}`)
	mock.EnqueueText("Could not run the tool")

	agent := newStubAgent(mock)
	sess := testutil.NewSessionBuilder(testutil.Key("s1")).Build()
	emit := make(chan core.Event, 16)
	runCtx := newFlowRunContext(sess, emit, 0)

	require.NoError(t, NewSingleAgentFlow(agent).Execute(runCtx))

	events := drain(emit)
	require.Len(t, events, 3)
	responses := events[1].GetFunctionResponses()
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Error, "not found")
}

func TestOutputKeyCapture(t *testing.T) {
	mock := model.NewMockModel("test", "mock")
	mock.EnqueueText("a short poem")

	agent := newStubAgent(mock)
	agent.outputKey = "poem"

	sess := testutil.NewSessionBuilder(testutil.Key("s1")).Build()
	emit := make(chan core.Event, 16)
	runCtx := newFlowRunContext(sess, emit, 0)

	require.NoError(t, NewSingleAgentFlow(agent).Execute(runCtx))

	events := drain(emit)
	require.Len(t, events, 1)
	assert.Equal(t, "a short poem", events[0].Actions.StateDelta["poem"])
}

func TestOutputSchemaCapture(t *testing.T) {
	mock := model.NewMockModel("test", "mock")
	mock.EnqueueText(`{"subject":"Meeting","body":"See you at 3pm"}`)

	agent := newStubAgent(mock)
	agent.outputKey = "email"
	agent.outputSchema = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subject": map[string]any{"type": "string"},
			"body":    map[string]any{"type": "string"},
		},
		"required": []string{"subject", "body"},
	}

	sess := testutil.NewSessionBuilder(testutil.Key("s1")).Build()
	emit := make(chan core.Event, 16)
	runCtx := newFlowRunContext(sess, emit, 0)

	require.NoError(t, NewSingleAgentFlow(agent).Execute(runCtx))

	events := drain(emit)
	require.Len(t, events, 1)

	structured, ok := events[0].Actions.StateDelta["email"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Meeting", structured["subject"])

	var dataPart *core.DataPart
	for _, p := range events[0].Content.Parts {
		if dp, ok := p.(core.DataPart); ok {
			dataPart = &dp
		}
	}
	require.NotNil(t, dataPart, "final event carries the parsed object as a data part")
	assert.Equal(t, "See you at 3pm", dataPart.Data["body"])
}

func TestOutputSchemaRejectsInvalid(t *testing.T) {
	mock := model.NewMockModel("test", "mock")
	mock.EnqueueText(`{"subject":"Meeting"}`)

	agent := newStubAgent(mock)
	agent.outputKey = "email"
	agent.outputSchema = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subject": map[string]any{"type": "string"},
			"body":    map[string]any{"type": "string"},
		},
		"required": []string{"subject", "body"},
	}

	sess := testutil.NewSessionBuilder(testutil.Key("s1")).Build()
	emit := make(chan core.Event, 16)
	runCtx := newFlowRunContext(sess, emit, 0)

	err := NewSingleAgentFlow(agent).Execute(runCtx)
	assert.ErrorContains(t, err, "does not match schema")
}

func TestOutputSchemaDisablesTools(t *testing.T) {
	agent := newStubAgent(model.NewMockModel("test", "mock"))
	agent.tools["greet"] = tool.NewFunctionTool("greet", "", map[string]any{"type": "object"}, nil)
	agent.outputSchema = map[string]any{"type": "object"}

	f := NewBaseFlow(agent)
	assert.Nil(t, f.effectiveTools())

	agent.outputSchema = nil
	assert.Len(t, f.effectiveTools(), 1)
}

func TestEffectiveToolsInjectsTransfer(t *testing.T) {
	agent := newStubAgent(model.NewMockModel("test", "mock"))
	agent.transfer = true
	agent.subAgents = []core.Agent{&fakeSubAgent{name: "Helper", desc: "Helps"}}

	registry := NewBaseFlow(agent).effectiveTools()
	_, ok := registry["transfer_to_agent"]
	assert.True(t, ok)
}

func TestTransferActionRoutesToAgent(t *testing.T) {
	mock := model.NewMockModel("test", "mock")
	mock.EnqueueToolCall("call-1", "transfer_to_agent", `{"agent":"Helper"}`)

	agent := newStubAgent(mock)
	agent.transfer = true
	agent.subAgents = []core.Agent{&fakeSubAgent{name: "Helper", desc: "Helps"}}

	sess := testutil.NewSessionBuilder(testutil.Key("s1")).Build()
	emit := make(chan core.Event, 16)
	runCtx := newFlowRunContext(sess, emit, 0)

	require.NoError(t, NewMultiAgentFlow(agent).Execute(runCtx))
	assert.Equal(t, "Helper", agent.transferredTo)
}

func TestModelCallLimit(t *testing.T) {
	mock := model.NewMockModel("test", "mock")
	mock.EnqueueToolCall("call-1", "greet", `{}`)
	mock.EnqueueText("never reached")

	agent := newStubAgent(mock)
	agent.tools["greet"] = tool.NewFunctionTool("greet", "", map[string]any{"type": "object"},
		func(tc *core.ToolContext, args map[string]any) (any, error) { return "hi", nil })

	sess := testutil.NewSessionBuilder(testutil.Key("s1")).Build()
	emit := make(chan core.Event, 16)
	runCtx := newFlowRunContext(sess, emit, 1)

	err := NewSingleAgentFlow(agent).Execute(runCtx)
	assert.ErrorContains(t, err, "exceeded max model calls")
}

func TestStreamingEmitsPartials(t *testing.T) {
	mock := model.NewMockModel("test", "mock")
	mock.AddResponse("You are a test agent.", "hey")

	agent := newStubAgent(mock)
	agent.streaming = true

	// Empty history: the system content is the last message the mock echoes.
	sess := testutil.NewSessionBuilder(testutil.Key("s1")).Build()
	emit := make(chan core.Event, 16)
	runCtx := newFlowRunContext(sess, emit, 0)

	require.NoError(t, NewSingleAgentFlow(agent).Execute(runCtx))

	events := drain(emit)
	require.Len(t, events, 4, "three partial chunks plus the final event")
	assert.True(t, events[0].IsPartial())
	assert.False(t, events[3].IsPartial())
	assert.Equal(t, "hey", events[3].Text())
}

type erroringModel struct{}

func (erroringModel) Generate(_ context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)
	errCh <- errors.New("upstream unavailable")
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (erroringModel) Info() model.Info { return model.Info{Name: "err", Provider: "test"} }

func TestModelErrorPropagates(t *testing.T) {
	agent := newStubAgent(erroringModel{})
	sess := testutil.NewSessionBuilder(testutil.Key("s1")).Build()
	emit := make(chan core.Event, 16)
	runCtx := newFlowRunContext(sess, emit, 0)

	err := NewSingleAgentFlow(agent).Execute(runCtx)
	assert.ErrorContains(t, err, "model generation failed")
}

func TestSelectorPicksFlowByCapabilities(t *testing.T) {
	agent := newStubAgent(model.NewMockModel("test", "mock"))

	_, single := NewSelector().SelectFlow(agent).(*SingleAgentFlow)
	assert.True(t, single)

	agent.transfer = true
	agent.subAgents = []core.Agent{&fakeSubAgent{name: "Helper"}}
	_, multi := NewSelector().SelectFlow(agent).(*MultiAgentFlow)
	assert.True(t, multi)
}
