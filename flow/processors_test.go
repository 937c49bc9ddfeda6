package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcraft-ai/agentcraft/core"
	"github.com/agentcraft-ai/agentcraft/internal/testutil"
	"github.com/agentcraft-ai/agentcraft/model"
)

func TestInstructionsProcessorRendersState(t *testing.T) {
	agent := newStubAgent(model.NewMockModel("test", "mock"))
	agent.instructions = "Address the user as {{.user_name}}."

	sess := testutil.NewSessionBuilder(testutil.Key("s1")).State("user_name", "Ada").Build()
	runCtx := newFlowRunContext(sess, make(chan core.Event, 1), 0)

	req := &model.Request{}
	require.NoError(t, NewInstructionsProcessor().ProcessRequest(runCtx, req, agent))
	assert.Equal(t, "Address the user as Ada.", req.Instructions)
}

func TestContentsProcessorBuildsMessages(t *testing.T) {
	agent := newStubAgent(model.NewMockModel("test", "mock"))

	sess := testutil.NewSessionBuilder(testutil.Key("s1")).
		Event(testutil.NewEventBuilder().Author("user").UserText("first").Build()).
		Event(testutil.NewEventBuilder().AssistantText("reply").Build()).
		Build()
	runCtx := newFlowRunContext(sess, make(chan core.Event, 1), 0)

	req := &model.Request{Instructions: "be brief"}
	require.NoError(t, NewContentsProcessor().ProcessRequest(runCtx, req, agent))

	require.Len(t, req.Contents, 3)
	assert.Equal(t, "system", req.Contents[0].Role)
	assert.Equal(t, "be brief", req.Contents[0].Text())
	assert.Equal(t, "user", req.Contents[1].Role)
	assert.Equal(t, "assistant", req.Contents[2].Role)
}

func TestContentsProcessorTrimsHistory(t *testing.T) {
	agent := newStubAgent(model.NewMockModel("test", "mock"))
	agent.maxHistory = 2

	builder := testutil.NewSessionBuilder(testutil.Key("s1"))
	for _, text := range []string{"one", "two", "three", "four"} {
		builder.Event(testutil.NewEventBuilder().Author("user").UserText(text).Build())
	}
	runCtx := newFlowRunContext(builder.Build(), make(chan core.Event, 1), 0)

	req := &model.Request{}
	require.NoError(t, NewContentsProcessor().ProcessRequest(runCtx, req, agent))

	require.Len(t, req.Contents, 3, "system message plus the two newest turns")
	assert.Equal(t, "three", req.Contents[1].Text())
	assert.Equal(t, "four", req.Contents[2].Text())
}

func TestTransferToolInjectorAppendsCatalog(t *testing.T) {
	agent := newStubAgent(model.NewMockModel("test", "mock"))
	agent.transfer = true
	agent.subAgents = []core.Agent{
		&fakeSubAgent{name: "Billing", desc: "Handles invoices"},
		&fakeSubAgent{name: "Support", desc: "Handles troubleshooting"},
	}

	runCtx := newFlowRunContext(testutil.NewSessionBuilder(testutil.Key("s1")).Build(), make(chan core.Event, 1), 0)

	req := &model.Request{Instructions: "base"}
	require.NoError(t, NewTransferToolInjector().ProcessRequest(runCtx, req, agent))

	assert.Contains(t, req.Instructions, "transfer_to_agent")
	assert.Contains(t, req.Instructions, "Billing: Handles invoices")
	assert.Contains(t, req.Instructions, "Support: Handles troubleshooting")
}

func TestTransferToolInjectorSkipsWhenDisabled(t *testing.T) {
	agent := newStubAgent(model.NewMockModel("test", "mock"))
	agent.subAgents = []core.Agent{&fakeSubAgent{name: "Billing"}}

	runCtx := newFlowRunContext(testutil.NewSessionBuilder(testutil.Key("s1")).Build(), make(chan core.Event, 1), 0)

	req := &model.Request{Instructions: "base"}
	require.NoError(t, NewTransferToolInjector().ProcessRequest(runCtx, req, agent))
	assert.Equal(t, "base", req.Instructions)
}

func TestOutputSchemaProcessorAppendsContract(t *testing.T) {
	agent := newStubAgent(model.NewMockModel("test", "mock"))
	agent.outputSchema = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subject": map[string]any{"type": "string"},
		},
	}

	runCtx := newFlowRunContext(testutil.NewSessionBuilder(testutil.Key("s1")).Build(), make(chan core.Event, 1), 0)

	req := &model.Request{Instructions: "base"}
	require.NoError(t, NewOutputSchemaProcessor().ProcessRequest(runCtx, req, agent))

	assert.Contains(t, req.Instructions, "Respond ONLY with a JSON object")
	assert.Contains(t, req.Instructions, `"subject"`)
}
