package model

import (
	"context"
	"testing"

	"github.com/agentcraft-ai/agentcraft/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, respCh <-chan Response, errCh <-chan error) []Response {
	t.Helper()
	var responses []Response
	for respCh != nil || errCh != nil {
		select {
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			responses = append(responses, r)
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			require.NoError(t, err)
		}
	}
	return responses
}

func userRequest(text string) Request {
	return Request{Contents: []core.Content{core.NewUserText(text)}}
}

func TestMockModelCannedResponse(t *testing.T) {
	m := NewMockModel("test-model", "mock")
	m.AddResponse("hi", "hello!")

	respCh, errCh := m.Generate(context.Background(), userRequest("hi"))
	responses := collect(t, respCh, errCh)
	require.Len(t, responses, 1)
	assert.Equal(t, "hello!", responses[0].Content.Text())
	assert.Equal(t, "stop", responses[0].FinishReason)
	assert.False(t, responses[0].Partial)
}

func TestMockModelDefaultEcho(t *testing.T) {
	m := NewMockModel("test-model", "mock")

	respCh, errCh := m.Generate(context.Background(), userRequest("anything"))
	responses := collect(t, respCh, errCh)
	require.Len(t, responses, 1)
	assert.Equal(t, "Mock response to: anything", responses[0].Content.Text())
}

func TestMockModelStreaming(t *testing.T) {
	m := NewMockModel("test-model", "mock")
	m.AddResponse("hi", "abc")

	req := userRequest("hi")
	req.Stream = true
	respCh, errCh := m.Generate(context.Background(), req)
	responses := collect(t, respCh, errCh)

	// One partial per rune plus a final.
	require.Len(t, responses, 4)
	for _, r := range responses[:3] {
		assert.True(t, r.Partial)
	}
	final := responses[3]
	assert.False(t, final.Partial)
	assert.Equal(t, "abc", final.Content.Text())
}

func TestMockModelScriptedToolCall(t *testing.T) {
	m := NewMockModel("test-model", "mock")
	m.EnqueueToolCall("call-1", "get_joke", `{"topic":"dads"}`)
	m.EnqueueText("Here is your joke.")

	// First turn yields the tool call.
	respCh, errCh := m.Generate(context.Background(), userRequest("tell me a joke"))
	responses := collect(t, respCh, errCh)
	require.Len(t, responses, 1)
	assert.Equal(t, "tool_calls", responses[0].FinishReason)
	var calls []core.FunctionCall
	for _, p := range responses[0].Content.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	require.Len(t, calls, 1)
	assert.Equal(t, "get_joke", calls[0].Name)
	assert.Equal(t, `{"topic":"dads"}`, calls[0].Arguments)

	// Second turn yields the scripted text.
	respCh, errCh = m.Generate(context.Background(), userRequest("tool result"))
	responses = collect(t, respCh, errCh)
	require.Len(t, responses, 1)
	assert.Equal(t, "Here is your joke.", responses[0].Content.Text())
}

func TestMockModelEmptyContents(t *testing.T) {
	m := NewMockModel("test-model", "mock")
	respCh, errCh := m.Generate(context.Background(), Request{})
	for range respCh {
		t.Fatal("expected no responses")
	}
	err := <-errCh
	assert.Error(t, err)
}

func TestMockModelInfo(t *testing.T) {
	m := NewMockModel("test-model", "mock")
	info := m.Info()
	assert.Equal(t, "test-model", info.Name)
	assert.Equal(t, "mock", info.Provider)
	assert.True(t, info.SupportsTools)
}
