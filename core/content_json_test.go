package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentJSONRoundTrip(t *testing.T) {
	original := Content{
		Role: "assistant",
		Parts: []Part{
			TextPart{Text: "working on it"},
			DataPart{Data: map[string]any{"subject": "hello"}},
			FunctionCallPart{FunctionCall: FunctionCall{ID: "call-1", Name: "get_weather", Arguments: `{"city":"Oslo"}`}},
			FunctionResponsePart{FunctionResponse: FunctionResponse{ID: "call-1", Name: "get_weather", Response: map[string]any{"temp": float64(21)}}},
		},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Content
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "assistant", decoded.Role)
	require.Len(t, decoded.Parts, 4)

	text, ok := decoded.Parts[0].(TextPart)
	require.True(t, ok)
	assert.Equal(t, "working on it", text.Text)

	structured, ok := decoded.Parts[1].(DataPart)
	require.True(t, ok)
	assert.Equal(t, "hello", structured.Data["subject"])

	call, ok := decoded.Parts[2].(FunctionCallPart)
	require.True(t, ok)
	assert.Equal(t, "call-1", call.FunctionCall.ID)
	assert.Equal(t, `{"city":"Oslo"}`, call.FunctionCall.Arguments)

	resp, ok := decoded.Parts[3].(FunctionResponsePart)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"temp": float64(21)}, resp.FunctionResponse.Response)
}

func TestContentJSONTypeTags(t *testing.T) {
	data, err := json.Marshal(Content{Role: "user", Parts: []Part{TextPart{Text: "hi"}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","parts":[{"type":"text","text":"hi"}]}`, string(data))
}

func TestContentJSONUnknownPart(t *testing.T) {
	var decoded Content
	err := json.Unmarshal([]byte(`{"parts":[{"type":"audio"}]}`), &decoded)
	assert.ErrorContains(t, err, "unknown part type")
}

func TestEventJSONRoundTrip(t *testing.T) {
	ev := NewFunctionCallEvent("run-1", "agent", "get_weather", `{"city":"Oslo"}`)
	delta := map[string]any{"k": "v"}
	ev.Actions.StateDelta = delta

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, ev.ID, decoded.ID)
	assert.Equal(t, "v", decoded.Actions.StateDelta["k"])
	require.Len(t, decoded.GetFunctionCalls(), 1)
	assert.Equal(t, "get_weather", decoded.GetFunctionCalls()[0].Name)
}
