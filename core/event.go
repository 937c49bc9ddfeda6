package core

import (
	"time"

	"github.com/google/uuid"
)

// EventActions encodes side-effects or orchestration signals attached to an
// Event. All fields are optional so absence can be distinguished from zero
// values. The runner interprets these after persistence.
type EventActions struct {
	StateDelta        map[string]any `json:"state_delta,omitempty"`
	TransferToAgent   *string        `json:"transfer_to_agent,omitempty"`
	Escalate          *bool          `json:"escalate,omitempty"`
	SkipSummarization *bool          `json:"skip_summarization,omitempty"`
}

// Event is the unit of communication between agents, the runner and external
// clients. After emission it should be treated as immutable. It carries
// correlation identifiers (RunID, ID, Author), optional conversational
// content, orchestration directives (Actions) and streaming markers.
//
// Content may be nil for control or error-only events.
type Event struct {
	ID           string            `json:"id"`
	RunID        string            `json:"run_id"`
	Author       string            `json:"author"`
	Actions      EventActions      `json:"actions"`
	Branch       string            `json:"branch,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Content      *Content          `json:"content,omitempty"`
	Partial      *bool             `json:"partial,omitempty"`
	TurnComplete *bool             `json:"turn_complete,omitempty"`
	ErrorMessage *string           `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewEvent creates a bare event authored by author and bound to a run.
// Prefer the helper constructors for common semantic categories.
func NewEvent(runID, author string) Event {
	return Event{
		ID:        NewID(),
		RunID:     runID,
		Author:    author,
		Timestamp: time.Now().UTC(),
		Actions:   EventActions{},
	}
}

// NewMessageEvent creates an assistant-style message event with a single
// text part.
func NewMessageEvent(runID, author, message string) Event {
	e := NewEvent(runID, author)
	e.Content = &Content{Role: "assistant", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(runID, message string) Event {
	e := NewEvent(runID, "user")
	e.Content = &Content{Role: "user", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewUserContentEvent creates a user-authored event with arbitrary Content.
func NewUserContentEvent(runID string, content *Content) Event {
	e := NewEvent(runID, "user")
	e.Content = content
	return e
}

// NewFunctionCallEvent represents an agent requesting execution of a named
// function/tool.
func NewFunctionCallEvent(runID, author, functionName, args string) Event {
	e := NewEvent(runID, author)
	e.Content = &Content{
		Role: "assistant",
		Parts: []Part{
			FunctionCallPart{FunctionCall: FunctionCall{Name: functionName, Arguments: args}},
		},
	}
	return e
}

// NewFunctionResponseEvent records the completion result (or error) of a
// tool invocation. If err is non-nil its message is copied into the
// response's Error field.
func NewFunctionResponseEvent(runID, author, id, functionName string, result any, err error) Event {
	e := NewEvent(runID, author)
	fr := FunctionResponse{ID: id, Name: functionName, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	e.Content = &Content{Role: "tool", Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
	return e
}

// NewEscalationEvent constructs an event carrying the escalate signal, used
// by loop children to request early termination.
func NewEscalationEvent(runID, author string, content *Content) Event {
	escalate := true
	e := NewEvent(runID, author)
	e.Actions.Escalate = &escalate
	e.Content = content
	return e
}

// NewID generates a new unique identifier for events and runs.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether this event is a streaming fragment that will be
// followed by additional events composing the final turn.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// GetFunctionCalls returns any FunctionCall parts in order.
func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	var calls []FunctionCall
	for _, p := range e.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// GetFunctionResponses returns any FunctionResponse parts in order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}
	var responses []FunctionResponse
	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// Text concatenates the text parts of the event content, if any.
func (e Event) Text() string {
	if e.Content == nil {
		return ""
	}
	return e.Content.Text()
}

// IsFinalResponse reports whether this event completes an assistant turn:
// no pending tool calls or responses and not a streaming fragment.
func (e Event) IsFinalResponse() bool {
	if e.Actions.SkipSummarization != nil && *e.Actions.SkipSummarization {
		return true
	}
	return len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0 &&
		!e.IsPartial()
}
