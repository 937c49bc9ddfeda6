package core

import (
	"encoding/json"
	"fmt"
)

// wirePart is the tagged JSON envelope used to round-trip the polymorphic
// Part union through persistent stores.
type wirePart struct {
	Type             string            `json:"type"`
	Text             string            `json:"text,omitempty"`
	Data             map[string]any    `json:"data,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
}

const (
	wirePartText             = "text"
	wirePartData             = "data"
	wirePartFunctionCall     = "function_call"
	wirePartFunctionResponse = "function_response"
)

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

// MarshalJSON encodes content with type-tagged parts.
func (c Content) MarshalJSON() ([]byte, error) {
	wire := wireContent{Role: c.Role, Parts: make([]wirePart, 0, len(c.Parts))}
	for _, p := range c.Parts {
		switch part := p.(type) {
		case TextPart:
			wire.Parts = append(wire.Parts, wirePart{Type: wirePartText, Text: part.Text, Metadata: part.Metadata})
		case DataPart:
			wire.Parts = append(wire.Parts, wirePart{Type: wirePartData, Data: part.Data, Metadata: part.Metadata})
		case FunctionCallPart:
			fc := part.FunctionCall
			wire.Parts = append(wire.Parts, wirePart{Type: wirePartFunctionCall, FunctionCall: &fc, Metadata: part.Metadata})
		case FunctionResponsePart:
			fr := part.FunctionResponse
			wire.Parts = append(wire.Parts, wirePart{Type: wirePartFunctionResponse, FunctionResponse: &fr, Metadata: part.Metadata})
		default:
			return nil, fmt.Errorf("cannot marshal unknown part type %T", p)
		}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes content produced by MarshalJSON.
func (c *Content) UnmarshalJSON(data []byte) error {
	var wire wireContent
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c.Role = wire.Role
	c.Parts = make([]Part, 0, len(wire.Parts))
	for _, wp := range wire.Parts {
		switch wp.Type {
		case wirePartText:
			c.Parts = append(c.Parts, TextPart{Text: wp.Text, Metadata: wp.Metadata})
		case wirePartData:
			c.Parts = append(c.Parts, DataPart{Data: wp.Data, Metadata: wp.Metadata})
		case wirePartFunctionCall:
			var fc FunctionCall
			if wp.FunctionCall != nil {
				fc = *wp.FunctionCall
			}
			c.Parts = append(c.Parts, FunctionCallPart{FunctionCall: fc, Metadata: wp.Metadata})
		case wirePartFunctionResponse:
			var fr FunctionResponse
			if wp.FunctionResponse != nil {
				fr = *wp.FunctionResponse
			}
			c.Parts = append(c.Parts, FunctionResponsePart{FunctionResponse: fr, Metadata: wp.Metadata})
		default:
			return fmt.Errorf("cannot unmarshal unknown part type %q", wp.Type)
		}
	}
	return nil
}
