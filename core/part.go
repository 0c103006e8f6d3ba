package core

import (
	"encoding/json"
	"fmt"
)

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set: text,
// function call, function response and inline binary data.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string // Plain UTF-8 text
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// FunctionCall describes a tool/function invocation request.
type FunctionCall struct {
	Name string         `json:"name"`         // Tool / function name
	Args map[string]any `json:"args"`         // Structured argument payload
	ID   string         `json:"id,omitempty"` // Optional stable id supplied by the provider
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
}

// isPart implements the Part interface for FunctionCallPart.
func (FunctionCallPart) isPart() {}

// FunctionResponse describes the outcome of a function call. A failed tool
// execution is encoded as data: Response carries {"error": "..."} so the
// model can see and react to it on the next turn.
type FunctionResponse struct {
	Name     string `json:"name"`               // Function name
	Response any    `json:"response,omitempty"` // Result (any JSON shape) or {"error": ...}
	ID       string `json:"id,omitempty"`       // Matches originating FunctionCall ID
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
}

// isPart implements the Part interface for FunctionResponsePart.
func (FunctionResponsePart) isPart() {}

// InlineData carries binary content either inlined (base64 encoded) or by
// external URI reference.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data,omitempty"` // Base64 encoded bytes when inlined
	URI      string `json:"uri,omitempty"`  // External retrieval URI when not inlined
}

// InlineDataPart wraps InlineData as a content part.
type InlineDataPart struct {
	InlineData InlineData
}

// isPart implements the Part interface for InlineDataPart.
func (InlineDataPart) isPart() {}

// partEnvelope is the wire representation of the Part union. Exactly one
// field is populated; the variant is recognized by which key is present.
type partEnvelope struct {
	Text             *string           `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
	InlineData       *InlineData       `json:"inlineData,omitempty"`
}

// marshalPart converts a Part to its wire envelope.
func marshalPart(p Part) (partEnvelope, error) {
	switch v := p.(type) {
	case TextPart:
		return partEnvelope{Text: &v.Text}, nil
	case FunctionCallPart:
		fc := v.FunctionCall
		return partEnvelope{FunctionCall: &fc}, nil
	case FunctionResponsePart:
		fr := v.FunctionResponse
		return partEnvelope{FunctionResponse: &fr}, nil
	case InlineDataPart:
		data := v.InlineData
		return partEnvelope{InlineData: &data}, nil
	default:
		return partEnvelope{}, fmt.Errorf("unknown part type %T", p)
	}
}

// unmarshalPart converts a wire envelope back into the matching Part variant.
func unmarshalPart(env partEnvelope) (Part, error) {
	switch {
	case env.Text != nil:
		return TextPart{Text: *env.Text}, nil
	case env.FunctionCall != nil:
		return FunctionCallPart{FunctionCall: *env.FunctionCall}, nil
	case env.FunctionResponse != nil:
		return FunctionResponsePart{FunctionResponse: *env.FunctionResponse}, nil
	case env.InlineData != nil:
		return InlineDataPart{InlineData: *env.InlineData}, nil
	default:
		return nil, fmt.Errorf("part has no recognized variant key")
	}
}

// MarshalPartJSON serializes a single Part to its wire form. Exposed for
// transport layers that frame parts individually.
func MarshalPartJSON(p Part) ([]byte, error) {
	env, err := marshalPart(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// UnmarshalPartJSON parses a single wire-form part.
func UnmarshalPartJSON(data []byte) (Part, error) {
	var env partEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return unmarshalPart(env)
}
