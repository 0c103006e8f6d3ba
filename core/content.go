package core

import (
	"encoding/json"
	"strings"
)

// Conversation roles. The role set is closed: content is authored either by
// the user or by the model.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Content holds a role plus ordered parts. A Content with zero parts is
// valid and used for control-only events.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// NewUserContent builds a user-role Content with a single text part.
func NewUserContent(text string) Content {
	return Content{Role: RoleUser, Parts: []Part{TextPart{Text: text}}}
}

// NewModelContent builds a model-role Content with a single text part.
func NewModelContent(text string) Content {
	return Content{Role: RoleModel, Parts: []Part{TextPart{Text: text}}}
}

// NewContent builds a Content from a role and explicit parts.
func NewContent(role string, parts ...Part) Content {
	return Content{Role: role, Parts: parts}
}

// Text concatenates all text parts in order.
func (c Content) Text() string {
	var b strings.Builder
	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// FunctionCalls returns all function call parts preserving order.
func (c Content) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range c.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// FunctionResponses returns all function response parts preserving order.
func (c Content) FunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, p := range c.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// contentWire mirrors Content with parts in envelope form.
type contentWire struct {
	Role  string         `json:"role,omitempty"`
	Parts []partEnvelope `json:"parts"`
}

// MarshalJSON implements the wire contract: parts serialize as an untagged
// union keyed by variant ("text", "functionCall", "functionResponse",
// "inlineData").
func (c Content) MarshalJSON() ([]byte, error) {
	wire := contentWire{Role: c.Role, Parts: make([]partEnvelope, 0, len(c.Parts))}
	for _, p := range c.Parts {
		env, err := marshalPart(p)
		if err != nil {
			return nil, err
		}
		wire.Parts = append(wire.Parts, env)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON parses the wire form back into typed parts.
func (c *Content) UnmarshalJSON(data []byte) error {
	var wire contentWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c.Role = wire.Role
	c.Parts = make([]Part, 0, len(wire.Parts))
	for _, env := range wire.Parts {
		p, err := unmarshalPart(env)
		if err != nil {
			return err
		}
		c.Parts = append(c.Parts, p)
	}
	return nil
}
