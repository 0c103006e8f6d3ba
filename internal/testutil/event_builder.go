package testutil

import (
	"github.com/hupe1980/agentflow/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder().Author("agent").Invocation("inv-1").ModelText("hello").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EventBuilder struct {
	author       string
	invocationID string
	id           string
	role         string
	parts        []core.Part
	partial      bool
	turnComplete bool
	actions      core.EventActions
	branch       string
}

// NewEventBuilder creates a builder with default author "agent".
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{author: "agent", actions: core.NewEventActions()}
}

// Author sets the author name for the event (chainable).
func (b *EventBuilder) Author(a string) *EventBuilder { b.author = a; return b }

// Invocation sets the invocation ID associated with the event (chainable).
func (b *EventBuilder) Invocation(id string) *EventBuilder { b.invocationID = id; return b }

// ID overrides the auto-generated event ID (chainable). Use mainly in tests
// where determinism matters.
func (b *EventBuilder) ID(id string) *EventBuilder { b.id = id; return b }

// Branch sets the branch label for forked execution paths (chainable).
func (b *EventBuilder) Branch(br string) *EventBuilder { b.branch = br; return b }

// Partial marks the event as a streaming chunk (chainable).
func (b *EventBuilder) Partial() *EventBuilder { b.partial = true; return b }

// TurnComplete marks the event as closing its author's turn (chainable).
func (b *EventBuilder) TurnComplete() *EventBuilder { b.turnComplete = true; return b }

// UserText appends a user role text part (chainable).
func (b *EventBuilder) UserText(t string) *EventBuilder {
	b.role = core.RoleUser
	b.parts = append(b.parts, core.TextPart{Text: t})
	return b
}

// ModelText appends a model role text part (chainable).
func (b *EventBuilder) ModelText(t string) *EventBuilder {
	b.role = core.RoleModel
	b.parts = append(b.parts, core.TextPart{Text: t})
	return b
}

// FunctionCall adds a function call part (chainable).
func (b *EventBuilder) FunctionCall(id, name string, args map[string]any) *EventBuilder {
	b.role = core.RoleModel
	b.parts = append(b.parts, core.FunctionCallPart{
		FunctionCall: core.FunctionCall{ID: id, Name: name, Args: args},
	})
	return b
}

// FunctionResponse adds a function response part; a non-nil err is encoded as
// data per the tool failure convention (chainable).
func (b *EventBuilder) FunctionResponse(id, name string, result any, err error) *EventBuilder {
	b.role = core.RoleUser
	response := result
	if err != nil {
		response = map[string]any{"error": err.Error()}
	}
	b.parts = append(b.parts, core.FunctionResponsePart{
		FunctionResponse: core.FunctionResponse{ID: id, Name: name, Response: response},
	})
	return b
}

// StateDelta stages a state mutation on the event's actions (chainable).
func (b *EventBuilder) StateDelta(key string, value any) *EventBuilder {
	b.actions.StateDelta[key] = value
	return b
}

// Escalate marks the event as requesting loop termination (chainable).
func (b *EventBuilder) Escalate() *EventBuilder { b.actions.Escalate = true; return b }

// Build materializes the configured Event.
func (b *EventBuilder) Build() core.Event {
	ev := core.NewEvent(b.invocationID, b.author)
	if b.id != "" {
		ev.ID = b.id
	}
	if len(b.parts) > 0 {
		content := core.Content{Role: b.role, Parts: b.parts}
		ev.Content = &content
	}
	ev.Partial = b.partial
	ev.TurnComplete = b.turnComplete
	ev.Actions = b.actions
	ev.Branch = b.branch
	return ev
}
