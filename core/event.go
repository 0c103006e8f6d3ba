package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventActions encodes side-effects or orchestration signals attached to an
// Event. StateDelta keys are merged additively into session state when the
// event is persisted; ArtifactDelta maps artifact name to its new version.
type EventActions struct {
	StateDelta        map[string]any `json:"stateDelta"`
	ArtifactDelta     map[string]int `json:"artifactDelta"`
	Escalate          bool           `json:"escalate"`
	SkipSummarization bool           `json:"skipSummarization,omitempty"`
}

// NewEventActions returns actions with initialized (empty) delta maps.
func NewEventActions() EventActions {
	return EventActions{StateDelta: map[string]any{}, ArtifactDelta: map[string]int{}}
}

// MarshalJSON guarantees stateDelta/artifactDelta serialize as {} rather
// than null when unset, per the wire contract.
func (a EventActions) MarshalJSON() ([]byte, error) {
	type alias EventActions
	out := alias(a)
	if out.StateDelta == nil {
		out.StateDelta = map[string]any{}
	}
	if out.ArtifactDelta == nil {
		out.ArtifactDelta = map[string]int{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON defaults absent delta maps to empty (non-nil) maps so a
// round-tripped EventActions compares equal to its source.
func (a *EventActions) UnmarshalJSON(data []byte) error {
	type alias EventActions
	tmp := alias{StateDelta: map[string]any{}, ArtifactDelta: map[string]int{}}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*a = EventActions(tmp)
	return nil
}

// Event is the unit of agent output: one record of communication between
// agents, the Runner and external clients. After emission it is immutable;
// the Runner's only further action on it is appending it to the session log.
//
// Field order matches the wire contract consumed by existing clients:
// camelCase keys, Time as unix seconds.
type Event struct {
	ID           string       `json:"id"`
	Time         int64        `json:"time"`
	InvocationID string       `json:"invocationId"`
	Author       string       `json:"author"`
	Partial      bool         `json:"partial"`
	TurnComplete bool         `json:"turnComplete"`
	Content      *Content     `json:"content,omitempty"`
	Actions      EventActions `json:"actions"`
	Branch       string       `json:"branch,omitempty"`
	ErrorCode    string       `json:"errorCode,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
	Interrupted  bool         `json:"interrupted,omitempty"`

	// ack, when set, is closed by the driving loop once the event has been
	// persisted and forwarded. It pairs each non-partial event with the
	// emitter waiting on it and never crosses the wire.
	ack chan struct{}
}

// NewEvent creates a bare event authored by author bound to an invocation.
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		Time:         time.Now().Unix(),
		InvocationID: invocationID,
		Author:       author,
		Actions:      NewEventActions(),
	}
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(invocationID, message string) Event {
	e := NewEvent(invocationID, "user")
	content := NewUserContent(message)
	e.Content = &content
	e.TurnComplete = true
	return e
}

// NewUserContentEvent creates a user-authored event with arbitrary Content.
func NewUserContentEvent(invocationID string, content Content) Event {
	e := NewEvent(invocationID, "user")
	e.Content = &content
	e.TurnComplete = true
	return e
}

// NewModelMessageEvent creates a model-authored text message event.
func NewModelMessageEvent(invocationID, author, message string) Event {
	e := NewEvent(invocationID, author)
	content := NewModelContent(message)
	e.Content = &content
	return e
}

// NewFunctionResponseEvent creates an event carrying a tool execution result
// back toward the model. Results ride on user-role content; a failed tool is
// reported as data ({"error": ...}) rather than as a stream error so the
// model can react to it.
func NewFunctionResponseEvent(invocationID, author, callID, name string, result any, err error) Event {
	e := NewEvent(invocationID, author)
	response := result
	if err != nil {
		response = map[string]any{"error": err.Error()}
	}
	content := Content{
		Role: RoleUser,
		Parts: []Part{FunctionResponsePart{
			FunctionResponse: FunctionResponse{ID: callID, Name: name, Response: response},
		}},
	}
	e.Content = &content
	return e
}

// NewID generates a new unique identifier for events and invocations.
func NewID() string { return uuid.NewString() }

// GetFunctionCalls returns any FunctionCall parts contained within the event
// content preserving their original order.
func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	return e.Content.FunctionCalls()
}

// GetFunctionResponses returns any FunctionResponse parts contained within
// the event content preserving their original order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}
	return e.Content.FunctionResponses()
}

// IsFinalResponse reports whether this event closes its author's logical turn.
func (e Event) IsFinalResponse() bool { return !e.Partial && e.TurnComplete }

// Acknowledge releases the emitter blocked in WaitForResume on this event.
// The Runner calls it exactly once per non-partial event, after the event has
// been appended to the session and forwarded downstream. Events without an
// ack (partial chunks, events emitted outside a Runner) ignore the call.
func (e Event) Acknowledge() {
	if e.ack != nil {
		close(e.ack)
	}
}

// Timestamp returns the event time as a time.Time in UTC.
func (e Event) Timestamp() time.Time { return time.Unix(e.Time, 0).UTC() }
