package core

import "fmt"

// ModelError indicates the model collaborator failed (transport, auth or a
// malformed response). It is fatal to the current agent turn and propagates
// up as the stream error.
type ModelError struct {
	Model string // Model name, if known
	Err   error
}

func (e *ModelError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("model %s: %v", e.Model, e.Err)
	}
	return fmt.Sprintf("model: %v", e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// ToolLoopExceededError is raised by an LLM agent whose model keeps
// requesting tool calls past the configured iteration bound.
type ToolLoopExceededError struct {
	Agent string
	Limit int
}

func (e *ToolLoopExceededError) Error() string {
	return fmt.Sprintf("agent %s exceeded %d model iterations without completing its turn", e.Agent, e.Limit)
}

// CompositeChildError wraps a sub-agent failure inside a Sequential,
// Parallel or Loop agent. Composites fail fast: the first child error halts
// remaining children/iterations.
type CompositeChildError struct {
	Composite string // Name of the composite agent
	Child     string // Name of the failing child
	Err       error
}

func (e *CompositeChildError) Error() string {
	return fmt.Sprintf("%s: child agent %s failed: %v", e.Composite, e.Child, e.Err)
}

func (e *CompositeChildError) Unwrap() error { return e.Err }

// SessionUnavailableError indicates the SessionService collaborator failed;
// it is fatal to the whole Runner.Run call.
type SessionUnavailableError struct {
	SessionID string
	Err       error
}

func (e *SessionUnavailableError) Error() string {
	return fmt.Sprintf("session %s unavailable: %v", e.SessionID, e.Err)
}

func (e *SessionUnavailableError) Unwrap() error { return e.Err }
