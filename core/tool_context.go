package core

import (
	"context"
	"fmt"
	"maps"

	"github.com/hupe1980/agentflow/logging"
)

// ToolContext provides a constrained, auditable surface for tool / function
// implementations invoked by an agent. It accumulates EventActions (state
// deltas, escalation signals, artifact versions) without directly mutating
// the underlying session until applied.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string
	agentInfo      AgentInfo
	eventActions   EventActions

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent RunContext and
// unique functionCallID.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		runCtx:         runCtx,
		functionCallID: functionCallID,
		agentInfo:      runCtx.Agent,
		eventActions:   NewEventActions(),
		loggerAdapter:  newLoggerAdapter(runCtx.Logger()),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// SessionID returns the session ID associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

// InvocationID returns the invocation ID associated with the tool invocation.
func (tc *ToolContext) InvocationID() string { return tc.runCtx.InvocationID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the agent name associated with the tool invocation.
func (tc *ToolContext) AgentName() string { return tc.agentInfo.Name }

// GetState retrieves the state associated with the given key.
func (tc *ToolContext) GetState(k string) (any, bool) {
	return tc.runCtx.GetState(k)
}

// SetState records a state mutation both on the underlying invocation context
// (for immediate visibility) and in the local EventActions delta for emission.
func (tc *ToolContext) SetState(k string, v any) {
	tc.runCtx.SetState(k, v)
	tc.eventActions.StateDelta[k] = v
}

// Actions returns the event actions accumulated in the tool context.
func (tc *ToolContext) Actions() *EventActions { return &tc.eventActions }

// SkipSummarization requests that post-processing summarization be bypassed
// for the originating event.
func (tc *ToolContext) SkipSummarization() {
	tc.eventActions.SkipSummarization = true
}

// Escalate requests that enclosing workflow agents stop iterating and bubble
// control upward.
func (tc *ToolContext) Escalate() {
	tc.eventActions.Escalate = true
	tc.LogInfo("tool.escalate.request", "agent", tc.AgentName(), "function_call_id", tc.functionCallID)
}

// SaveArtifact persists artifact bytes and records the new version for emission.
func (tc *ToolContext) SaveArtifact(name string, data []byte) (int, error) {
	version, err := tc.runCtx.SaveArtifact(name, data)
	if err != nil {
		return 0, err
	}

	tc.eventActions.ArtifactDelta[name] = version

	return version, nil
}

// LoadArtifact retrieves a persisted artifact by name.
func (tc *ToolContext) LoadArtifact(name string) ([]byte, error) {
	return tc.runCtx.GetArtifact(name)
}

// ListArtifacts returns artifact names stored for the session.
func (tc *ToolContext) ListArtifacts() ([]string, error) {
	return tc.runCtx.ListArtifacts()
}

// SearchMemory performs a recall query against the configured MemoryService.
func (tc *ToolContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	return tc.runCtx.SearchMemory(q, limit)
}

// StoreMemory appends new content to the session's memory with metadata.
func (tc *ToolContext) StoreMemory(content string, md map[string]any) error {
	return tc.runCtx.StoreMemory(content, md)
}

// GetSessionHistory returns conversation history (filtered) for context.
func (tc *ToolContext) GetSessionHistory() []Event {
	if tc.runCtx.Session == nil {
		return nil
	}

	return tc.runCtx.Session.GetConversationHistory()
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.runCtx == nil || tc.runCtx.SessionID == "" || tc.functionCallID == "" {
		return fmt.Errorf("invalid ToolContext")
	}

	return nil
}

// InternalRunContext returns the internal run context.
func (tc *ToolContext) InternalRunContext() *RunContext { return tc.runCtx }

// InternalApplyActions merges accumulated EventActions into the provided event.
// (Used by the LLM agent when finalizing tool response events.)
func (tc *ToolContext) InternalApplyActions(ev *Event) {
	if len(tc.eventActions.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, tc.eventActions.StateDelta)
	}

	if len(tc.eventActions.ArtifactDelta) > 0 {
		if ev.Actions.ArtifactDelta == nil {
			ev.Actions.ArtifactDelta = map[string]int{}
		}
		maps.Copy(ev.Actions.ArtifactDelta, tc.eventActions.ArtifactDelta)
	}

	if tc.eventActions.Escalate {
		ev.Actions.Escalate = true

		tc.LogInfo("tool.escalate.applied", "agent", tc.AgentName(), "function_call_id", tc.functionCallID)
	}

	if tc.eventActions.SkipSummarization {
		ev.Actions.SkipSummarization = true
	}
}
