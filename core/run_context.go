package core

import (
	"context"
	"fmt"
	"maps"

	"github.com/hupe1980/agentflow/logging"
)

// RunContext is the per-invocation execution handle passed to an Agent's Run
// method. It aggregates:
//   - The ambient cancellation Context (shared across all sub-agents)
//   - Identifiers (AppName, UserID, SessionID, InvocationID, Agent info)
//   - Input user Content and the invocation's RunConfig
//   - The Emit channel carrying the agent's event stream
//   - Backing services (session, artifact, memory) for persistence concerns
//   - A working Session snapshot and pending StateDelta / artifact versions
//   - Branch label for concurrent fan-out paths
//
// One RunContext is created per Runner.Run call and shared read-mostly by
// every agent invoked during that turn; the Context cancellation signal is
// the only mutable shared field. State mutations via SetState accumulate in
// StateDelta until EmitEvent folds them into the next emitted event.
type RunContext struct {
	Context          context.Context
	AppName          string
	UserID           string
	SessionID        string
	InvocationID     string
	Agent            AgentInfo
	UserContent      Content
	Config           RunConfig
	Emit             chan<- Event
	SessionService   SessionService
	ArtifactService  ArtifactService
	MemoryService    MemoryService
	Session          *Session
	StateDelta       map[string]any
	ArtifactVersions map[string]int
	Branch           string

	// DurableAck is set by the Runner on the root context and inherited by
	// every derived context. When set, each non-partial EmitEvent attaches an
	// ack channel to the event; WaitForResume blocks until the Runner closes
	// it after persisting and forwarding that event. Contexts built without a
	// driving loop leave it unset and WaitForResume returns immediately.
	DurableAck bool

	// pendingAck is the ack channel of this context's most recently emitted
	// non-partial event. Derived contexts start with no pending ack, so
	// concurrent branches each wait on their own events.
	pendingAck chan struct{}

	*loggerAdapter
}

// NewRunContext constructs a RunContext with empty staged deltas.
func NewRunContext(
	ctx context.Context,
	appName, userID, sessionID, invocationID string,
	agent AgentInfo,
	userContent Content,
	config RunConfig,
	emit chan<- Event,
	sess *Session,
	sessionService SessionService,
	artifactService ArtifactService,
	memoryService MemoryService,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:          ctx,
		AppName:          appName,
		UserID:           userID,
		SessionID:        sessionID,
		InvocationID:     invocationID,
		Agent:            agent,
		UserContent:      userContent,
		Config:           config,
		Emit:             emit,
		Session:          sess,
		SessionService:   sessionService,
		ArtifactService:  artifactService,
		MemoryService:    memoryService,
		StateDelta:       map[string]any{},
		ArtifactVersions: map[string]int{},
		loggerAdapter:    newLoggerAdapter(logger),
	}
}

// Done mirrors context.Context's Done.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetState returns a staged (delta) value if present, else the persisted
// session value.
func (rc *RunContext) GetState(k string) (any, bool) {
	if v, ok := rc.StateDelta[k]; ok {
		return v, true
	}
	if rc.Session != nil {
		return rc.Session.GetState(k)
	}
	return nil, false
}

// SetState stages a state mutation; it is carried on the next emitted event
// and persisted when the Runner appends that event.
func (rc *RunContext) SetState(k string, v any) { rc.StateDelta[k] = v }

// ApplyStateDelta merges all pairs from d into the staged StateDelta.
func (rc *RunContext) ApplyStateDelta(d map[string]any) {
	maps.Copy(rc.StateDelta, d)
}

// SaveArtifact stores bytes in the ArtifactService and stages the resulting
// version for the next emitted event's artifactDelta.
func (rc *RunContext) SaveArtifact(name string, data []byte) (int, error) {
	if rc.ArtifactService == nil {
		return 0, fmt.Errorf("artifact service not configured")
	}
	version, err := rc.ArtifactService.Save(rc.SessionID, name, data)
	if err != nil {
		return 0, err
	}
	rc.ArtifactVersions[name] = version
	return version, nil
}

// GetArtifact retrieves the latest version of a saved artifact.
func (rc *RunContext) GetArtifact(name string) ([]byte, error) {
	if rc.ArtifactService == nil {
		return nil, fmt.Errorf("artifact service not configured")
	}
	return rc.ArtifactService.Get(rc.SessionID, name)
}

// ListArtifacts returns artifact names stored for the session.
func (rc *RunContext) ListArtifacts() ([]string, error) {
	if rc.ArtifactService == nil {
		return []string{}, nil
	}
	return rc.ArtifactService.List(rc.SessionID)
}

// SearchMemory queries the MemoryService for relevant content.
func (rc *RunContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	if rc.MemoryService == nil {
		return []SearchResult{}, nil
	}
	return rc.MemoryService.Search(rc.SessionID, q, limit)
}

// StoreMemory appends content plus metadata to the MemoryService.
func (rc *RunContext) StoreMemory(content string, md map[string]any) error {
	if rc.MemoryService == nil {
		return fmt.Errorf("memory service not configured")
	}
	return rc.MemoryService.Store(rc.SessionID, content, md)
}

// RefreshSession reloads the session snapshot from the SessionService.
func (rc *RunContext) RefreshSession() error {
	if rc.SessionService == nil {
		return fmt.Errorf("session service not configured")
	}
	s, err := rc.SessionService.Get(rc.AppName, rc.UserID, rc.SessionID)
	if err != nil {
		return err
	}
	rc.Session = s
	return nil
}

// GetSessionHistory returns all historical events for the session snapshot.
func (rc *RunContext) GetSessionHistory() []Event {
	if rc.Session == nil {
		return []Event{}
	}
	return rc.Session.GetEvents()
}

// Clone returns a shallow copy with deep-copied delta buffers. Service
// pointers, the session snapshot and the Emit channel are shared.
func (rc *RunContext) Clone() *RunContext {
	c := &RunContext{
		Context:          rc.Context,
		AppName:          rc.AppName,
		UserID:           rc.UserID,
		SessionID:        rc.SessionID,
		InvocationID:     rc.InvocationID,
		Agent:            rc.Agent,
		UserContent:      rc.UserContent,
		Config:           rc.Config,
		Emit:             rc.Emit,
		SessionService:   rc.SessionService,
		ArtifactService:  rc.ArtifactService,
		MemoryService:    rc.MemoryService,
		Session:          rc.Session,
		StateDelta:       map[string]any{},
		ArtifactVersions: map[string]int{},
		Branch:           rc.Branch,
		DurableAck:       rc.DurableAck,
		loggerAdapter:    rc.loggerAdapter,
	}
	maps.Copy(c.StateDelta, rc.StateDelta)
	maps.Copy(c.ArtifactVersions, rc.ArtifactVersions)
	return c
}

// WithBranch clones the context and sets the Branch label.
func (rc *RunContext) WithBranch(b string) *RunContext {
	c := rc.Clone()
	c.Branch = b
	return c
}

// NewChildContext derives a context for a nested execution path with fresh
// delta buffers and a replacement Emit channel. Composite agents use it to
// intercept child output without mutating the parent's buffers.
func (rc *RunContext) NewChildContext(emit chan<- Event, branch string) *RunContext {
	finalBranch := rc.Branch
	if branch != "" {
		finalBranch = branch
	}
	return &RunContext{
		Context:          rc.Context,
		AppName:          rc.AppName,
		UserID:           rc.UserID,
		SessionID:        rc.SessionID,
		InvocationID:     rc.InvocationID,
		Agent:            rc.Agent,
		UserContent:      rc.UserContent,
		Config:           rc.Config,
		Emit:             emit,
		SessionService:   rc.SessionService,
		ArtifactService:  rc.ArtifactService,
		MemoryService:    rc.MemoryService,
		Session:          rc.Session,
		StateDelta:       map[string]any{},
		ArtifactVersions: map[string]int{},
		Branch:           finalBranch,
		DurableAck:       rc.DurableAck,
		loggerAdapter:    rc.loggerAdapter,
	}
}

// EmitEvent folds pending StateDelta / artifact versions into ev.Actions,
// stamps the invocation id and branch, sends the event on the Emit channel,
// then resets the staged buffers. Under DurableAck every non-partial event
// carries an ack channel the Runner closes once the event is persisted;
// relayed events keep the ack they already carry so the original emitter is
// the one released. Returns the cancellation error if the context is
// cancelled before emission.
func (rc *RunContext) EmitEvent(ev Event) error {
	if ev.InvocationID == "" {
		ev.InvocationID = rc.InvocationID
	}
	if ev.Branch == "" {
		ev.Branch = rc.Branch
	}
	if len(rc.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, rc.StateDelta)
	}
	if len(rc.ArtifactVersions) > 0 {
		if ev.Actions.ArtifactDelta == nil {
			ev.Actions.ArtifactDelta = map[string]int{}
		}
		maps.Copy(ev.Actions.ArtifactDelta, rc.ArtifactVersions)
	}

	if rc.DurableAck && !ev.Partial && ev.ack == nil {
		ev.ack = make(chan struct{})
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
	}

	if ev.ack != nil {
		rc.pendingAck = ev.ack
	}
	rc.StateDelta = map[string]any{}
	rc.ArtifactVersions = map[string]int{}
	return nil
}

// WaitForResume blocks until the Runner acknowledges this context's most
// recently emitted non-partial event, giving agents a durable-then-continue
// ordering for multi-turn loops. Each context waits only on its own events,
// so concurrent branches never consume each other's acknowledgements. With
// no event pending (or no Runner driving the turn) it returns immediately.
func (rc *RunContext) WaitForResume() error {
	if rc.pendingAck == nil {
		return nil
	}
	select {
	case <-rc.pendingAck:
		rc.pendingAck = nil
		return nil
	case <-rc.Context.Done():
		return rc.Context.Err()
	}
}
