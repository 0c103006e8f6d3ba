package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentflow/artifact"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/memory"
	"github.com/hupe1980/agentflow/session"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// EventBufferSize sets channel buffering for event streams.
	EventBufferSize int
	// SessionService persists sessions and event history.
	SessionService core.SessionService
	// ArtifactService stores versioned binary artifacts.
	ArtifactService core.ArtifactService
	// MemoryService provides long-term recall.
	MemoryService core.MemoryService
	// Tracker registers invocations for cancellation/status queries. A fresh
	// tracker is created when unset.
	Tracker *InvocationTracker
	// Logger receives runner diagnostics.
	Logger logging.Logger
}

// Runner owns a root agent and drives one user turn per Run call: it
// resolves the session, appends the user message, executes the agent and
// streams events while persisting them. Every non-partial event is appended
// to the session before it is forwarded downstream (durable-then-visible).
// Public methods are safe for concurrent use.
type Runner struct {
	appName string
	agent   core.Agent

	eventBufferSize int

	sessionService  core.SessionService
	artifactService core.ArtifactService
	memoryService   core.MemoryService
	tracker         *InvocationTracker
	logger          logging.Logger
}

// New constructs a Runner for an application with optional overrides.
func New(appName string, agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		SessionService:  session.NewInMemoryService(),
		ArtifactService: artifact.NewInMemoryService(),
		MemoryService:   memory.NewInMemoryService(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Tracker == nil {
		opts.Tracker = NewInvocationTracker()
	}

	return &Runner{
		appName:         appName,
		agent:           agent,
		eventBufferSize: opts.EventBufferSize,
		sessionService:  opts.SessionService,
		artifactService: opts.ArtifactService,
		memoryService:   opts.MemoryService,
		tracker:         opts.Tracker,
		logger:          opts.Logger,
	}
}

// Tracker returns the invocation registry shared with transport layers.
func (r *Runner) Tracker() *InvocationTracker { return r.tracker }

// Run starts one asynchronous user turn. It registers the invocation with
// the tracker, returns the invocation id plus the event and error streams,
// and closes both streams when the turn ends. Cancel the turn through the
// tracker using the returned id.
func (r *Runner) Run(
	ctx context.Context,
	userID, sessionID string,
	message core.Content,
	config core.RunConfig,
) (string, <-chan core.Event, <-chan error, error) {
	invocationID, token := r.tracker.Register()
	eventsCh, errorsCh, err := r.start(ctx, userID, sessionID, message, config, invocationID, token)
	if err != nil {
		r.tracker.Complete(invocationID)
		return "", nil, nil, err
	}
	return invocationID, eventsCh, errorsCh, nil
}

// RunWithCancellation is Run with a caller-supplied cancellation token,
// allowing the token to be shared with code outside the tracker. A nil token
// behaves like Run.
func (r *Runner) RunWithCancellation(
	ctx context.Context,
	userID, sessionID string,
	message core.Content,
	config core.RunConfig,
	token *core.CancelToken,
) (string, <-chan core.Event, <-chan error, error) {
	if token == nil {
		return r.Run(ctx, userID, sessionID, message, config)
	}

	invocationID := core.NewID()
	r.tracker.track(invocationID, token)

	eventsCh, errorsCh, err := r.start(ctx, userID, sessionID, message, config, invocationID, token)
	if err != nil {
		r.tracker.Complete(invocationID)
		return "", nil, nil, err
	}
	return invocationID, eventsCh, errorsCh, nil
}

func (r *Runner) start(
	ctx context.Context,
	userID, sessionID string,
	message core.Content,
	config core.RunConfig,
	invocationID string,
	token *core.CancelToken,
) (<-chan core.Event, <-chan error, error) {
	sess, err := r.resolveSession(userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	sessionID = sess.ID

	// The user message is durable before any agent output exists.
	userEvent := core.NewUserContentEvent(invocationID, message)
	if err := r.sessionService.AppendEvent(sessionID, userEvent); err != nil {
		return nil, nil, &core.SessionUnavailableError{SessionID: sessionID, Err: err}
	}
	sess.AddEvent(userEvent)

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, r.eventBufferSize)

	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-token.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	rc := core.NewRunContext(
		runCtx,
		r.appName,
		userID,
		sessionID,
		invocationID,
		core.AgentInfo{Name: r.agent.Name(), Type: agentType(r.agent)},
		message,
		config,
		agentEmit,
		sess,
		r.sessionService,
		r.artifactService,
		r.memoryService,
		r.logger,
	)
	rc.DurableAck = true

	go func() {
		defer close(agentEmit)

		err := r.agent.Run(rc)
		if err == nil || errors.Is(err, context.Canceled) {
			// Cancellation is a recognized outcome, not a stream error; the
			// driving loop reports it through the synthetic terminal event.
			return
		}
		select {
		case <-runCtx.Done():
		case errorsCh <- fmt.Errorf("agent execution failed: %w", err):
		}
	}()

	go func() {
		defer func() {
			cancel()
			close(eventsCh)
			close(errorsCh)
		}()

		r.processEvents(invocationID, sessionID, token, agentEmit, eventsCh, errorsCh)
	}()

	return eventsCh, errorsCh, nil
}

// resolveSession loads an existing session or creates it on first contact.
func (r *Runner) resolveSession(userID, sessionID string) (*core.Session, error) {
	sess, err := r.sessionService.Get(r.appName, userID, sessionID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, core.ErrSessionNotFound) {
		return nil, &core.SessionUnavailableError{SessionID: sessionID, Err: err}
	}

	sess, err = r.sessionService.Create(r.appName, userID, sessionID)
	if err != nil {
		return nil, &core.SessionUnavailableError{SessionID: sessionID, Err: err}
	}

	return sess, nil
}

// processEvents is the driving loop: it consumes agent output, persists every
// non-partial event before forwarding it, acknowledges the event's emitter
// once both have happened, and converts token cancellation into one synthetic
// terminal event. Acknowledgements ride on the events themselves, so every
// concurrently emitting branch is released exactly when its own event is
// durable; none can starve another.
func (r *Runner) processEvents(
	invocationID, sessionID string,
	token *core.CancelToken,
	agentEmit <-chan core.Event,
	eventsCh chan<- core.Event,
	errorsCh chan<- error,
) {
	for {
		// Checked before every receive so a cancelled invocation stops
		// consuming the agent's stream even when agentEmit stays ready.
		if token.Cancelled() {
			r.emitCancellation(invocationID, sessionID, eventsCh)
			return
		}
		select {
		case <-token.Done():
			r.emitCancellation(invocationID, sessionID, eventsCh)
			return
		case ev, ok := <-agentEmit:
			if !ok {
				if token.Cancelled() {
					r.emitCancellation(invocationID, sessionID, eventsCh)
					return
				}
				// Completed covers error outcomes too: the status enum has no
				// failed state, so transport callers must consult the error
				// channel to distinguish success from an agent failure.
				r.tracker.markFinished(invocationID, StatusCompleted)
				return
			}
			if !ev.Partial {
				if err := r.sessionService.AppendEvent(sessionID, ev); err != nil {
					select {
					case errorsCh <- &core.SessionUnavailableError{SessionID: sessionID, Err: err}:
					default:
					}
					// The tracker has no failed state; the turn ended, so it
					// reports completed and the error channel carries the cause.
					r.tracker.markFinished(invocationID, StatusCompleted)
					return
				}
			}
			select {
			case eventsCh <- ev:
				r.logger.Debug("runner delivered event", "event_id", ev.ID, "session_id", sessionID)
			case <-token.Done():
				r.emitCancellation(invocationID, sessionID, eventsCh)
				return
			}
			// Durable and visible; release the waiting emitter.
			if !ev.Partial {
				ev.Acknowledge()
			}
		}
	}
}

// emitCancellation persists and forwards the single synthetic event closing a
// cancelled invocation. In-flight model/tool calls are not aborted; the agent
// observes the derived context's cancellation at its next suspension point.
func (r *Runner) emitCancellation(invocationID, sessionID string, eventsCh chan<- core.Event) {
	ev := newCancellationEvent(invocationID)
	if err := r.sessionService.AppendEvent(sessionID, ev); err != nil {
		r.logger.Warn("failed to persist cancellation event", "session_id", sessionID, "error", err)
	}
	select {
	case eventsCh <- ev:
	default:
		r.logger.Warn("cancellation event dropped, stream buffer full", "invocation_id", invocationID)
	}
	r.tracker.markFinished(invocationID, StatusCancelled)
}

// newCancellationEvent builds the terminal event a cancelled invocation ends
// with. It carries no content; the error code is the machine-readable signal.
func newCancellationEvent(invocationID string) core.Event {
	ev := core.NewEvent(invocationID, "system")
	ev.TurnComplete = true
	ev.Interrupted = true
	ev.ErrorCode = "CANCELLED"
	ev.ErrorMessage = "invocation cancelled"
	return ev
}

// agentType categorizes an agent for AgentInfo without importing the agent
// package.
func agentType(a core.Agent) string {
	if typed, ok := a.(interface{ Type() string }); ok {
		return typed.Type()
	}
	return "agent"
}
