package agent

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/agentflow/core"
)

// errEscalated signals internally that the child requested loop termination.
var errEscalated = errors.New("child agent escalated")

// LoopAgent coordinates the repeated execution of a single child agent.
//
// The child runs up to MaxIterations times against the shared RunContext so
// state accumulates across iterations. A child event carrying Escalate=true
// terminates the loop early: the escalation event is still forwarded, the
// current iteration is cancelled, and the loop returns success.
//
// MaxIterations of zero means unbounded; such a loop relies on escalation or
// cancellation to terminate.
type LoopAgent struct {
	BaseAgent
	child         core.Agent    // Child agent to execute repeatedly
	maxIterations int           // Maximum number of iterations (0 = unbounded)
	interval      time.Duration // Time delay between iterations
	stopOnError   bool          // Whether to stop execution on child agent errors
}

// LoopOption defines a configuration function for customizing LoopAgent behavior.
type LoopOption func(*LoopAgent)

// WithMaxIterations sets the maximum number of iterations for the loop.
// Zero removes the bound.
func WithMaxIterations(n int) LoopOption {
	return func(l *LoopAgent) { l.maxIterations = n }
}

// WithInterval sets the time delay between loop iterations.
//
// This is useful for rate limiting, polling scenarios, or giving
// external systems time to process between iterations. Set to 0
// for no delay between iterations.
func WithInterval(d time.Duration) LoopOption {
	return func(l *LoopAgent) { l.interval = d }
}

// WithContinueOnChildError keeps iterating when the child fails instead of
// returning the error.
func WithContinueOnChildError() LoopOption {
	return func(l *LoopAgent) { l.stopOnError = false }
}

// NewLoopAgent constructs a looping coordinator around a child agent.
// Defaults: unbounded iterations, no interval, stop on first error.
func NewLoopAgent(name string, child core.Agent, opts ...LoopOption) *LoopAgent {
	la := &LoopAgent{
		BaseAgent:   NewBaseAgent(name),
		child:       child,
		stopOnError: true,
	}

	for _, o := range opts {
		o(la)
	}

	_ = la.SetSubAgents(child)

	return la
}

// Run implements core.Agent performing iterative execution with escalation
// detection. It returns early (nil error) on escalation events.
func (l *LoopAgent) Run(rc *core.RunContext) error {
	for i := 0; l.maxIterations == 0 || i < l.maxIterations; i++ {
		select {
		case <-rc.Done():
			return rc.Err()
		default:
		}

		rc.LogDebug("loop.iteration.start", "agent", l.Name(), "iteration", i+1)

		childErr := l.runChildWithEscalationMonitoring(rc)

		// Escalation is not an error, just early termination.
		if errors.Is(childErr, errEscalated) {
			rc.LogDebug("loop.escalated", "agent", l.Name(), "iteration", i+1)
			return nil
		}

		if childErr != nil {
			if l.stopOnError {
				return &core.CompositeChildError{Composite: l.Name(), Child: l.child.Name(), Err: childErr}
			}
			rc.LogWarn("loop.iteration.failed", "agent", l.Name(), "iteration", i+1, "error", childErr.Error())
		}

		// Apply interval delay between iterations
		if l.interval > 0 && (l.maxIterations == 0 || i < l.maxIterations-1) {
			select {
			case <-rc.Done():
				return rc.Err()
			case <-time.After(l.interval):
			}
		}
	}

	rc.LogDebug("loop.complete", "agent", l.Name(), "iterations", l.maxIterations)

	return nil
}

// runChildWithEscalationMonitoring wraps child execution routing its emitted
// events through an intercept channel to inspect for escalation flags before
// forwarding to the parent context. On escalation the current iteration is
// cancelled and remaining child output is drained.
func (l *LoopAgent) runChildWithEscalationMonitoring(rc *core.RunContext) error {
	childCtx, cancel := context.WithCancel(rc.Context)
	defer cancel()

	interceptChan := make(chan core.Event, 10)

	childRC := rc.NewChildContext(interceptChan, rc.Branch)
	childRC.Context = childCtx

	done := make(chan error, 1)

	go func() {
		defer close(interceptChan)
		done <- l.child.Run(childRC)
	}()

	for {
		select {
		case event, ok := <-interceptChan:
			if !ok {
				// Child closed the channel, wait for completion
				return <-done
			}

			// Forward the event (escalation events included) to the parent.
			// The event keeps the ack it was emitted with, so the child's
			// WaitForResume is released by the Runner once the event is
			// persisted, never earlier.
			if err := rc.EmitEvent(event); err != nil {
				cancel()
				<-done
				return err
			}

			if event.Actions.Escalate {
				// Stop the current iteration and drain whatever is in flight
				cancel()
				for range interceptChan {
				}
				<-done
				return errEscalated
			}

		case <-rc.Done():
			cancel()
			for range interceptChan {
			}
			<-done
			return rc.Err()
		}
	}
}

// CreateEscalationEvent is a helper for constructing an escalation signal
// event. Agents or tools can emit it to request that an enclosing LoopAgent
// stop iterating.
func CreateEscalationEvent(invocationID, author string, content *core.Content) core.Event {
	ev := core.NewEvent(invocationID, author)
	ev.Actions.Escalate = true
	ev.Content = content
	return ev
}
