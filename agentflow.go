// Package agentflow provides a high-level façade over the runner and service
// abstractions (sessions, artifacts, memory & logging) enabling rapid
// construction of agent execution trees. Most applications interact with this
// package by:
//  1. Creating an AgentFlow via New() around a root agent (optionally
//     overriding the default in-memory services)
//  2. Driving user turns asynchronously (Run) or synchronously (RunSync)
//  3. Cancelling in-flight turns through the invocation tracker
//
// The façade delegates orchestration to runner.Runner while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply durable service
// implementations and a structured logger.
package agentflow

import (
	"context"

	"github.com/hupe1980/agentflow/artifact"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/memory"
	"github.com/hupe1980/agentflow/runner"
	"github.com/hupe1980/agentflow/session"
)

// Options configures the AgentFlow instance.
type Options struct {
	// RunConfig is the default per-turn configuration used by Run/RunSync.
	RunConfig core.RunConfig

	// EventBufferSize sets the channel buffer size for event streams. Larger
	// buffers reduce blocking but increase memory usage.
	EventBufferSize int

	// Services (default to in-memory implementations if not provided).
	SessionService  core.SessionService
	ArtifactService core.ArtifactService
	MemoryService   core.MemoryService

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// AgentFlow is the high-level façade aggregating the runner and its services.
type AgentFlow struct {
	opts   Options
	runner *runner.Runner
}

// New creates an AgentFlow around a root agent. Any unset service is
// initialized with an in-memory implementation.
func New(appName string, root core.Agent, optFns ...func(o *Options)) *AgentFlow {
	opts := Options{
		RunConfig:       core.DefaultRunConfig(),
		EventBufferSize: 100,
		SessionService:  session.NewInMemoryService(),
		ArtifactService: artifact.NewInMemoryService(),
		MemoryService:   memory.NewInMemoryService(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	r := runner.New(appName, root, func(o *runner.Options) {
		o.EventBufferSize = opts.EventBufferSize
		o.SessionService = opts.SessionService
		o.ArtifactService = opts.ArtifactService
		o.MemoryService = opts.MemoryService
		o.Logger = opts.Logger
	})

	return &AgentFlow{opts: opts, runner: r}
}

// Runner exposes the underlying runner for advanced use.
func (f *AgentFlow) Runner() *runner.Runner { return f.runner }

// Tracker returns the invocation registry for cancellation/status queries.
func (f *AgentFlow) Tracker() *runner.InvocationTracker { return f.runner.Tracker() }

// Run starts an asynchronous user turn returning event & error channels.
func (f *AgentFlow) Run(
	ctx context.Context,
	userID, sessionID string,
	message core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	return f.runner.Run(ctx, userID, sessionID, message, f.opts.RunConfig)
}

// RunSync is a synchronous helper that drains the async channels, accumulates
// events and returns the invocation id.
func (f *AgentFlow) RunSync(
	ctx context.Context,
	userID, sessionID string,
	message core.Content,
) (string, []core.Event, error) {
	invocationID, eventsCh, errorsCh, err := f.Run(ctx, userID, sessionID, message)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event
	for {
		select {
		case <-ctx.Done():
			// Context cancelled: return events collected so far.
			return invocationID, events, ctx.Err()

		case event, ok := <-eventsCh:
			if !ok {
				// Events done; surface a terminal error if one was reported.
				select {
				case err := <-errorsCh:
					return invocationID, events, err
				default:
					return invocationID, events, nil
				}
			}
			events = append(events, event)

		case err, ok := <-errorsCh:
			if !ok {
				errorsCh = nil
				continue
			}
			if err != nil {
				return invocationID, events, err
			}
		}
	}
}
