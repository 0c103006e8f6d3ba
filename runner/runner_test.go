package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/session"
)

// scriptedAgent is a minimal concrete agent whose behavior is supplied by the
// test case.
type scriptedAgent struct {
	agent.BaseAgent
	runFn func(rc *core.RunContext) error
}

func newScriptedAgent(name string, runFn func(rc *core.RunContext) error) *scriptedAgent {
	if runFn == nil {
		runFn = func(*core.RunContext) error { return nil }
	}
	return &scriptedAgent{BaseAgent: agent.NewBaseAgent(name), runFn: runFn}
}

func (s *scriptedAgent) Run(rc *core.RunContext) error { return s.runFn(rc) }

func collect(t *testing.T, eventsCh <-chan core.Event) []core.Event {
	t.Helper()
	var events []core.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-eventsCh:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out draining event stream")
		}
	}
}

func TestRunner_DurableThenVisible(t *testing.T) {
	sessions := session.NewInMemoryService()
	a := newScriptedAgent("Echo", func(rc *core.RunContext) error {
		for _, msg := range []string{"first", "second"} {
			ev := core.NewModelMessageEvent("", rc.Agent.Name, msg)
			ev.TurnComplete = true
			if err := rc.EmitEvent(ev); err != nil {
				return err
			}
			if err := rc.WaitForResume(); err != nil {
				return err
			}
		}
		return nil
	})

	r := New("app", a, func(o *Options) { o.SessionService = sessions })

	invocationID, eventsCh, errorsCh, err := r.Run(context.Background(), "user-1", "sess-1", core.NewUserContent("hi"), core.DefaultRunConfig())
	require.NoError(t, err)
	require.NotEmpty(t, invocationID)

	events := collect(t, eventsCh)
	require.Len(t, events, 2)
	assert.Equal(t, "Echo", events[0].Author)
	assert.Equal(t, invocationID, events[0].InvocationID)
	require.NoError(t, <-errorsCh)

	// Persisted log: user message first, then both agent events in order.
	sess, err := sessions.Get("app", "user-1", "sess-1")
	require.NoError(t, err)
	require.Len(t, sess.Events, 3)
	assert.Equal(t, "user", sess.Events[0].Author)
	assert.Equal(t, "first", sess.Events[1].Content.Parts[0].(core.TextPart).Text)
	assert.Equal(t, "second", sess.Events[2].Content.Parts[0].(core.TextPart).Text)
}

func TestRunner_PartialEventsForwardedNotPersisted(t *testing.T) {
	sessions := session.NewInMemoryService()
	a := newScriptedAgent("Streamer", func(rc *core.RunContext) error {
		chunk := core.NewModelMessageEvent("", rc.Agent.Name, "par")
		chunk.Partial = true
		if err := rc.EmitEvent(chunk); err != nil {
			return err
		}

		final := core.NewModelMessageEvent("", rc.Agent.Name, "partial done")
		final.TurnComplete = true
		if err := rc.EmitEvent(final); err != nil {
			return err
		}
		return rc.WaitForResume()
	})

	r := New("app", a, func(o *Options) { o.SessionService = sessions })

	_, eventsCh, errorsCh, err := r.Run(context.Background(), "user-1", "sess-1", core.NewUserContent("go"), core.DefaultRunConfig())
	require.NoError(t, err)

	events := collect(t, eventsCh)
	require.Len(t, events, 2)
	assert.True(t, events[0].Partial)
	assert.False(t, events[1].Partial)
	require.NoError(t, <-errorsCh)

	sess, err := sessions.Get("app", "user-1", "sess-1")
	require.NoError(t, err)
	require.Len(t, sess.Events, 2) // user message + final only
	assert.False(t, sess.Events[1].Partial)
}

func TestRunner_CreatesSessionOnFirstTurn(t *testing.T) {
	sessions := session.NewInMemoryService()
	r := New("app", newScriptedAgent("Noop", nil), func(o *Options) { o.SessionService = sessions })

	_, eventsCh, errorsCh, err := r.Run(context.Background(), "user-1", "fresh", core.NewUserContent("hello"), core.DefaultRunConfig())
	require.NoError(t, err)
	collect(t, eventsCh)
	require.NoError(t, <-errorsCh)

	sess, err := sessions.Get("app", "user-1", "fresh")
	require.NoError(t, err)
	require.Len(t, sess.Events, 1)
	assert.Equal(t, "user", sess.Events[0].Author)
}

func TestRunner_StateDeltaPersisted(t *testing.T) {
	sessions := session.NewInMemoryService()
	a := newScriptedAgent("Stateful", func(rc *core.RunContext) error {
		rc.SetState("counter", 1)
		ev := core.NewModelMessageEvent("", rc.Agent.Name, "done")
		ev.TurnComplete = true
		if err := rc.EmitEvent(ev); err != nil {
			return err
		}
		return rc.WaitForResume()
	})

	r := New("app", a, func(o *Options) { o.SessionService = sessions })

	_, eventsCh, errorsCh, err := r.Run(context.Background(), "user-1", "sess-1", core.NewUserContent("inc"), core.DefaultRunConfig())
	require.NoError(t, err)
	events := collect(t, eventsCh)
	require.NoError(t, <-errorsCh)

	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Actions.StateDelta["counter"])

	sess, err := sessions.Get("app", "user-1", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.State["counter"])
}

func TestRunner_AgentErrorSurfaced(t *testing.T) {
	sentinel := errors.New("boom")
	r := New("app", newScriptedAgent("Faulty", func(*core.RunContext) error { return sentinel }))

	invocationID, eventsCh, errorsCh, err := r.Run(context.Background(), "user-1", "sess-1", core.NewUserContent("hi"), core.DefaultRunConfig())
	require.NoError(t, err)

	collect(t, eventsCh)
	err = <-errorsCh
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)

	// The status enum has no failed state; an errored turn still reads as
	// completed and the error channel carries the cause.
	assert.Equal(t, StatusCompleted, r.Tracker().Status(invocationID))
}

func TestRunner_SessionServiceFailureFatal(t *testing.T) {
	svc := &failingSessionService{err: errors.New("db down")}
	r := New("app", newScriptedAgent("Noop", nil), func(o *Options) { o.SessionService = svc })

	_, _, _, err := r.Run(context.Background(), "user-1", "sess-1", core.NewUserContent("hi"), core.DefaultRunConfig())
	require.Error(t, err)

	var sessErr *core.SessionUnavailableError
	assert.ErrorAs(t, err, &sessErr)
}

func TestRunner_CancellationEmitsSingleTerminalEvent(t *testing.T) {
	started := make(chan struct{})
	a := newScriptedAgent("Chatty", func(rc *core.RunContext) error {
		for i := 0; ; i++ {
			ev := core.NewModelMessageEvent("", rc.Agent.Name, "tick")
			ev.TurnComplete = true
			if err := rc.EmitEvent(ev); err != nil {
				return err
			}
			if i == 0 {
				close(started)
			}
			if err := rc.WaitForResume(); err != nil {
				return err
			}
		}
	})

	r := New("app", a)

	invocationID, eventsCh, errorsCh, err := r.Run(context.Background(), "user-1", "sess-1", core.NewUserContent("talk"), core.DefaultRunConfig())
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("agent never emitted")
	}

	require.True(t, r.Tracker().Cancel(invocationID))

	events := collect(t, eventsCh)
	require.NotEmpty(t, events)

	terminal := events[len(events)-1]
	assert.Equal(t, "system", terminal.Author)
	assert.Equal(t, "CANCELLED", terminal.ErrorCode)
	assert.True(t, terminal.TurnComplete)
	assert.True(t, terminal.Interrupted)

	// Exactly one cancellation event, and nothing after it.
	for _, ev := range events[:len(events)-1] {
		assert.Empty(t, ev.ErrorCode)
	}

	// The agent's context cancellation is not a stream error.
	require.NoError(t, <-errorsCh)

	assert.Equal(t, StatusCancelled, r.Tracker().Status(invocationID))
}

func TestRunner_RunWithCancellation_ExternalToken(t *testing.T) {
	token := core.NewCancelToken()
	a := newScriptedAgent("Chatty", func(rc *core.RunContext) error {
		for {
			ev := core.NewModelMessageEvent("", rc.Agent.Name, "tick")
			ev.TurnComplete = true
			if err := rc.EmitEvent(ev); err != nil {
				return err
			}
			if err := rc.WaitForResume(); err != nil {
				return err
			}
		}
	})

	r := New("app", a)

	invocationID, eventsCh, errorsCh, err := r.RunWithCancellation(context.Background(), "user-1", "sess-1", core.NewUserContent("talk"), core.DefaultRunConfig(), token)
	require.NoError(t, err)

	token.Cancel()

	events := collect(t, eventsCh)
	require.NotEmpty(t, events)
	assert.Equal(t, "CANCELLED", events[len(events)-1].ErrorCode)
	require.NoError(t, <-errorsCh)

	assert.Equal(t, StatusCancelled, r.Tracker().Status(invocationID))
}

func TestRunner_ParallelChildrenResumeIndependently(t *testing.T) {
	sessions := session.NewInMemoryService()

	// Both children emit, pause long enough for the runner to process both
	// events, then block on resume. Each must be released by its own event's
	// persistence; a shared resume signal would leave one waiting forever.
	makeChild := func(name string) *scriptedAgent {
		return newScriptedAgent(name, func(rc *core.RunContext) error {
			for _, msg := range []string{"one", "two"} {
				ev := core.NewModelMessageEvent("", name, msg)
				ev.TurnComplete = true
				if err := rc.EmitEvent(ev); err != nil {
					return err
				}
				time.Sleep(100 * time.Millisecond)
				if err := rc.WaitForResume(); err != nil {
					return err
				}
			}
			return nil
		})
	}

	root := agent.NewParallelAgent("FanOut", []core.Agent{makeChild("Left"), makeChild("Right")})
	r := New("app", root, func(o *Options) { o.SessionService = sessions })

	invocationID, eventsCh, errorsCh, err := r.Run(context.Background(), "user-1", "sess-1", core.NewUserContent("go"), core.DefaultRunConfig())
	require.NoError(t, err)

	events := collect(t, eventsCh)
	require.NoError(t, <-errorsCh)

	assert.Len(t, events, 4)
	assert.Equal(t, StatusCompleted, r.Tracker().Status(invocationID))

	sess, err := sessions.Get("app", "user-1", "sess-1")
	require.NoError(t, err)
	assert.Len(t, sess.Events, 5) // user message + two events per child
}

func TestRunner_LoopChildResumesAfterPersistence(t *testing.T) {
	sessions := session.NewInMemoryService()

	// The child checks, at the moment WaitForResume releases it, that the
	// event it just emitted through the loop's intercept channel has already
	// been appended to the session.
	var persistedAtWake []bool
	child := newScriptedAgent("Body", func(rc *core.RunContext) error {
		ev := core.NewModelMessageEvent("", "Body", "tick")
		ev.TurnComplete = true
		if err := rc.EmitEvent(ev); err != nil {
			return err
		}
		if err := rc.WaitForResume(); err != nil {
			return err
		}

		sess, err := sessions.Get("app", "user-1", "sess-1")
		if err != nil {
			return err
		}
		found := false
		for _, logged := range sess.GetEvents() {
			if logged.ID == ev.ID {
				found = true
			}
		}
		persistedAtWake = append(persistedAtWake, found)
		return nil
	})

	root := agent.NewLoopAgent("Poller", child, agent.WithMaxIterations(2))
	r := New("app", root, func(o *Options) { o.SessionService = sessions })

	_, eventsCh, errorsCh, err := r.Run(context.Background(), "user-1", "sess-1", core.NewUserContent("poll"), core.DefaultRunConfig())
	require.NoError(t, err)

	events := collect(t, eventsCh)
	require.NoError(t, <-errorsCh)

	require.Len(t, events, 2)
	require.Len(t, persistedAtWake, 2)
	assert.Equal(t, []bool{true, true}, persistedAtWake)
}

func TestRunner_TrackerLifecycle(t *testing.T) {
	r := New("app", newScriptedAgent("Noop", nil))

	invocationID, eventsCh, errorsCh, err := r.Run(context.Background(), "user-1", "sess-1", core.NewUserContent("hi"), core.DefaultRunConfig())
	require.NoError(t, err)

	collect(t, eventsCh)
	require.NoError(t, <-errorsCh)

	assert.Equal(t, StatusCompleted, r.Tracker().Status(invocationID))

	r.Tracker().Complete(invocationID)
	assert.Equal(t, StatusNotFound, r.Tracker().Status(invocationID))
	assert.False(t, r.Tracker().Cancel(invocationID))
}

// failingSessionService always errors, exercising the fatal path.
type failingSessionService struct{ err error }

func (f *failingSessionService) Create(appName, userID, sessionID string) (*core.Session, error) {
	return nil, f.err
}

func (f *failingSessionService) Get(appName, userID, sessionID string) (*core.Session, error) {
	return nil, f.err
}

func (f *failingSessionService) AppendEvent(sessionID string, ev core.Event) error {
	return f.err
}
