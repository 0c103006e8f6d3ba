package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
)

func TestNewLoopAgent_Defaults(t *testing.T) {
	child := newTestChildAgent("Body", nil)
	l := NewLoopAgent("Loop", child)

	assert.Equal(t, "Loop", l.Name())
	assert.Equal(t, 0, l.maxIterations) // unbounded by default
	assert.True(t, l.stopOnError)
	assert.Equal(t, l.Name(), child.Parent().Name())
}

func TestLoopAgent_Run_MaxIterations(t *testing.T) {
	var runs atomic.Int32
	body := newTestChildAgent("Body", func(rc *core.RunContext) error {
		runs.Add(1)
		return emitText(rc, "Body", "iteration")
	})

	l := NewLoopAgent("Loop", body, WithMaxIterations(3))
	emit := make(chan core.Event, 10)

	require.NoError(t, l.Run(makeRunCtx(context.Background(), emit)))

	// Exactly 3 concatenations of the body's stream.
	assert.Equal(t, []string{"iteration", "iteration", "iteration"}, texts(drain(emit)))
	assert.Equal(t, int32(3), runs.Load())
}

func TestLoopAgent_Run_EscalateEarlyExit(t *testing.T) {
	var runs atomic.Int32
	body := newTestChildAgent("Body", func(rc *core.RunContext) error {
		iteration := runs.Add(1)
		if iteration == 2 {
			content := core.NewModelContent("stopping")
			return rc.EmitEvent(CreateEscalationEvent("", "Body", &content))
		}
		return emitText(rc, "Body", "working")
	})

	l := NewLoopAgent("Loop", body, WithMaxIterations(5))
	emit := make(chan core.Event, 10)

	// Escalation terminates the loop successfully.
	require.NoError(t, l.Run(makeRunCtx(context.Background(), emit)))

	events := drain(emit)
	require.Len(t, events, 2)
	assert.False(t, events[0].Actions.Escalate)
	// The escalating event itself is forwarded before the loop stops.
	assert.True(t, events[1].Actions.Escalate)
	assert.Equal(t, "stopping", events[1].Content.Text())

	// No third iteration starts.
	assert.Equal(t, int32(2), runs.Load())
}

func TestLoopAgent_Run_UnboundedUntilEscalation(t *testing.T) {
	var runs atomic.Int32
	body := newTestChildAgent("Body", func(rc *core.RunContext) error {
		if runs.Add(1) == 4 {
			return rc.EmitEvent(CreateEscalationEvent("", "Body", nil))
		}
		return emitText(rc, "Body", "tick")
	})

	l := NewLoopAgent("Loop", body) // maxIterations 0 = unbounded
	emit := make(chan core.Event, 10)

	require.NoError(t, l.Run(makeRunCtx(context.Background(), emit)))
	assert.Equal(t, int32(4), runs.Load())
}

func TestLoopAgent_Run_ChildErrorFailFast(t *testing.T) {
	sentinel := errors.New("boom")
	var runs atomic.Int32
	body := newTestChildAgent("Body", func(rc *core.RunContext) error {
		if runs.Add(1) == 2 {
			return sentinel
		}
		return emitText(rc, "Body", "ok")
	})

	l := NewLoopAgent("Loop", body, WithMaxIterations(5))
	err := l.Run(makeRunCtx(context.Background(), make(chan core.Event, 10)))

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)

	var childErr *core.CompositeChildError
	require.ErrorAs(t, err, &childErr)
	assert.Equal(t, "Loop", childErr.Composite)
	assert.Equal(t, "Body", childErr.Child)

	assert.Equal(t, int32(2), runs.Load())
}

func TestLoopAgent_Run_ContinueOnChildError(t *testing.T) {
	sentinel := errors.New("boom")
	var runs atomic.Int32
	body := newTestChildAgent("Body", func(*core.RunContext) error {
		runs.Add(1)
		return sentinel
	})

	l := NewLoopAgent("Loop", body, WithMaxIterations(3), WithContinueOnChildError())

	require.NoError(t, l.Run(makeRunCtx(context.Background(), make(chan core.Event, 10))))
	assert.Equal(t, int32(3), runs.Load())
}

func TestLoopAgent_Run_CancelledContext(t *testing.T) {
	body := newTestChildAgent("Body", nil)
	l := NewLoopAgent("Loop", body)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Run(makeRunCtx(ctx, make(chan core.Event, 1)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, body.receivedCtx)
}

func TestLoopAgent_Run_ForwardsStateDeltas(t *testing.T) {
	var runs atomic.Int32
	body := newTestChildAgent("Body", func(rc *core.RunContext) error {
		rc.SetState("count", int(runs.Add(1)))
		return emitText(rc, "Body", "tick")
	})

	l := NewLoopAgent("Loop", body, WithMaxIterations(3))
	emit := make(chan core.Event, 10)

	require.NoError(t, l.Run(makeRunCtx(context.Background(), emit)))

	// Each iteration's delta rides on its forwarded event, so a persisting
	// Runner accumulates state across iterations.
	events := drain(emit)
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Actions.StateDelta["count"])
	}
}

func TestCreateEscalationEvent(t *testing.T) {
	content := core.NewModelContent("done")
	ev := CreateEscalationEvent("inv-1", "Body", &content)

	assert.True(t, ev.Actions.Escalate)
	assert.Equal(t, "Body", ev.Author)
	assert.Equal(t, "inv-1", ev.InvocationID)
	assert.Equal(t, "done", ev.Content.Text())
}
