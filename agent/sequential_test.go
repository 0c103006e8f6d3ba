package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
)

func TestNewSequentialAgent(t *testing.T) {
	child1 := newTestChildAgent("Child1", nil)
	child2 := newTestChildAgent("Child2", nil)

	agent := NewSequentialAgent("Pipeline", child1, child2)

	assert.Equal(t, "Pipeline", agent.Name())
	assert.Len(t, agent.children, 2)
	assert.Equal(t, agent.Name(), child1.Parent().Name())
}

func TestSequentialAgent_Run_Concatenation(t *testing.T) {
	mkChild := func(name string, msgs ...string) *testChildAgent {
		return newTestChildAgent(name, func(rc *core.RunContext) error {
			for _, msg := range msgs {
				if err := emitText(rc, name, msg); err != nil {
					return err
				}
			}
			return nil
		})
	}

	agent := NewSequentialAgent("Pipeline",
		mkChild("A", "a1", "a2"),
		mkChild("B", "b1", "b2"),
	)

	emit := make(chan core.Event, 10)
	rc := makeRunCtx(context.Background(), emit)

	require.NoError(t, agent.Run(rc))

	// Exact concatenation: A's full stream, then B's. No interleaving is
	// possible by construction.
	assert.Equal(t, []string{"a1", "a2", "b1", "b2"}, texts(drain(emit)))
}

func TestSequentialAgent_Run_FailFast(t *testing.T) {
	sentinel := errors.New("boom")

	first := newTestChildAgent("First", func(rc *core.RunContext) error {
		return emitText(rc, "First", "f1")
	})
	failing := newTestChildAgent("Failing", func(*core.RunContext) error { return sentinel })
	never := newTestChildAgent("Never", nil)

	agent := NewSequentialAgent("Pipeline", first, failing, never)

	emit := make(chan core.Event, 10)
	err := agent.Run(makeRunCtx(context.Background(), emit))

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)

	var childErr *core.CompositeChildError
	require.ErrorAs(t, err, &childErr)
	assert.Equal(t, "Pipeline", childErr.Composite)
	assert.Equal(t, "Failing", childErr.Child)

	// Events preceding the failure were already forwarded; the later child
	// never ran.
	assert.Equal(t, []string{"f1"}, texts(drain(emit)))
	assert.Nil(t, never.receivedCtx)
}

func TestSequentialAgent_Run_NoChildren(t *testing.T) {
	agent := NewSequentialAgent("Pipeline")
	assert.NoError(t, agent.Run(makeRunCtx(context.Background(), make(chan core.Event, 1))))
}

func TestSequentialAgent_Run_CancelledContext(t *testing.T) {
	child := newTestChildAgent("Child", nil)
	agent := NewSequentialAgent("Pipeline", child)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := agent.Run(makeRunCtx(ctx, make(chan core.Event, 1)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, child.receivedCtx)
}

func TestSequentialAgent_Run_SharesRunContext(t *testing.T) {
	c1 := newTestChildAgent("Child1", func(rc *core.RunContext) error {
		rc.SetState("from", "Child1")
		return nil
	})
	c2 := newTestChildAgent("Child2", nil)

	agent := NewSequentialAgent("Pipeline", c1, c2)
	rc := makeRunCtx(context.Background(), make(chan core.Event, 10))

	require.NoError(t, agent.Run(rc))

	// Same context instance throughout: the second child observes the
	// first one's staged state.
	assert.Same(t, rc, c1.receivedCtx)
	assert.Same(t, rc, c2.receivedCtx)
	v, ok := c2.receivedCtx.GetState("from")
	assert.True(t, ok)
	assert.Equal(t, "Child1", v)
}
