package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
)

// testChildAgent is a lightweight concrete agent used for testing composite
// agents. It captures the run context passed to Run and optionally returns an
// error.
type testChildAgent struct {
	BaseAgent
	runFn       func(*core.RunContext) error
	receivedCtx *core.RunContext
}

func newTestChildAgent(name string, runFn func(*core.RunContext) error) *testChildAgent {
	if runFn == nil {
		runFn = func(*core.RunContext) error { return nil }
	}
	return &testChildAgent{BaseAgent: NewBaseAgent(name), runFn: runFn}
}

func (t *testChildAgent) Run(rc *core.RunContext) error {
	t.receivedCtx = rc
	return t.runFn(rc)
}

// emitText pushes one text event authored by the running agent, failing the
// iteration on a cancelled context.
func emitText(rc *core.RunContext, author, text string) error {
	ev := core.NewModelMessageEvent("", author, text)
	ev.TurnComplete = true
	return rc.EmitEvent(ev)
}

func makeRunCtx(ctx context.Context, emit chan core.Event) *core.RunContext {
	return core.NewRunContext(
		ctx, "app", "user-1", "sess-1", "inv-1",
		core.AgentInfo{Name: "Root", Type: "test"},
		core.NewUserContent("hello"),
		core.DefaultRunConfig(),
		emit,
		core.NewSession("app", "user-1", "sess-1"),
		nil, nil, nil,
		logging.NoOpLogger{},
	)
}

// drain reads all buffered events after the agent returned.
func drain(emit chan core.Event) []core.Event {
	var events []core.Event
	for {
		select {
		case ev := <-emit:
			events = append(events, ev)
		case <-time.After(50 * time.Millisecond):
			return events
		}
	}
}

// texts extracts the text content of each event for compact assertions.
func texts(events []core.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		if ev.Content != nil {
			out = append(out, ev.Content.Text())
		}
	}
	return out
}

// BaseAgent hierarchy tests (focus on SetSubAgents & FindAgent behavior)
func TestBaseAgent_SetSubAgentsAndFind(t *testing.T) {
	root := newTestChildAgent("Root", nil)
	c1 := newTestChildAgent("Child1", nil)
	c2 := newTestChildAgent("Child2", nil)
	grandchild := newTestChildAgent("Grandchild", nil)

	assert.NoError(t, c1.SetSubAgents(grandchild))
	assert.NoError(t, root.SetSubAgents(c1, c2))

	subs := root.SubAgents()
	assert.Len(t, subs, 2)

	assert.NotNil(t, c1.Parent())
	assert.Equal(t, root.Name(), c1.Parent().Name())
	assert.NotNil(t, c2.Parent())

	// Depth-first search reaches nested agents.
	assert.NotNil(t, root.FindAgent("Child1"))
	found := root.FindAgent("Grandchild")
	assert.NotNil(t, found)
	assert.Equal(t, "Grandchild", found.Name())

	assert.Nil(t, root.FindAgent("Missing"))
}

func TestBaseAgent_SetSubAgents_ReassignClearsOldParents(t *testing.T) {
	root := newTestChildAgent("Root", nil)
	c1 := newTestChildAgent("Child1", nil)
	c2 := newTestChildAgent("Child2", nil)
	c3 := newTestChildAgent("Child3", nil)

	assert.NoError(t, root.SetSubAgents(c1, c2))
	assert.NoError(t, root.SetSubAgents(c3)) // reassign

	assert.Nil(t, c1.Parent())
	assert.Nil(t, c2.Parent())
	assert.Equal(t, root.Name(), c3.Parent().Name())

	assert.Nil(t, root.FindAgent("Child1"))
	assert.NotNil(t, root.FindAgent("Child3"))
}

func TestBaseAgent_Description(t *testing.T) {
	a := newTestChildAgent("Worker", nil)
	assert.Contains(t, a.Description(), "Worker")

	a.SetDescription("Processes work items")
	assert.Equal(t, "Processes work items", a.Description())
}

func TestBuildBranchPath(t *testing.T) {
	assert.Equal(t, "child", buildBranchPath("", "child"))
	assert.Equal(t, "parent", buildBranchPath("parent", ""))
	assert.Equal(t, "parent.child", buildBranchPath("parent", "child"))
}
