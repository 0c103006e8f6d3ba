package core

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/agentflow/logging"
)

func newTestRunContext(ctx context.Context, emit chan<- Event) *RunContext {
	return NewRunContext(
		ctx, "app", "user-1", "sess-1", "inv-1",
		AgentInfo{Name: "Agent", Type: "llm"},
		NewUserContent("hi"),
		DefaultRunConfig(),
		emit,
		NewSession("app", "user-1", "sess-1"),
		nil, nil, nil,
		logging.NoOpLogger{},
	)
}

func TestRunContext_StateDeltaFirst(t *testing.T) {
	rc := newTestRunContext(context.Background(), make(chan Event, 1))
	rc.Session.State["k"] = "persisted"

	if v, ok := rc.GetState("k"); !ok || v != "persisted" {
		t.Fatalf("expected persisted value, got %v", v)
	}

	rc.SetState("k", "staged")
	if v, _ := rc.GetState("k"); v != "staged" {
		t.Fatalf("staged delta should shadow session state, got %v", v)
	}
}

func TestRunContext_EmitEventFoldsAndResets(t *testing.T) {
	emit := make(chan Event, 1)
	rc := newTestRunContext(context.Background(), emit)
	rc.Branch = "root.child"
	rc.SetState("counter", 7)
	rc.ArtifactVersions["report"] = 3

	if err := rc.EmitEvent(NewEvent("", "Agent")); err != nil {
		t.Fatalf("emit: %v", err)
	}

	ev := <-emit
	if ev.InvocationID != "inv-1" {
		t.Errorf("invocation id not stamped: %+v", ev)
	}
	if ev.Branch != "root.child" {
		t.Errorf("branch not stamped: %+v", ev)
	}
	if ev.Actions.StateDelta["counter"] != 7 {
		t.Errorf("state delta not folded into event: %+v", ev.Actions)
	}
	if ev.Actions.ArtifactDelta["report"] != 3 {
		t.Errorf("artifact delta not folded into event: %+v", ev.Actions)
	}

	if len(rc.StateDelta) != 0 || len(rc.ArtifactVersions) != 0 {
		t.Errorf("staged buffers should reset after emit: %v %v", rc.StateDelta, rc.ArtifactVersions)
	}
}

func TestRunContext_EmitEventCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc := newTestRunContext(ctx, make(chan Event)) // unbuffered, would block
	if err := rc.EmitEvent(NewEvent("", "Agent")); err == nil {
		t.Fatal("expected cancellation error from EmitEvent")
	}
}

func TestRunContext_WaitForResume(t *testing.T) {
	// No pending event (or no Runner driving the turn): return immediately.
	rc := newTestRunContext(context.Background(), make(chan Event, 1))
	if err := rc.WaitForResume(); err != nil {
		t.Fatalf("no pending ack should not block: %v", err)
	}

	// Under DurableAck, WaitForResume releases once the emitted event is
	// acknowledged.
	emit := make(chan Event, 1)
	rc = newTestRunContext(context.Background(), emit)
	rc.DurableAck = true
	if err := rc.EmitEvent(NewEvent("", "Agent")); err != nil {
		t.Fatalf("emit: %v", err)
	}
	(<-emit).Acknowledge()
	if err := rc.WaitForResume(); err != nil {
		t.Fatalf("acknowledged event should release: %v", err)
	}

	// Repeat waits with nothing newly emitted return immediately.
	if err := rc.WaitForResume(); err != nil {
		t.Fatalf("second wait should be a no-op: %v", err)
	}

	// Cancellation releases a waiter whose event is never acknowledged.
	ctx, cancel := context.WithCancel(context.Background())
	rc = newTestRunContext(ctx, make(chan Event, 1))
	rc.DurableAck = true
	if err := rc.EmitEvent(NewEvent("", "Agent")); err != nil {
		t.Fatalf("emit: %v", err)
	}
	cancel()
	if err := rc.WaitForResume(); err == nil {
		t.Fatal("expected cancellation error while waiting for resume")
	}
}

func TestRunContext_AckIsPerContext(t *testing.T) {
	// Two branch contexts sharing one emit channel each wait on their own
	// event's acknowledgement, not on a shared signal.
	emit := make(chan Event, 2)
	root := newTestRunContext(context.Background(), emit)
	root.DurableAck = true

	left := root.WithBranch("root.left")
	right := root.WithBranch("root.right")

	if err := left.EmitEvent(NewEvent("", "Left")); err != nil {
		t.Fatalf("left emit: %v", err)
	}
	if err := right.EmitEvent(NewEvent("", "Right")); err != nil {
		t.Fatalf("right emit: %v", err)
	}

	leftEv, rightEv := <-emit, <-emit

	// Acknowledging one branch must not release the other.
	rightEv.Acknowledge()
	if err := right.WaitForResume(); err != nil {
		t.Fatalf("right should be released by its own ack: %v", err)
	}

	waited := make(chan error, 1)
	go func() { waited <- left.WaitForResume() }()
	select {
	case <-waited:
		t.Fatal("left released without its event being acknowledged")
	case <-time.After(50 * time.Millisecond):
	}

	leftEv.Acknowledge()
	if err := <-waited; err != nil {
		t.Fatalf("left wait: %v", err)
	}
}

func TestRunContext_CloneAndBranch(t *testing.T) {
	rc := newTestRunContext(context.Background(), make(chan Event, 1))
	rc.SetState("k", "v")

	clone := rc.WithBranch("root.worker")
	if clone.Branch != "root.worker" {
		t.Fatalf("branch not applied: %q", clone.Branch)
	}
	if rc.Branch != "" {
		t.Fatalf("original branch mutated: %q", rc.Branch)
	}

	// Clone copies the staged delta but diverges afterwards.
	if v, _ := clone.GetState("k"); v != "v" {
		t.Fatalf("clone should carry staged delta: %v", v)
	}
	clone.SetState("k2", "w")
	if _, ok := rc.StateDelta["k2"]; ok {
		t.Fatal("clone delta leaked into original")
	}
}

func TestRunContext_NewChildContext(t *testing.T) {
	rc := newTestRunContext(context.Background(), make(chan Event, 1))
	rc.Branch = "root"
	rc.SetState("k", "v")

	childEmit := make(chan Event, 1)
	child := rc.NewChildContext(childEmit, "root.loop")

	if child.Branch != "root.loop" {
		t.Fatalf("child branch not set: %q", child.Branch)
	}
	if len(child.StateDelta) != 0 {
		t.Fatalf("child should start with fresh delta buffers: %v", child.StateDelta)
	}

	// Child emits into the replacement channel, not the parent's.
	if err := child.EmitEvent(NewEvent("", "Child")); err != nil {
		t.Fatalf("child emit: %v", err)
	}
	select {
	case <-childEmit:
	default:
		t.Fatal("child event not delivered to intercept channel")
	}

	// Inherited branch when none supplied.
	inherit := rc.NewChildContext(childEmit, "")
	if inherit.Branch != "root" {
		t.Fatalf("expected inherited branch, got %q", inherit.Branch)
	}
}
