package core

import "testing"

func TestSession_AddEventFoldsState(t *testing.T) {
	s := NewSession("app", "user", "s1")

	ev1 := NewUserMessageEvent("inv-1", "hi")
	ev1.Actions.StateDelta["a"] = 1
	s.AddEvent(ev1)

	ev2 := NewModelMessageEvent("inv-1", "agent", "hello")
	ev2.Actions.StateDelta["a"] = 2
	ev2.Actions.StateDelta["b"] = "x"
	s.AddEvent(ev2)

	if v, ok := s.GetState("a"); !ok || v.(int) != 2 {
		t.Fatalf("state should be the fold of deltas in event order: %+v", s.State)
	}
	if v, ok := s.GetState("b"); !ok || v.(string) != "x" {
		t.Fatalf("state missing key from second delta: %+v", s.State)
	}
	if len(s.Events) != 2 {
		t.Fatalf("expected append-only log of 2 events, got %d", len(s.Events))
	}
}

func TestSession_GetEventsIsCopy(t *testing.T) {
	s := NewSession("app", "user", "s2")
	s.AddEvent(NewUserMessageEvent("inv-1", "hi"))

	all := s.GetEvents()
	orig := all[0].Author
	all[0].Author = "changed"
	if s.GetEvents()[0].Author != orig {
		t.Error("events slice should be copied on read")
	}
}

func TestSession_GetConversationHistory(t *testing.T) {
	s := NewSession("app", "user", "s3")

	s.AddEvent(NewUserMessageEvent("inv-1", "question"))

	partial := NewModelMessageEvent("inv-1", "agent", "chu")
	partial.Partial = true
	s.AddEvent(partial)

	final := NewModelMessageEvent("inv-1", "agent", "chunked answer")
	final.TurnComplete = true
	s.AddEvent(final)

	control := NewEvent("inv-1", "system")
	s.AddEvent(control) // no content

	history := s.GetConversationHistory()
	if len(history) != 2 {
		t.Fatalf("expected user+final model events only, got %d: %+v", len(history), history)
	}
	if history[0].Content.Role != RoleUser || history[1].Content.Role != RoleModel {
		t.Fatalf("unexpected roles in history: %+v", history)
	}
}

func TestSession_CloneIsolation(t *testing.T) {
	s := NewSession("app", "user", "s4")
	ev := NewUserMessageEvent("inv-1", "hi")
	ev.Actions.StateDelta["k"] = "v"
	s.AddEvent(ev)

	clone := s.Clone()
	if clone == s {
		t.Fatal("Clone should return a different pointer")
	}

	clone.State["k"] = "mutated"
	clone.AddEvent(NewUserMessageEvent("inv-2", "more"))

	if v, _ := s.GetState("k"); v != "v" {
		t.Errorf("original state mutated through clone: %v", v)
	}
	if len(s.Events) != 1 {
		t.Errorf("original event log mutated through clone: %d", len(s.Events))
	}
}
