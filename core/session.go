package core

import (
	"errors"
	"sync"
	"time"
)

// ErrSessionNotFound is returned by SessionService.Get when no session
// matches the requested identifiers.
var ErrSessionNotFound = errors.New("session not found")

// Session is the durable record of one user/app conversation: an append-only
// ordered event log plus the accumulated key/value state. State is the
// left-fold of every persisted event's StateDelta in event order. It is safe
// for concurrent access.
//
// Contract:
//   - Events are never reordered or removed
//   - AddEvent appends and merges the event's StateDelta atomically
//   - GetEvents returns a defensive copy
//   - Clone performs deep copies of maps/slices for safe divergence
type Session struct {
	ID      string         `json:"id"`
	AppName string         `json:"appName"`
	UserID  string         `json:"userId"`
	State   map[string]any `json:"state"`
	Events  []Event        `json:"events"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
	mu      sync.RWMutex
}

// NewSession creates an empty session bound to an app and user.
func NewSession(appName, userID, sessionID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:      sessionID,
		AppName: appName,
		UserID:  userID,
		State:   map[string]any{},
		Events:  []Event{},
		Created: now,
		Updated: now,
	}
}

// GetState returns the value and existence flag for a state key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.State[key]
	return v, ok
}

// AddEvent appends an event to the history and merges its StateDelta into
// the session state in one step, keeping State the fold of the event log.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
	for k, v := range ev.Actions.StateDelta {
		s.State[k] = v
	}
	s.Updated = time.Now().UTC()
}

// GetEvents returns a defensive copy of the full event log.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, len(s.Events))
	copy(events, s.Events)
	return events
}

// GetConversationHistory returns events suitable for model context: user and
// model role content only, partial streaming fragments excluded.
func (s *Session) GetConversationHistory() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Event, 0, len(s.Events))
	for _, ev := range s.Events {
		if ev.Content == nil {
			continue
		}
		if ev.Content.Role != RoleUser && ev.Content.Role != RoleModel {
			continue
		}
		if ev.Partial {
			continue
		}
		res = append(res, ev)
	}
	return res
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:      s.ID,
		AppName: s.AppName,
		UserID:  s.UserID,
		State:   make(map[string]any, len(s.State)),
		Events:  make([]Event, len(s.Events)),
		Created: s.Created,
		Updated: s.Updated,
	}
	for k, v := range s.State {
		clone.State[k] = v
	}
	copy(clone.Events, s.Events)
	return clone
}

// SessionService persists sessions and their evolving state/event history.
// Implementations must make AppendEvent atomic per session id: the append
// and the StateDelta merge happen together or not at all.
type SessionService interface {
	// Create makes a new session. An empty sessionID requests a generated id.
	Create(appName, userID, sessionID string) (*Session, error)

	// Get returns the session or ErrSessionNotFound.
	Get(appName, userID, sessionID string) (*Session, error)

	// AppendEvent atomically appends ev to the session's log and merges its
	// StateDelta into session state.
	AppendEvent(sessionID string, ev Event) error
}
