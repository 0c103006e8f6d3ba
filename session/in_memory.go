package session

import (
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// InMemoryService is a volatile SessionService implementation storing
// sessions in a process local map. It is safe for concurrent access and best
// suited for tests or ephemeral demo servers. Each returned session is cloned
// to prevent external mutation of internal state.
type InMemoryService struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryService constructs an empty in-memory session service.
func NewInMemoryService() *InMemoryService {
	return &InMemoryService{sessions: make(map[string]*core.Session)}
}

// Create makes (or overwrites) a session with the given id. An empty
// sessionID requests a generated one.
func (s *InMemoryService) Create(appName, userID, sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" {
		sessionID = core.NewID()
	}

	sess := core.NewSession(appName, userID, sessionID)
	s.sessions[sessionID] = sess

	return sess.Clone(), nil
}

// Get returns a clone of an existing session or core.ErrSessionNotFound.
// The appName/userID pair must match the stored session.
func (s *InMemoryService) Get(appName, userID, sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	if sess.AppName != appName || sess.UserID != userID {
		return nil, core.ErrSessionNotFound
	}

	return sess.Clone(), nil
}

// AppendEvent atomically appends an event to the session's log and merges its
// StateDelta into the session state.
func (s *InMemoryService) AppendEvent(sessionID string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return core.ErrSessionNotFound
	}
	sess.AddEvent(ev)

	return nil
}

// Delete removes a session if present. Deleting an unknown id is a no-op.
func (s *InMemoryService) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// List returns the ids of all stored sessions for an app/user pair.
func (s *InMemoryService) List(appName, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id, sess := range s.sessions {
		if sess.AppName == appName && sess.UserID == userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
