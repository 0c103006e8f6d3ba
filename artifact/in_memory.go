package artifact

import (
	"sync"
)

// InMemoryService is a volatile ArtifactService keeping versioned blobs in a
// process local map keyed by session id and artifact name. Every Save appends
// a new version; versions are numbered from 1.
type InMemoryService struct {
	mu sync.RWMutex
	// sessionID -> name -> versions (index i holds version i+1)
	artifacts map[string]map[string][][]byte
}

// NewInMemoryService constructs an empty in-memory artifact service.
func NewInMemoryService() *InMemoryService {
	return &InMemoryService{artifacts: make(map[string]map[string][][]byte)}
}

// Save appends data as a new version of the named artifact and returns the
// assigned version number.
func (s *InMemoryService) Save(sessionID, name string, data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName, ok := s.artifacts[sessionID]
	if !ok {
		byName = make(map[string][][]byte)
		s.artifacts[sessionID] = byName
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	byName[name] = append(byName[name], buf)

	return len(byName[name]), nil
}

// Get returns the latest version of the named artifact, or ErrNotFound.
func (s *InMemoryService) Get(sessionID, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, ok := s.artifacts[sessionID][name]
	if !ok || len(versions) == 0 {
		return nil, ErrNotFound
	}

	latest := versions[len(versions)-1]
	buf := make([]byte, len(latest))
	copy(buf, latest)

	return buf, nil
}

// GetVersion returns a specific version of the named artifact, or ErrNotFound
// when either the artifact or the version does not exist.
func (s *InMemoryService) GetVersion(sessionID, name string, version int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, ok := s.artifacts[sessionID][name]
	if !ok || version < 1 || version > len(versions) {
		return nil, ErrNotFound
	}

	data := versions[version-1]
	buf := make([]byte, len(data))
	copy(buf, data)

	return buf, nil
}

// List returns the names of all artifacts stored for a session.
func (s *InMemoryService) List(sessionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byName := s.artifacts[sessionID]
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}

	return names, nil
}

// Delete removes all versions of the named artifact. Deleting an unknown
// artifact is a no-op.
func (s *InMemoryService) Delete(sessionID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if byName, ok := s.artifacts[sessionID]; ok {
		delete(byName, name)
		if len(byName) == 0 {
			delete(s.artifacts, sessionID)
		}
	}

	return nil
}
