package memory

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentflow/core"
)

// ErrNotFound is returned when a memory id does not exist for a session.
var ErrNotFound = errors.New("memory not found")

// storedMemory is a single retained entry.
type storedMemory struct {
	id        string
	content   string
	metadata  map[string]any
	createdAt time.Time
}

// InMemoryService is a volatile MemoryService using case-insensitive
// substring matching for Search. Entries are scoped per session id.
type InMemoryService struct {
	mu       sync.RWMutex
	memories map[string][]storedMemory
}

// NewInMemoryService constructs an empty in-memory memory service.
func NewInMemoryService() *InMemoryService {
	return &InMemoryService{memories: make(map[string][]storedMemory)}
}

// Store retains content with optional metadata for later recall.
func (s *InMemoryService) Store(sessionID, content string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := make(map[string]any, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	s.memories[sessionID] = append(s.memories[sessionID], storedMemory{
		id:        core.NewID(),
		content:   content,
		metadata:  meta,
		createdAt: time.Now(),
	})

	return nil
}

// Search returns entries whose content contains query, newest first, limited
// to limit results (limit <= 0 means no limit). Matching is a naive
// case-insensitive substring test; every hit scores 1.0.
func (s *InMemoryService) Search(sessionID, query string, limit int) ([]core.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	entries := s.memories[sessionID]

	// Entries are appended in insertion order; walk backwards for newest first.
	var results []core.SearchResult
	for i := len(entries) - 1; i >= 0; i-- {
		m := entries[i]
		if needle != "" && !strings.Contains(strings.ToLower(m.content), needle) {
			continue
		}
		meta := make(map[string]any, len(m.metadata))
		for k, v := range m.metadata {
			meta[k] = v
		}
		results = append(results, core.SearchResult{
			ID:       m.id,
			Content:  m.content,
			Score:    1.0,
			Metadata: meta,
		})
		if limit > 0 && len(results) == limit {
			break
		}
	}

	return results, nil
}

// Delete removes the entry with the given id, or returns ErrNotFound.
func (s *InMemoryService) Delete(sessionID, memoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.memories[sessionID]
	for i, m := range entries {
		if m.id == memoryID {
			s.memories[sessionID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}

	return ErrNotFound
}
