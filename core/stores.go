package core

// ArtifactService persists named binary artifacts scoped by session. Each
// save of an existing name produces a new version; versions feed the
// artifactDelta carried on events.
type ArtifactService interface {
	// Save stores data under name and returns the new version number
	// (1 for the first save of a name).
	Save(sessionID, name string, data []byte) (int, error)

	// Get returns the latest version of the named artifact.
	Get(sessionID, name string) ([]byte, error)

	// List returns artifact names stored for the session.
	List(sessionID string) ([]string, error)

	// Delete removes all versions of the named artifact.
	Delete(sessionID, name string) error
}

// SearchResult represents a retrieved memory item with a relevance score and
// arbitrary metadata.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}

// MemoryService defines persistence and recall for long-term conversational
// memory. Implementations can back Search with embeddings, keywords or any
// heuristic.
type MemoryService interface {
	Store(sessionID, content string, metadata map[string]any) error
	Search(sessionID, query string, limit int) ([]SearchResult, error)
	Delete(sessionID, memoryID string) error
}
