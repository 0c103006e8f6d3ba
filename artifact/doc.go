// Package artifact provides ArtifactService implementations for versioned,
// session-scoped binary artifact storage.
package artifact
