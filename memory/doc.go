// Package memory provides MemoryService implementations for long-lived
// cross-session recall: free-text entries a user stores once and searches
// later from any conversation.
package memory
