// Package runner drives one user turn end-to-end: it resolves or creates the
// session, appends the incoming user message, executes the root agent and
// streams its events to the caller, persisting every non-partial event before
// it becomes visible downstream.
//
// The package also provides the InvocationTracker, a concurrent registry of
// in-flight invocations used by transport layers for cooperative cancellation
// and status queries.
package runner
