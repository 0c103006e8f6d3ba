// Package session provides SessionService implementations responsible for
// durable storage of conversations: the append-only event log plus the
// accumulated key/value state derived from event state deltas.
package session
