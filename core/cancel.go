package core

import "sync"

// CancelToken is a broadcast cancellation signal: many readers, one writer.
// Cancellation is cooperative; holders observe it at poll points, in-flight
// work is allowed to finish.
type CancelToken struct {
	once sync.Once
	done chan struct{}
}

// NewCancelToken returns an uncancelled token.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel signals cancellation. Safe to call multiple times.
func (t *CancelToken) Cancel() {
	t.once.Do(func() { close(t.done) })
}

// Done returns a channel closed when the token is cancelled.
func (t *CancelToken) Done() <-chan struct{} { return t.done }

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
