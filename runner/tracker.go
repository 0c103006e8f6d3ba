package runner

import (
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// InvocationStatus is the lifecycle state of a tracked invocation.
type InvocationStatus string

const (
	// StatusActive marks an invocation whose stream is still running.
	StatusActive InvocationStatus = "active"
	// StatusCompleted marks an invocation whose stream ended normally.
	StatusCompleted InvocationStatus = "completed"
	// StatusCancelled marks an invocation that was cancelled.
	StatusCancelled InvocationStatus = "cancelled"
	// StatusNotFound marks an unknown or already removed invocation id.
	StatusNotFound InvocationStatus = "not_found"
)

type trackedInvocation struct {
	token  *core.CancelToken
	status InvocationStatus
}

// InvocationTracker is a concurrent registry mapping invocation id to its
// cancellation token and status. It is explicitly constructed and owned by
// the composition root (typically next to the Runner) rather than being a
// process-wide singleton, so tests can instantiate one per case. All methods
// are safe for concurrent use from multiple transport connections.
type InvocationTracker struct {
	mu          sync.RWMutex
	invocations map[string]*trackedInvocation
}

// NewInvocationTracker constructs an empty tracker.
func NewInvocationTracker() *InvocationTracker {
	return &InvocationTracker{invocations: make(map[string]*trackedInvocation)}
}

// Register creates a new invocation id with a fresh cancellation token and
// tracks it as active.
func (t *InvocationTracker) Register() (string, *core.CancelToken) {
	id := core.NewID()
	token := core.NewCancelToken()
	t.track(id, token)
	return id, token
}

// track adopts an externally created token under the given id.
func (t *InvocationTracker) track(id string, token *core.CancelToken) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.invocations[id] = &trackedInvocation{token: token, status: StatusActive}
}

// Cancel requests cancellation of an active invocation. It is idempotent and
// returns false when the id is unknown or the invocation already finished.
func (t *InvocationTracker) Cancel(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	inv, ok := t.invocations[id]
	if !ok || inv.status != StatusActive {
		return false
	}

	inv.token.Cancel()
	inv.status = StatusCancelled

	return true
}

// Status reports the lifecycle state of an invocation. Completed invocations
// that were removed via Complete report StatusNotFound.
func (t *InvocationTracker) Status(id string) InvocationStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	inv, ok := t.invocations[id]
	if !ok {
		return StatusNotFound
	}

	return inv.status
}

// Complete removes the invocation from the registry. Subsequent Status calls
// report StatusNotFound; subsequent Cancel calls return false.
func (t *InvocationTracker) Complete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.invocations, id)
}

// markFinished records a terminal status without removing the entry, keeping
// it queryable until the owner calls Complete.
func (t *InvocationTracker) markFinished(id string, status InvocationStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if inv, ok := t.invocations[id]; ok && inv.status == StatusActive {
		inv.status = status
	}
}
