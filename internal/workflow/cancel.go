package workflow

import (
	"go.temporal.io/sdk/workflow"

	"loanflow/internal/domain"
)

// cancelRegistry maps pre-allocated task identities to the cancel scopes
// of their branch coroutines. It implements the workflow's cancellation
// primitive: fire-and-forget, delivered at most once per identity, and a
// no-op for unknown or already-finished tasks.
//
// The registry is confined to a single workflow instance and is only
// touched from workflow coroutines, which never run in parallel, so no
// locking is needed.
type cancelRegistry struct {
	scopes    map[domain.TaskIdentity]workflow.CancelFunc
	requested map[domain.TaskIdentity]bool
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{
		scopes:    make(map[domain.TaskIdentity]workflow.CancelFunc),
		requested: make(map[domain.TaskIdentity]bool),
	}
}

// register binds a task identity to its branch cancel scope. A request
// that arrived before registration is delivered immediately.
func (r *cancelRegistry) register(id domain.TaskIdentity, cancel workflow.CancelFunc) {
	if r.requested[id] {
		cancel()
		return
	}
	r.scopes[id] = cancel
}

// complete marks a task as finished; later cancellation requests for it
// become no-ops.
func (r *cancelRegistry) complete(id domain.TaskIdentity) {
	delete(r.scopes, id)
}

// requestCancel asks for forceful termination of the identified task if
// it is still pending or running. Errors do not exist in this model:
// unknown identities and finished tasks are swallowed, and repeated
// requests for the same identity are delivered at most once.
func (r *cancelRegistry) requestCancel(id domain.TaskIdentity) {
	if r.requested[id] {
		return
	}
	r.requested[id] = true

	if cancel, ok := r.scopes[id]; ok {
		cancel()
	}
}

// requestCancelAll delivers a best-effort cancellation request to every
// listed sibling.
func (r *cancelRegistry) requestCancelAll(ids []domain.TaskIdentity) {
	for _, id := range ids {
		r.requestCancel(id)
	}
}
