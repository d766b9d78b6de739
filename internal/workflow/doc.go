// Package workflow implements the Temporal workflow that evaluates a
// loan application.
//
// One workflow instance runs per inbound application event. It fans out
// into two parallel evaluation branches (credit and property), each a
// coroutine driving leaf activities: call the evaluator, notify the
// user, cancel the sibling branch on an early rejection, persist the
// terminal state, and append an audit record. A fan-in barrier waits for
// both branches to settle before the decision task converges their
// outputs through the decision evaluator.
//
// The two branches have no ordering guarantee relative to each other;
// the design optimizes for fast-fail over determinism. Cross-branch
// cancellation goes through a per-workflow registry of cancel scopes
// keyed by pre-allocated task identities, delivered at most once per
// sibling and a no-op for unknown or finished tasks. Retries are owned
// by activity retry policies with a fixed countdown interval; only
// transport failures are retried.
//
// Workflow code must stay deterministic: wall-clock reads use
// workflow.Now, task identities come from a side effect, and all
// external I/O is delegated to activities.
package workflow
