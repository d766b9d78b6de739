package domain

import "encoding/json"

// TaskIdentity is the unique token of one evaluation branch, generated
// before execution starts so each branch can request cancellation of its
// sibling without a shared coordinator.
type TaskIdentity string

// OutcomeKind classifies how an evaluation branch settled.
type OutcomeKind string

const (
	// OutcomeApproved means the evaluator accepted the branch.
	OutcomeApproved OutcomeKind = "Approved"

	// OutcomeDenied means the evaluator rejected the branch on business
	// grounds; the sibling branch is cancelled best-effort.
	OutcomeDenied OutcomeKind = "Denied"

	// OutcomeCancelled means the branch was stopped before settling,
	// either by a sibling cancellation request or a validation rejection.
	OutcomeCancelled OutcomeKind = "Cancelled"
)

// BranchOutcome is the immutable result of one evaluation branch.
// Payload carries the raw evaluator response so downstream tasks can
// forward the full scoring output without reinterpreting it.
type BranchOutcome struct {
	Kind       OutcomeKind     `json:"kind"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Usable reports whether the outcome can feed the decision task.
// Cancelled branches produced no scoring payload and cannot.
func (o BranchOutcome) Usable() bool {
	return o.Kind == OutcomeApproved || o.Kind == OutcomeDenied
}

// WorkflowResult pairs both branch outcomes with the loan identity.
// It is the sole input of the decision task and is also returned from
// the workflow for diagnostics.
type WorkflowResult struct {
	LoanIdentity
	Credit   BranchOutcome `json:"credit"`
	Property BranchOutcome `json:"property"`

	// FinalStatus is the terminal status the workflow converged on,
	// recorded for tracing; Pending means no decision task ran.
	FinalStatus LoanStatus `json:"final_status"`
}
