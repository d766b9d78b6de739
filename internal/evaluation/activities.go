// Package evaluation implements the Temporal activities that call the
// remote scoring services: the per-branch credit and property evaluators
// and the converged decision evaluator. Activities issue exactly one HTTP
// call each; transport failures surface as retryable errors consumed by
// the workflow's retry policy, while received HTTP responses (validation
// rejections included) are returned as results so retries cover exactly
// the transport failure class.
package evaluation

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"

	"loanflow/internal/clients"
	"loanflow/internal/domain"
	pkgactivity "loanflow/pkg/activity"
)

// TransportErrorType tags retryable activity errors caused by network
// failures. The workflow's retry policy retries this type only.
const TransportErrorType = "TransportError"

// EvaluateBranchInput parameterizes one branch evaluation call.
// URL selects the evaluator endpoint; exactly one of the two entries is
// set, matching the branch being evaluated.
type EvaluateBranchInput struct {
	URL           string                     `json:"url"`
	CreditEntry   *domain.CreditCheckEntry   `json:"credit_entry,omitempty"`
	PropertyEntry *domain.PropertyCheckEntry `json:"property_entry,omitempty"`
}

// Activities provides the evaluator-facing activity functions with
// injected service clients.
type Activities struct {
	base      pkgactivity.BaseActivities
	evaluator *clients.EvaluatorClient
	decision  *clients.DecisionClient
}

// NewActivities creates an Activities instance with the provided clients.
func NewActivities(base pkgactivity.BaseActivities, evaluator *clients.EvaluatorClient, decision *clients.DecisionClient) *Activities {
	return &Activities{base: base, evaluator: evaluator, decision: decision}
}

// EvaluateCredit scores the credit branch of a loan request.
func (a *Activities) EvaluateCredit(ctx context.Context, input EvaluateBranchInput) (*clients.EvalResult, error) {
	if input.CreditEntry == nil {
		return nil, nonRetryable("EvaluateCredit", nil, "missing credit check entry")
	}
	return a.evaluate(ctx, "EvaluateCredit", input.URL, *input.CreditEntry)
}

// EvaluateProperty scores the property branch of a loan request.
func (a *Activities) EvaluateProperty(ctx context.Context, input EvaluateBranchInput) (*clients.EvalResult, error) {
	if input.PropertyEntry == nil {
		return nil, nonRetryable("EvaluateProperty", nil, "missing property check entry")
	}
	return a.evaluate(ctx, "EvaluateProperty", input.URL, *input.PropertyEntry)
}

func (a *Activities) evaluate(ctx context.Context, tag, url string, payload any) (*clients.EvalResult, error) {
	result, err := a.evaluator.Evaluate(ctx, url, payload)
	if err != nil {
		if errors.Is(err, clients.ErrTransport) {
			return nil, retryable(TransportErrorType, err, "evaluator unreachable")
		}
		return nil, nonRetryable(tag, err, "evaluator call failed")
	}

	wfCtx := a.base.GetWorkflowContext(ctx)
	pkgactivity.SafeLog(ctx, "Evaluator responded",
		"workflow_id", wfCtx.WorkflowID,
		"endpoint", url,
		"status_code", result.StatusCode,
		"status", result.Status)
	return &result, nil
}

// DecideLoan submits both branch payloads to the decision evaluator.
func (a *Activities) DecideLoan(ctx context.Context, entry domain.DecisionEntry) (*clients.DecisionResult, error) {
	result, err := a.decision.Decide(ctx, entry)
	if err != nil {
		if errors.Is(err, clients.ErrTransport) {
			return nil, retryable(TransportErrorType, err, "decision evaluator unreachable")
		}
		return nil, nonRetryable("DecideLoan", err, "decision call failed")
	}

	wfCtx := a.base.GetWorkflowContext(ctx)
	pkgactivity.SafeLog(ctx, "Decision evaluator responded",
		"workflow_id", wfCtx.WorkflowID,
		"status_code", result.StatusCode,
		"status", result.Status)
	return &result, nil
}

// retryable wraps an error as a Temporal application error eligible for
// retry under the activity's retry policy.
func retryable(tag string, cause error, msg string) error {
	return temporal.NewApplicationError(msg, tag, cause)
}

// nonRetryable wraps an error as a Temporal non-retryable application
// error for conditions no retry can fix.
func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}
