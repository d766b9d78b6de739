package workflow

import (
	"encoding/json"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"loanflow/internal/clients"
	"loanflow/internal/domain"
	"loanflow/internal/evaluation"
	"loanflow/pkg/audit"
)

// branchKind selects which StatusUpdate field carries the branch payload
// on persistence.
type branchKind string

const (
	branchCredit   branchKind = "credit"
	branchProperty branchKind = "property"
)

// branchParams parameterizes one evaluation branch. The state machine is
// identical for credit and property; only the evaluator activity, the
// payload shape and the audit tags differ.
type branchParams struct {
	evaluateActivity string
	service          string
	endpoint         string
	branch           branchKind
	input            evaluation.EvaluateBranchInput
	countdown        time.Duration
	callTimeout      time.Duration
	identity         domain.LoanIdentity
	siblings         []domain.TaskIdentity
}

// runBranch drives one evaluation branch to a terminal state:
//
//	evaluate → notify → (cancel siblings?) → persist → audit → settle|fail
//
// Transport failures of the evaluator call are retried by the activity's
// retry policy; once exhausted the branch fails terminally. A validation
// rejection (non-201) notifies and persists Cancelled, cancels the
// siblings and fails. A business denial settles the branch with a Denied
// outcome after cancelling the siblings. A failed notification forces
// termination regardless of the evaluation result. Exactly one audit
// record is emitted on every path, spanning the full branch execution.
//
// Cancellation from the sibling is observed either as a cancelled
// evaluator call or at the cooperative checkpoint after notification;
// either way the branch settles as Cancelled without further side
// effects, emitting its audit record on a disconnected context.
func runBranch(ctx workflow.Context, reg *cancelRegistry, p branchParams) (domain.BranchOutcome, error) {
	logger := workflow.GetLogger(ctx)
	start := workflow.Now(ctx)

	evalCtx := workflow.WithActivityOptions(ctx, evaluateOptions(p.countdown, p.callTimeout))
	var result clients.EvalResult
	err := workflow.ExecuteActivity(evalCtx, p.evaluateActivity, p.input).Get(evalCtx, &result)
	if err != nil {
		if ctx.Err() != nil || temporal.IsCanceledError(err) {
			return p.cancelled(ctx, start, "evaluation cancelled by sibling branch")
		}

		// Transport retries exhausted, or a non-retryable activity
		// failure. No response was received, so there is no status to
		// deliver; the branch surfaces a terminal task failure after
		// recording the audit trail.
		emitAudit(ctx, p.callTimeout, audit.Record{
			Service:   p.service,
			Endpoint:  p.endpoint,
			Method:    "POST",
			Message:   err.Error(),
			StartTime: start,
			EndTime:   workflow.Now(ctx),
			Metadata:  auditMetadata(p.identity, domain.StatusPending),
		})
		logger.Error("branch evaluation failed", "branch", p.branch, "error", err)
		return domain.BranchOutcome{}, err
	}

	onceCtx := workflow.WithActivityOptions(ctx, singleAttemptOptions(p.callTimeout))

	if result.Rejected {
		return p.rejected(ctx, onceCtx, reg, start, result)
	}

	// Business outcome received. A denial kills the sibling branch; a
	// failed notification is treated as unsafe-to-continue and forces
	// the same termination path.
	kill := result.Status == domain.StatusDenied

	notifyUpdate := domain.StatusUpdate{
		LoanID:  p.identity.LoanID,
		UserID:  p.identity.UserID,
		Status:  result.Status,
		Finish:  kill,
		Message: result.Message,
	}
	if err := workflow.ExecuteActivity(onceCtx, activityNotifyStatus, notifyUpdate).Get(onceCtx, nil); err != nil {
		logger.Error("branch notification failed, forcing termination",
			"branch", p.branch, "loan_id", p.identity.LoanID, "error", err)
		kill = true
	}

	// Cooperative cancellation checkpoint: if the sibling settled
	// terminally while this branch was notifying, stop here. The
	// sibling already owns the terminal persistence.
	if ctx.Err() != nil {
		return p.cancelled(ctx, start, "branch cancelled after notification")
	}

	if kill {
		reg.requestCancelAll(p.siblings)

		persistUpdate := notifyUpdate
		persistUpdate.Finish = true
		p.attachPayload(&persistUpdate, result.Payload)
		if err := workflow.ExecuteActivity(onceCtx, activityPersistStatus, persistUpdate).Get(onceCtx, nil); err != nil {
			logger.Error("branch persistence failed", "branch", p.branch, "error", err)
		}
	}

	emitAudit(ctx, p.callTimeout, audit.Record{
		Service:    p.service,
		Endpoint:   p.endpoint,
		Method:     "POST",
		StatusCode: result.StatusCode,
		Message:    result.Message,
		StartTime:  start,
		EndTime:    workflow.Now(ctx),
		Metadata:   auditMetadata(p.identity, result.Status),
	})

	outcome := domain.BranchOutcome{
		Kind:       domain.OutcomeKind(result.Status),
		StatusCode: result.StatusCode,
		Message:    result.Message,
		Payload:    result.Payload,
	}
	logger.Info("branch settled", "branch", p.branch, "outcome", outcome.Kind)
	return outcome, nil
}

// rejected handles a non-201 evaluator response: a validation rejection
// is terminal with no retry. The user is notified with a Cancelled
// status carrying the rejection detail, the siblings are cancelled, the
// Cancelled state is persisted, and the branch fails after its audit
// record is emitted.
func (p branchParams) rejected(
	ctx, onceCtx workflow.Context,
	reg *cancelRegistry,
	start time.Time,
	result clients.EvalResult,
) (domain.BranchOutcome, error) {
	logger := workflow.GetLogger(ctx)

	update := domain.StatusUpdate{
		LoanID:  p.identity.LoanID,
		UserID:  p.identity.UserID,
		Status:  domain.StatusCancelled,
		Finish:  true,
		Message: result.Message,
	}
	if err := workflow.ExecuteActivity(onceCtx, activityNotifyStatus, update).Get(onceCtx, nil); err != nil {
		logger.Error("rejection notification failed", "branch", p.branch, "error", err)
	}

	reg.requestCancelAll(p.siblings)

	if err := workflow.ExecuteActivity(onceCtx, activityPersistStatus, update).Get(onceCtx, nil); err != nil {
		logger.Error("rejection persistence failed", "branch", p.branch, "error", err)
	}

	emitAudit(ctx, p.callTimeout, audit.Record{
		Service:    p.service,
		Endpoint:   p.endpoint,
		Method:     "POST",
		StatusCode: result.StatusCode,
		Message:    result.Message,
		StartTime:  start,
		EndTime:    workflow.Now(ctx),
		Metadata:   auditMetadata(p.identity, domain.StatusCancelled),
	})

	logger.Error("branch rejected by evaluator", "branch", p.branch, "detail", result.Message)
	return domain.BranchOutcome{}, temporal.NewNonRetryableApplicationError(
		"evaluation rejected: "+result.Message, "ValidationRejection", nil)
}

// cancelled settles the branch as Cancelled after a sibling cancellation
// request won the race. Committed side effects are not rolled back; the
// audit record is still emitted, on a disconnected context.
func (p branchParams) cancelled(ctx workflow.Context, start time.Time, reason string) (domain.BranchOutcome, error) {
	emitAudit(ctx, p.callTimeout, audit.Record{
		Service:   p.service,
		Endpoint:  p.endpoint,
		Method:    "POST",
		Message:   reason,
		StartTime: start,
		EndTime:   workflow.Now(ctx),
		Metadata:  auditMetadata(p.identity, domain.StatusCancelled),
	})

	workflow.GetLogger(ctx).Info("branch cancelled", "branch", p.branch, "reason", reason)
	return domain.BranchOutcome{
		Kind:    domain.OutcomeCancelled,
		Message: reason,
	}, nil
}

// attachPayload stores the raw evaluator response in the update field
// matching this branch.
func (p branchParams) attachPayload(update *domain.StatusUpdate, payload json.RawMessage) {
	switch p.branch {
	case branchCredit:
		update.CreditCheckResponse = payload
	case branchProperty:
		update.PropertyCheckResponse = payload
	}
}
