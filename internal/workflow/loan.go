package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"loanflow/internal/clients"
	"loanflow/internal/domain"
	"loanflow/internal/evaluation"
	"loanflow/pkg/audit"
)

// TaskQueue is the Temporal task queue shared by the worker and the
// workflow scheduler.
const TaskQueue = "LOAN_EVALUATION_TASK_QUEUE"

// Activity names resolved at execution time. Keeping them as constants
// decouples the workflow from the activity structs and lets tests
// register fakes under the same names.
const (
	activityEvaluateCredit   = "EvaluateCredit"
	activityEvaluateProperty = "EvaluateProperty"
	activityDecideLoan       = "DecideLoan"
	activityNotifyStatus     = "NotifyStatus"
	activityPersistStatus    = "PersistStatus"
	activityEmitAudit        = "EmitAuditRecord"
)

// evaluateMaxAttempts bounds evaluator calls at the initial attempt plus
// three retries; the fourth consecutive transport failure is terminal.
const evaluateMaxAttempts = 4

// Audit tags per evaluation service.
const (
	creditService    = "credit-check-app"
	creditEndpoint   = "evaluate_credit"
	propertyService  = "property-check-app"
	propertyEndpoint = "evaluate_property"
	decisionService  = "decision-app"
	decisionEndpoint = "loan_decision"
)

// Routes carries the per-deployment evaluator endpoints and retry
// countdowns into the workflow. URLs travel with the workflow input, as
// the branch tasks are parameterized by evaluator endpoint rather than
// bound to one at worker start.
type Routes struct {
	CreditCheckURL   string `json:"credit_check_url"`
	PropertyCheckURL string `json:"property_check_url"`

	// Fixed delay before each retry of the respective evaluator call.
	CreditCountdown   time.Duration `json:"credit_countdown"`
	PropertyCountdown time.Duration `json:"property_countdown"`
	DecisionCountdown time.Duration `json:"decision_countdown"`

	// CallTimeout is the start-to-close timeout of every leaf activity.
	CallTimeout time.Duration `json:"call_timeout"`
}

const (
	defaultCountdown   = 10 * time.Second
	defaultCallTimeout = 30 * time.Second
)

func (r Routes) withDefaults() Routes {
	if r.CreditCountdown <= 0 {
		r.CreditCountdown = defaultCountdown
	}
	if r.PropertyCountdown <= 0 {
		r.PropertyCountdown = defaultCountdown
	}
	if r.DecisionCountdown <= 0 {
		r.DecisionCountdown = defaultCountdown
	}
	if r.CallTimeout <= 0 {
		r.CallTimeout = defaultCallTimeout
	}
	return r
}

// Input is the workflow argument: the inbound application event plus the
// evaluator routing.
type Input struct {
	Event  domain.ApplicationEvent `json:"event"`
	Routes Routes                  `json:"routes"`
}

// branchIdentities holds the pre-allocated task identities of the two
// evaluation branches. Generated once via side effect so replay sees the
// same tokens.
type branchIdentities struct {
	Credit   domain.TaskIdentity `json:"credit"`
	Property domain.TaskIdentity `json:"property"`
}

// LoanEvaluationWorkflow evaluates one loan application: credit and
// property branches run in parallel with mutual best-effort cancellation
// on early rejection, then the decision task converges both outputs. It
// returns a WorkflowResult for diagnostics; the user-visible effects are
// the notification, persistence and audit side effects driven by the
// branch and decision tasks.
func LoanEvaluationWorkflow(ctx workflow.Context, input Input) (*domain.WorkflowResult, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "loan-evaluation.v", workflow.DefaultVersion, currentVersion)

	if err := input.Event.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError("invalid application event", "Validation", err)
	}
	routes := input.Routes.withDefaults()

	logger := workflow.GetLogger(ctx)
	logger.Info("loan evaluation started", "loan_id", input.Event.LoanID, "user_id", input.Event.UserID)

	// Identity capture: the loan/user pair rides along the parallel
	// group so the decision task can address the user directly.
	identity := input.Event.Identity()

	var ids branchIdentities
	err := workflow.SideEffect(ctx, func(workflow.Context) any {
		return branchIdentities{
			Credit:   domain.TaskIdentity(uuid.NewString()),
			Property: domain.TaskIdentity(uuid.NewString()),
		}
	}).Get(&ids)
	if err != nil {
		return nil, fmt.Errorf("allocate task identities: %w", err)
	}

	reg := newCancelRegistry()

	creditParams := branchParams{
		evaluateActivity: activityEvaluateCredit,
		service:          creditService,
		endpoint:         creditEndpoint,
		branch:           branchCredit,
		input: evaluation.EvaluateBranchInput{
			URL:         routes.CreditCheckURL,
			CreditEntry: &input.Event.CreditCheckEntry,
		},
		countdown:   routes.CreditCountdown,
		callTimeout: routes.CallTimeout,
		identity:    identity,
		siblings:    []domain.TaskIdentity{ids.Property},
	}
	propertyParams := branchParams{
		evaluateActivity: activityEvaluateProperty,
		service:          propertyService,
		endpoint:         propertyEndpoint,
		branch:           branchProperty,
		input: evaluation.EvaluateBranchInput{
			URL:           routes.PropertyCheckURL,
			PropertyEntry: &input.Event.PropertyCheck,
		},
		countdown:   routes.PropertyCountdown,
		callTimeout: routes.CallTimeout,
		identity:    identity,
		siblings:    []domain.TaskIdentity{ids.Credit},
	}

	var (
		creditOutcome, propertyOutcome domain.BranchOutcome
		creditErr, propertyErr         error
		pending                        = 2
	)

	// The two branches have no ordering guarantee relative to each
	// other; either may settle, retry, or cancel its sibling first.
	// Each cancel scope derives from the child coroutine's own context:
	// the branch blocks on futures from that scope, and blocking on a
	// context owned by another coroutine is a determinism violation the
	// SDK rejects.
	workflow.Go(ctx, func(gctx workflow.Context) {
		defer func() {
			reg.complete(ids.Credit)
			pending--
		}()
		branchCtx, cancel := workflow.WithCancel(gctx)
		reg.register(ids.Credit, cancel)
		creditOutcome, creditErr = runBranch(branchCtx, reg, creditParams)
	})
	workflow.Go(ctx, func(gctx workflow.Context) {
		defer func() {
			reg.complete(ids.Property)
			pending--
		}()
		branchCtx, cancel := workflow.WithCancel(gctx)
		reg.register(ids.Property, cancel)
		propertyOutcome, propertyErr = runBranch(branchCtx, reg, propertyParams)
	})

	// Fan-in barrier: the decision task must not start until both
	// branches reached a terminal state. This is the only hard ordering
	// guarantee in the workflow.
	if err := workflow.Await(ctx, func() bool { return pending == 0 }); err != nil {
		return nil, err
	}

	result := &domain.WorkflowResult{
		LoanIdentity: identity,
		Credit:       creditOutcome,
		Property:     propertyOutcome,
		FinalStatus:  domain.StatusPending,
	}

	if creditErr != nil {
		return nil, creditErr
	}
	if propertyErr != nil {
		return nil, propertyErr
	}

	if !creditOutcome.Usable() || !propertyOutcome.Usable() {
		// A branch was cancelled before producing a scoring payload. The
		// sibling that triggered the cancellation already notified the
		// user and persisted the terminal state, so the workflow ends
		// here without a decision task.
		if creditOutcome.Kind == domain.OutcomeDenied || propertyOutcome.Kind == domain.OutcomeDenied {
			result.FinalStatus = domain.StatusDenied
		}
		logger.Info("loan evaluation settled without decision",
			"loan_id", identity.LoanID,
			"credit", creditOutcome.Kind,
			"property", propertyOutcome.Kind)
		return result, nil
	}

	final, err := runDecision(ctx, decisionParams{
		countdown:   routes.DecisionCountdown,
		callTimeout: routes.CallTimeout,
		identity:    identity,
		credit:      creditOutcome,
		property:    propertyOutcome,
	})
	if err != nil {
		return nil, err
	}

	result.FinalStatus = final
	logger.Info("loan evaluation finished", "loan_id", identity.LoanID, "final_status", final)
	return result, nil
}

// evaluateOptions configures the evaluator call: fixed-interval retries
// bounded at the initial attempt plus three, applied to transport
// failures only (validation rejections come back as results, and other
// activity errors are marked non-retryable at the source).
func evaluateOptions(countdown, callTimeout time.Duration) workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: callTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    countdown,
			BackoffCoefficient: 1.0,
			MaximumAttempts:    evaluateMaxAttempts,
		},
	}
}

// singleAttemptOptions configures the once-only side effect activities:
// notification, persistence and audit emission are never retried.
func singleAttemptOptions(callTimeout time.Duration) workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: callTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
}

// emitAudit appends one audit record through the emission activity.
// When the branch context is already cancelled the record is emitted on
// a disconnected context so cleanup survives cancellation. Failures are
// logged and swallowed.
func emitAudit(ctx workflow.Context, callTimeout time.Duration, record audit.Record) {
	if ctx.Err() != nil {
		ctx, _ = workflow.NewDisconnectedContext(ctx)
	}
	actx := workflow.WithActivityOptions(ctx, singleAttemptOptions(callTimeout))
	if err := workflow.ExecuteActivity(actx, activityEmitAudit, record).Get(actx, nil); err != nil {
		workflow.GetLogger(ctx).Error("audit emission failed",
			"service", record.Service, "error", err)
	}
}

// auditMetadata builds the correlation metadata attached to every record.
func auditMetadata(identity domain.LoanIdentity, status domain.LoanStatus) map[string]string {
	return map[string]string{
		"loan_id": identity.LoanID,
		"user_id": identity.UserID,
		"status":  string(status),
	}
}

// decisionParams carries the converge step configuration.
type decisionParams struct {
	countdown   time.Duration
	callTimeout time.Duration
	identity    domain.LoanIdentity
	credit      domain.BranchOutcome
	property    domain.BranchOutcome
}

// runDecision executes the decision task: submit both branch payloads to
// the decision evaluator, notify the user with the final status, persist
// the complete state including the repayment schedule when present, and
// append the decision audit record. Both branches have already settled
// by construction, so there is no cancellation step.
func runDecision(ctx workflow.Context, p decisionParams) (domain.LoanStatus, error) {
	logger := workflow.GetLogger(ctx)
	start := workflow.Now(ctx)

	evalCtx := workflow.WithActivityOptions(ctx, evaluateOptions(p.countdown, p.callTimeout))
	var result clients.DecisionResult
	err := workflow.ExecuteActivity(evalCtx, activityDecideLoan, domain.DecisionEntry{
		CreditCheckResponse:   p.credit.Payload,
		PropertyCheckResponse: p.property.Payload,
	}).Get(evalCtx, &result)
	if err != nil {
		emitAudit(ctx, p.callTimeout, audit.Record{
			Service:   decisionService,
			Endpoint:  decisionEndpoint,
			Method:    "POST",
			Message:   err.Error(),
			StartTime: start,
			EndTime:   workflow.Now(ctx),
			Metadata:  auditMetadata(p.identity, domain.StatusPending),
		})
		return domain.StatusPending, err
	}

	onceCtx := workflow.WithActivityOptions(ctx, singleAttemptOptions(p.callTimeout))

	if result.Rejected {
		update := domain.StatusUpdate{
			LoanID:  p.identity.LoanID,
			UserID:  p.identity.UserID,
			Status:  domain.StatusCancelled,
			Finish:  true,
			Message: result.Message,
		}
		if err := workflow.ExecuteActivity(onceCtx, activityNotifyStatus, update).Get(onceCtx, nil); err != nil {
			logger.Error("decision rejection notification failed", "loan_id", p.identity.LoanID, "error", err)
		}
		if err := workflow.ExecuteActivity(onceCtx, activityPersistStatus, update).Get(onceCtx, nil); err != nil {
			logger.Error("decision rejection persistence failed", "loan_id", p.identity.LoanID, "error", err)
		}
		emitAudit(ctx, p.callTimeout, audit.Record{
			Service:    decisionService,
			Endpoint:   decisionEndpoint,
			Method:     "POST",
			StatusCode: result.StatusCode,
			Message:    result.Message,
			StartTime:  start,
			EndTime:    workflow.Now(ctx),
			Metadata:   auditMetadata(p.identity, domain.StatusCancelled),
		})
		return domain.StatusPending, temporal.NewNonRetryableApplicationError(
			"decision rejected: "+result.Message, "ValidationRejection", nil)
	}

	update := domain.StatusUpdate{
		LoanID:                p.identity.LoanID,
		UserID:                p.identity.UserID,
		Status:                result.Status,
		Finish:                true,
		Message:               result.Message,
		CreditCheckResponse:   p.credit.Payload,
		PropertyCheckResponse: p.property.Payload,
		RepaymentSchedule:     result.RepaymentSchedule,
	}
	if err := workflow.ExecuteActivity(onceCtx, activityNotifyStatus, update).Get(onceCtx, nil); err != nil {
		logger.Error("final notification failed", "loan_id", p.identity.LoanID, "error", err)
	}
	if err := workflow.ExecuteActivity(onceCtx, activityPersistStatus, update).Get(onceCtx, nil); err != nil {
		logger.Error("final persistence failed", "loan_id", p.identity.LoanID, "error", err)
	}

	emitAudit(ctx, p.callTimeout, audit.Record{
		Service:    decisionService,
		Endpoint:   decisionEndpoint,
		Method:     "POST",
		StatusCode: result.StatusCode,
		Message:    result.Message,
		StartTime:  start,
		EndTime:    workflow.Now(ctx),
		Metadata:   auditMetadata(p.identity, result.Status),
	})

	return result.Status, nil
}
