package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkactivity "go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"loanflow/internal/clients"
	"loanflow/internal/domain"
	"loanflow/internal/evaluation"
	"loanflow/pkg/audit"
)

// recorder captures the side effect activity calls made during one
// workflow execution. Activities run on their own goroutines in the test
// environment, so access is guarded.
type recorder struct {
	mu       sync.Mutex
	notifies []domain.StatusUpdate
	persists []domain.StatusUpdate
	audits   []audit.Record
	calls    []string
}

func (r *recorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) snapshot() ([]domain.StatusUpdate, []domain.StatusUpdate, []audit.Record, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.StatusUpdate(nil), r.notifies...),
		append([]domain.StatusUpdate(nil), r.persists...),
		append([]audit.Record(nil), r.audits...),
		append([]string(nil), r.calls...)
}

// newTestEnv builds a workflow test environment with stub registrations
// for every activity the workflow resolves by name. Evaluator and
// decision behavior is overridden per scenario via OnActivity mocks;
// the side effect activities record into rec and succeed.
func newTestEnv(rec *recorder) *testsuite.TestWorkflowEnvironment {
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(LoanEvaluationWorkflow)

	env.RegisterActivityWithOptions(
		func(ctx context.Context, input evaluation.EvaluateBranchInput) (*clients.EvalResult, error) {
			return nil, errors.New("unexpected credit evaluation call")
		},
		sdkactivity.RegisterOptions{Name: activityEvaluateCredit})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, input evaluation.EvaluateBranchInput) (*clients.EvalResult, error) {
			return nil, errors.New("unexpected property evaluation call")
		},
		sdkactivity.RegisterOptions{Name: activityEvaluateProperty})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, entry domain.DecisionEntry) (*clients.DecisionResult, error) {
			rec.record(activityDecideLoan)
			return nil, errors.New("unexpected decision call")
		},
		sdkactivity.RegisterOptions{Name: activityDecideLoan})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, update domain.StatusUpdate) error {
			rec.mu.Lock()
			rec.notifies = append(rec.notifies, update)
			rec.mu.Unlock()
			rec.record(activityNotifyStatus)
			return nil
		},
		sdkactivity.RegisterOptions{Name: activityNotifyStatus})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, update domain.StatusUpdate) error {
			rec.mu.Lock()
			rec.persists = append(rec.persists, update)
			rec.mu.Unlock()
			rec.record(activityPersistStatus)
			return nil
		},
		sdkactivity.RegisterOptions{Name: activityPersistStatus})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, record audit.Record) error {
			rec.mu.Lock()
			rec.audits = append(rec.audits, record)
			rec.mu.Unlock()
			return nil
		},
		sdkactivity.RegisterOptions{Name: activityEmitAudit})

	return env
}

func testInput() Input {
	return Input{
		Event: domain.ApplicationEvent{
			LoanID: "loan-42",
			UserID: "user-7",
			CreditCheckEntry: domain.CreditCheckEntry{
				LoanAmount:         250000,
				DurationMonths:     240,
				GrossMonthlyIncome: 6500,
				DateOfBirth:        "1988-04-12",
				WorkStatus:         "employed",
			},
			PropertyCheck: domain.PropertyCheckEntry{
				LoanAmount:    250000,
				PropertyValue: 400000,
			},
		},
		Routes: Routes{
			CreditCheckURL:   "http://credit-check/api/v1/credit-check",
			PropertyCheckURL: "http://property-check/api/v1/property-check",
		},
	}
}

func approvedResult(message string) *clients.EvalResult {
	return &clients.EvalResult{
		StatusCode: 201,
		Status:     domain.StatusApproved,
		Message:    message,
		Payload:    []byte(`{"status":"Approved","message":"` + message + `"}`),
	}
}

// blockingEvaluate parks the evaluator call until the branch is
// cancelled, simulating a slow sibling that loses the race.
func blockingEvaluate(ctx context.Context, input evaluation.EvaluateBranchInput) (*clients.EvalResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestLoanEvaluationWorkflow_BothApproved(t *testing.T) {
	rec := &recorder{}
	env := newTestEnv(rec)
	defer env.AssertExpectations(t)

	env.OnActivity(activityEvaluateCredit, mock.Anything, mock.Anything).
		Return(approvedResult("credit approved"), nil).Once()
	env.OnActivity(activityEvaluateProperty, mock.Anything, mock.Anything).
		Return(approvedResult("property approved"), nil).Once()

	schedule := []byte(`{"start_date":"2025-01-20","repaymentEvent":[{"payment_date":"2025-01-20","amount":1250.5}]}`)
	env.OnActivity(activityDecideLoan, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, entry domain.DecisionEntry) (*clients.DecisionResult, error) {
			rec.record(activityDecideLoan)
			return &clients.DecisionResult{
				StatusCode:        201,
				Status:            domain.StatusApproved,
				Message:           "loan approved",
				RepaymentSchedule: schedule,
			}, nil
		}).Once()

	env.ExecuteWorkflow(LoanEvaluationWorkflow, testInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result domain.WorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, domain.StatusApproved, result.FinalStatus)
	assert.Equal(t, domain.OutcomeApproved, result.Credit.Kind)
	assert.Equal(t, domain.OutcomeApproved, result.Property.Kind)

	notifies, persists, audits, calls := rec.snapshot()

	// Two per-branch notifications plus the terminal one.
	require.Len(t, notifies, 3)
	assert.False(t, notifies[0].Finish)
	assert.False(t, notifies[1].Finish)
	final := notifies[2]
	assert.Equal(t, domain.StatusApproved, final.Status)
	assert.True(t, final.Finish)
	assert.Equal(t, "loan approved", final.Message)

	// Only the decision persists, with both payloads and the schedule.
	require.Len(t, persists, 1)
	assert.NotEmpty(t, persists[0].CreditCheckResponse)
	assert.NotEmpty(t, persists[0].PropertyCheckResponse)
	assert.JSONEq(t, string(schedule), string(persists[0].RepaymentSchedule))

	// One audit record per task.
	require.Len(t, audits, 3)
	for _, record := range audits {
		assert.Equal(t, "loan-42", record.Metadata["loan_id"])
		assert.Equal(t, "user-7", record.Metadata["user_id"])
	}
	assert.Equal(t, decisionService, audits[2].Service)

	// The decision must start only after both branches settled.
	decisionAt := -1
	for i, call := range calls {
		if call == activityDecideLoan {
			decisionAt = i
			break
		}
	}
	require.GreaterOrEqual(t, decisionAt, 0, "decision should run")
	assert.Equal(t, 2, countCalls(calls[:decisionAt], activityNotifyStatus),
		"both branch notifications precede the decision, saw %v", calls)
}

func TestLoanEvaluationWorkflow_CreditDenied_CancelsProperty(t *testing.T) {
	rec := &recorder{}
	env := newTestEnv(rec)
	defer env.AssertExpectations(t)

	env.OnActivity(activityEvaluateCredit, mock.Anything, mock.Anything).
		Return(&clients.EvalResult{
			StatusCode: 201,
			Status:     domain.StatusDenied,
			Message:    "debt-to-income ratio too high",
			Payload:    []byte(`{"status":"Denied","message":"debt-to-income ratio too high"}`),
		}, nil).Once()
	env.OnActivity(activityEvaluateProperty, mock.Anything, mock.Anything).
		Return(blockingEvaluate).Once()

	env.ExecuteWorkflow(LoanEvaluationWorkflow, testInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result domain.WorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, domain.StatusDenied, result.FinalStatus)
	assert.Equal(t, domain.OutcomeDenied, result.Credit.Kind)
	assert.Equal(t, domain.OutcomeCancelled, result.Property.Kind)

	notifies, persists, audits, calls := rec.snapshot()

	require.Len(t, notifies, 1)
	assert.Equal(t, domain.StatusDenied, notifies[0].Status)
	assert.True(t, notifies[0].Finish)

	// The denying branch owns the terminal persistence, carrying its own
	// evaluation payload.
	require.Len(t, persists, 1)
	assert.Equal(t, domain.StatusDenied, persists[0].Status)
	assert.NotEmpty(t, persists[0].CreditCheckResponse)
	assert.Empty(t, persists[0].PropertyCheckResponse)

	// One record for the denial, one for the cancelled sibling, and no
	// decision task at all.
	require.Len(t, audits, 2)
	assert.Zero(t, countCalls(calls, activityDecideLoan), "decision must not run")
}

func TestLoanEvaluationWorkflow_ValidationRejection(t *testing.T) {
	rec := &recorder{}
	env := newTestEnv(rec)
	defer env.AssertExpectations(t)

	env.OnActivity(activityEvaluateCredit, mock.Anything, mock.Anything).
		Return(&clients.EvalResult{
			StatusCode: 422,
			Status:     domain.StatusCancelled,
			Message:    "loan_amount: amount must be greater than 0",
			Rejected:   true,
		}, nil).Once()
	env.OnActivity(activityEvaluateProperty, mock.Anything, mock.Anything).
		Return(blockingEvaluate).Once()

	env.ExecuteWorkflow(LoanEvaluationWorkflow, testInput())

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "ValidationRejection", appErr.Type())
	assert.Contains(t, appErr.Error(), "amount must be greater than 0")

	notifies, persists, audits, calls := rec.snapshot()

	// The user learns about the rejection before the workflow fails.
	require.Len(t, notifies, 1)
	assert.Equal(t, domain.StatusCancelled, notifies[0].Status)
	assert.True(t, notifies[0].Finish)
	assert.Contains(t, notifies[0].Message, "amount must be greater than 0")

	require.Len(t, persists, 1)
	assert.Equal(t, domain.StatusCancelled, persists[0].Status)

	require.Len(t, audits, 2)
	assert.Zero(t, countCalls(calls, activityDecideLoan), "decision must not run")
}

func TestLoanEvaluationWorkflow_TransportRetriesExhausted(t *testing.T) {
	rec := &recorder{}
	env := newTestEnv(rec)
	defer env.AssertExpectations(t)

	transportErr := temporal.NewApplicationError("evaluator unreachable", evaluation.TransportErrorType)
	env.OnActivity(activityEvaluateCredit, mock.Anything, mock.Anything).
		Return(nil, transportErr).Times(evaluateMaxAttempts)
	env.OnActivity(activityEvaluateProperty, mock.Anything, mock.Anything).
		Return(approvedResult("property approved"), nil).Once()

	env.ExecuteWorkflow(LoanEvaluationWorkflow, testInput())

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, evaluation.TransportErrorType, appErr.Type())

	_, persists, audits, calls := rec.snapshot()

	// The failed branch still leaves an audit trail; without a received
	// response there is no status code to report.
	var creditRecords int
	for _, record := range audits {
		if record.Service == creditService {
			creditRecords++
			assert.Zero(t, record.StatusCode)
		}
	}
	assert.Equal(t, 1, creditRecords, "exactly one audit record despite retries")

	assert.Empty(t, persists, "no terminal state was reached")
	assert.Zero(t, countCalls(calls, activityDecideLoan), "decision must not run")
}

func TestLoanEvaluationWorkflow_NotificationFailureForcesTermination(t *testing.T) {
	rec := &recorder{}
	env := newTestEnv(rec)
	defer env.AssertExpectations(t)

	env.OnActivity(activityEvaluateCredit, mock.Anything, mock.Anything).
		Return(approvedResult("credit approved"), nil).Once()
	env.OnActivity(activityEvaluateProperty, mock.Anything, mock.Anything).
		Return(blockingEvaluate).Once()
	env.OnActivity(activityNotifyStatus, mock.Anything, mock.Anything).
		Return(errors.New("notification gateway unreachable")).Once()

	env.ExecuteWorkflow(LoanEvaluationWorkflow, testInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result domain.WorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, domain.OutcomeApproved, result.Credit.Kind)
	assert.Equal(t, domain.OutcomeCancelled, result.Property.Kind)
	assert.Equal(t, domain.StatusPending, result.FinalStatus)

	_, persists, audits, calls := rec.snapshot()

	// An unnotifiable user is unsafe to continue for: the sibling is
	// cancelled and the approved branch persists its own terminal state
	// with the evaluation payload.
	require.Len(t, persists, 1)
	assert.Equal(t, domain.StatusApproved, persists[0].Status)
	assert.True(t, persists[0].Finish)
	assert.NotEmpty(t, persists[0].CreditCheckResponse)
	assert.Empty(t, persists[0].PropertyCheckResponse)

	require.Len(t, audits, 2)
	assert.Zero(t, countCalls(calls, activityDecideLoan), "decision must not run")
}

func TestLoanEvaluationWorkflow_InvalidEvent(t *testing.T) {
	rec := &recorder{}
	env := newTestEnv(rec)
	defer env.AssertExpectations(t)

	env.ExecuteWorkflow(LoanEvaluationWorkflow, Input{})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Validation", appErr.Type())
	assert.True(t, appErr.NonRetryable())
}

func TestLoanEvaluationWorkflow_DecisionRejection(t *testing.T) {
	rec := &recorder{}
	env := newTestEnv(rec)
	defer env.AssertExpectations(t)

	env.OnActivity(activityEvaluateCredit, mock.Anything, mock.Anything).
		Return(approvedResult("credit approved"), nil).Once()
	env.OnActivity(activityEvaluateProperty, mock.Anything, mock.Anything).
		Return(approvedResult("property approved"), nil).Once()
	env.OnActivity(activityDecideLoan, mock.Anything, mock.Anything).
		Return(&clients.DecisionResult{
			StatusCode: 422,
			Status:     domain.StatusCancelled,
			Message:    "credit_check_response: field required",
			Rejected:   true,
		}, nil).Once()

	env.ExecuteWorkflow(LoanEvaluationWorkflow, testInput())

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "ValidationRejection", appErr.Type())

	notifies, persists, _, _ := rec.snapshot()

	// Two branch notifications plus the terminal cancellation.
	require.Len(t, notifies, 3)
	assert.Equal(t, domain.StatusCancelled, notifies[2].Status)
	assert.True(t, notifies[2].Finish)

	require.Len(t, persists, 1)
	assert.Equal(t, domain.StatusCancelled, persists[0].Status)
}

func countCalls(calls []string, name string) int {
	var n int
	for _, call := range calls {
		if call == name {
			n++
		}
	}
	return n
}
