package worker

import (
	sdkworker "go.temporal.io/sdk/worker"

	internalaudit "loanflow/internal/audit"
	"loanflow/internal/evaluation"
	"loanflow/internal/status"
	"loanflow/internal/workflow"
	"loanflow/pkg/activity"
)

// RegisterAll registers the loan evaluation workflow and all activities
// with the Temporal worker. It must be called once during worker
// initialization before the worker starts; registration is not
// thread-safe.
//
// Activity instances share a BaseActivities carrying the audit emitter
// so every domain package emits records through the same channel.
func RegisterAll(w sdkworker.Worker, deps Dependencies) {
	base := activity.NewBaseActivities(deps.Emitter)

	evaluationActivities := evaluation.NewActivities(base, deps.Evaluator, deps.Decision)
	statusActivities := status.NewActivities(base, deps.Notifier, deps.Persister)
	auditActivities := internalaudit.NewActivities(base)

	w.RegisterWorkflow(workflow.LoanEvaluationWorkflow)

	w.RegisterActivity(evaluationActivities.EvaluateCredit)
	w.RegisterActivity(evaluationActivities.EvaluateProperty)
	w.RegisterActivity(evaluationActivities.DecideLoan)
	w.RegisterActivity(statusActivities.NotifyStatus)
	w.RegisterActivity(statusActivities.PersistStatus)
	w.RegisterActivity(auditActivities.EmitAuditRecord)
}
