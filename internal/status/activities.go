// Package status implements the Temporal activities that deliver status
// updates: the real-time user notification push and the loan update in
// the system of record. Both are attempted exactly once per terminal
// transition; the workflow never retries them.
package status

import (
	"context"

	"loanflow/internal/clients"
	"loanflow/internal/domain"
	pkgactivity "loanflow/pkg/activity"
)

// Activities provides the status delivery activity functions with
// injected gateway clients.
type Activities struct {
	base      pkgactivity.BaseActivities
	notifier  *clients.NotificationClient
	persister *clients.PersistenceClient
}

// NewActivities creates an Activities instance with the provided clients.
func NewActivities(base pkgactivity.BaseActivities, notifier *clients.NotificationClient, persister *clients.PersistenceClient) *Activities {
	return &Activities{base: base, notifier: notifier, persister: persister}
}

// NotifyStatus pushes a status update to the notification gateway.
// Any failure, transport or a non-201 gateway response, is returned to
// the workflow, which treats an unnotifiable user as unsafe to proceed.
func (a *Activities) NotifyStatus(ctx context.Context, update domain.StatusUpdate) error {
	wfCtx := a.base.GetWorkflowContext(ctx)
	if err := a.notifier.Notify(ctx, update); err != nil {
		pkgactivity.SafeLogError(ctx, "Notification failed",
			"workflow_id", wfCtx.WorkflowID,
			"loan_id", update.LoanID,
			"status", update.Status,
			"error", err)
		return err
	}

	pkgactivity.SafeLog(ctx, "Notification sent",
		"workflow_id", wfCtx.WorkflowID,
		"loan_id", update.LoanID,
		"status", update.Status,
		"finish", update.Finish)
	return nil
}

// PersistStatus records a terminal or partial loan state in the system
// of record. Errors are returned for logging only; the workflow completes
// regardless.
func (a *Activities) PersistStatus(ctx context.Context, update domain.StatusUpdate) error {
	wfCtx := a.base.GetWorkflowContext(ctx)
	if err := a.persister.Update(ctx, update); err != nil {
		pkgactivity.SafeLogError(ctx, "Loan update failed",
			"workflow_id", wfCtx.WorkflowID,
			"loan_id", update.LoanID,
			"status", update.Status,
			"error", err)
		return err
	}

	pkgactivity.SafeLog(ctx, "Loan updated",
		"workflow_id", wfCtx.WorkflowID,
		"loan_id", update.LoanID,
		"status", update.Status)
	return nil
}
