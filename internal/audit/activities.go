package audit

import (
	"context"

	pkgactivity "loanflow/pkg/activity"
	"loanflow/pkg/audit"
)

// Activities exposes audit emission as a Temporal activity.
type Activities struct {
	base pkgactivity.BaseActivities
}

// NewActivities creates an Activities instance with the shared base
// infrastructure.
func NewActivities(base pkgactivity.BaseActivities) *Activities {
	return &Activities{base: base}
}

// EmitAuditRecord appends one audit record to the log stream.
// Emission is best-effort: failures are logged locally and never
// returned, so an audit outage cannot affect a task's outcome.
func (a *Activities) EmitAuditRecord(ctx context.Context, record audit.Record) error {
	a.base.EmitAuditSafe(ctx, record.Finalized())
	return nil
}
