// Package activity provides common infrastructure for all Temporal activity
// implementations. It includes base types, context extraction, safe logging,
// and best-effort audit emission shared across the domain-specific activity
// packages.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"loanflow/pkg/audit"
)

// WorkflowContext contains metadata extracted from the Temporal activity
// context. It gives activities a consistent view of the owning workflow
// execution, with fallback values for test scenarios.
type WorkflowContext struct {
	WorkflowID string
	RunID      string
	ActivityID string
}

// BaseActivities provides common infrastructure for all activity types.
// It handles audit emission, context extraction, and safe logging in a way
// that works both in Temporal activity contexts and test environments.
type BaseActivities struct {
	emitter audit.Emitter
}

// NewBaseActivities creates a BaseActivities instance with the provided audit
// emitter. The emitter can be nil for tests that do not exercise auditing.
func NewBaseActivities(emitter audit.Emitter) BaseActivities {
	return BaseActivities{emitter: emitter}
}

// GetWorkflowContext safely extracts workflow context from the activity
// context. In a Temporal activity context it returns the actual execution
// details; in test contexts (where activity.GetInfo would panic) it
// generates test IDs so activities work unchanged under unit tests.
func (b *BaseActivities) GetWorkflowContext(ctx context.Context) WorkflowContext {
	var wfCtx WorkflowContext

	func() {
		defer func() {
			if r := recover(); r != nil {
				wfCtx.WorkflowID = "test-workflow-" + uuid.New().String()[:8]
				wfCtx.RunID = "test-run-" + uuid.New().String()[:8]
				wfCtx.ActivityID = "test-activity"
			}
		}()

		info := activity.GetInfo(ctx)
		wfCtx.WorkflowID = info.WorkflowExecution.ID
		wfCtx.RunID = info.WorkflowExecution.RunID
		wfCtx.ActivityID = info.ActivityID
	}()

	return wfCtx
}

// EmitAuditSafe appends an audit record with best-effort delivery.
// Audit records matter for observability but never for correctness, so
// failures are retried briefly, logged, and swallowed; the caller's primary
// operation is unaffected.
func (b *BaseActivities) EmitAuditSafe(ctx context.Context, record audit.Record) {
	if b.emitter == nil {
		return // Testing scenario without an emitter.
	}

	const maxAttempts = 2
	const retryDelay = 200 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				SafeLogError(ctx, "Audit emission cancelled",
					"log_id", record.LogID,
					"service", record.Service)
				return
			}
		}

		if err := b.emitter.Append(ctx, record); err != nil {
			lastErr = err
			continue
		}

		SafeLog(ctx, "Audit record emitted",
			"log_id", record.LogID,
			"service", record.Service,
			"endpoint", record.Endpoint)
		return
	}

	SafeLogError(ctx, fmt.Sprintf("Failed to emit audit record after %d attempts", maxAttempts),
		"log_id", record.LogID,
		"error", lastErr)
}

// SafeLog performs context-safe logging that works in both activity and test
// contexts. In a Temporal activity context it uses the activity logger; in
// test contexts it silently ignores the call to avoid panics.
func SafeLog(ctx context.Context, msg string, keyvals ...any) {
	defer func() {
		if recover() != nil {
			// Not an activity context, ignore
		}
	}()
	activity.GetLogger(ctx).Info(msg, keyvals...)
}

// SafeLogError performs context-safe error logging, mirroring SafeLog at
// ERROR level for operational visibility of problems.
func SafeLogError(ctx context.Context, msg string, keyvals ...any) {
	defer func() {
		if recover() != nil {
			// Not an activity context, ignore
		}
	}()
	activity.GetLogger(ctx).Error(msg, keyvals...)
}
