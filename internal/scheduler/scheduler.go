// Package scheduler starts loan evaluation workflows on Temporal. It is
// the bridge between event consumption and orchestration: each accepted
// application event becomes exactly one workflow execution.
package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"

	"loanflow/internal/domain"
	"loanflow/internal/workflow"
)

// Scheduler submits loan applications as workflow executions.
type Scheduler struct {
	temporal client.Client
	routes   workflow.Routes
	logger   zerolog.Logger
}

// New creates a Scheduler submitting to the given Temporal client with
// fixed evaluator routing.
func New(temporal client.Client, routes workflow.Routes, logger zerolog.Logger) *Scheduler {
	return &Scheduler{temporal: temporal, routes: routes, logger: logger}
}

// Submit starts one loan evaluation workflow for the event. The workflow
// ID is derived from the loan ID, so re-delivered submissions of a loan
// already being evaluated are rejected by the server instead of starting
// a duplicate evaluation.
func (s *Scheduler) Submit(ctx context.Context, event domain.ApplicationEvent) (string, error) {
	opts := client.StartWorkflowOptions{
		ID:        "loan-evaluation-" + event.LoanID,
		TaskQueue: workflow.TaskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}

	run, err := s.temporal.ExecuteWorkflow(ctx, opts, workflow.LoanEvaluationWorkflow, workflow.Input{
		Event:  event,
		Routes: s.routes,
	})
	if err != nil {
		return "", fmt.Errorf("start loan evaluation for %s: %w", event.LoanID, err)
	}

	s.logger.Info().
		Str("loan_id", event.LoanID).
		Str("user_id", event.UserID).
		Str("workflow_id", run.GetID()).
		Str("run_id", run.GetRunID()).
		Msg("loan evaluation scheduled")
	return run.GetID(), nil
}
