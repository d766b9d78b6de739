// Package audit provides the audit record infrastructure for the loan
// evaluation workflow. It defines the Record type appended to the audit
// log stream for every task execution and the Emitter interface that
// abstracts the stream transport.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one append-only audit entry covering a single task
// execution, from the first remote call to the end of its decision
// logic. DurationMS is always derived from the start/end pair; it is
// never supplied by callers.
type Record struct {
	// LogID uniquely identifies this record and keys the stream append.
	LogID string `json:"log_id"`

	// LogTimestamp records when the record was created.
	LogTimestamp time.Time `json:"log_timestamp"`

	// Service names the evaluation service the task called,
	// e.g. "credit-check-app" or "decision-app".
	Service string `json:"service"`

	// Endpoint is the logical operation audited, e.g. "evaluate_credit".
	Endpoint string `json:"endpoint"`

	// Method is the HTTP method of the audited call.
	Method string `json:"method"`

	// StatusCode is the HTTP status of the evaluator response, or zero
	// when no response was received.
	StatusCode int `json:"status"`

	// Message is the human-readable outcome of the task.
	Message string `json:"message"`

	// StartTime marks the beginning of the audited span.
	StartTime time.Time `json:"start_time"`

	// EndTime marks the end of the audited span.
	EndTime time.Time `json:"end_time"`

	// DurationMS is EndTime minus StartTime in milliseconds, computed by
	// NewRecord.
	DurationMS float64 `json:"duration_ms"`

	// Metadata carries request correlation fields such as loan_id,
	// user_id and the terminal status.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewRecord builds a Record with a fresh id and the duration derived
// from the span boundaries.
func NewRecord(service, endpoint, method string, statusCode int, message string, start, end time.Time, metadata map[string]string) Record {
	return Record{
		Service:    service,
		Endpoint:   endpoint,
		Method:     method,
		StatusCode: statusCode,
		Message:    message,
		StartTime:  start,
		EndTime:    end,
		Metadata:   metadata,
	}.Finalized()
}

// Finalized returns a copy with the generated fields filled in: a fresh
// LogID when none is set, the log timestamp, and the derived duration.
// Workflow code builds records without these fields to stay
// deterministic; the emitting activity finalizes them.
func (r Record) Finalized() Record {
	if r.LogID == "" {
		r.LogID = uuid.New().String()
	}
	if r.LogTimestamp.IsZero() {
		r.LogTimestamp = r.EndTime
	}
	r.DurationMS = float64(r.EndTime.Sub(r.StartTime)) / float64(time.Millisecond)
	return r
}

// Emitter appends audit records to a downstream log stream.
//
// Implementations must be failure-tolerant: records matter for
// observability, not correctness, and callers never fail their primary
// operation because an append failed.
type Emitter interface {
	// Append adds a record to the stream, keyed by its LogID.
	Append(ctx context.Context, record Record) error
}

// NoOpEmitter is a null Emitter for tests or when auditing is disabled.
type NoOpEmitter struct{}

// Append implements Emitter with no-op behavior.
func (NoOpEmitter) Append(context.Context, Record) error { return nil }

// NewNoOpEmitter creates a new no-op audit emitter.
func NewNoOpEmitter() Emitter { return NoOpEmitter{} }
