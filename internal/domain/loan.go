// Package domain provides core types for the loan evaluation workflow.
// It defines the inbound application event, the per-branch evaluation
// payloads and outcomes, and the status update sent to the notification
// and persistence services. The types mirror the wire contracts of the
// external evaluator services and are designed to be immutable once
// produced by a task.
package domain

import (
	"encoding/json"
	"time"
)

// LoanStatus represents the lifecycle state of a loan request.
// Using typed constants instead of raw strings provides compile-time safety
// and prevents typos that could bypass downstream status handling.
type LoanStatus string

const (
	// StatusPending marks a loan request that has not reached a decision.
	StatusPending LoanStatus = "Pending"

	// StatusCancelled marks a request terminated by a validation rejection
	// or by cancellation of its evaluation branch.
	StatusCancelled LoanStatus = "Cancelled"

	// StatusApproved marks a request accepted by an evaluator.
	StatusApproved LoanStatus = "Approved"

	// StatusDenied marks a request rejected on business grounds.
	StatusDenied LoanStatus = "Denied"
)

// Terminal reports whether the status ends processing for its branch.
func (s LoanStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusApproved || s == StatusDenied
}

// Credit describes one entry of a user's credit history, forwarded
// verbatim to the credit evaluator.
type Credit struct {
	CreditType     string           `json:"credit_type"`
	StartDate      string           `json:"start_date"`
	Amount         float64          `json:"amount"`
	DurationMonths int              `json:"duration_months"`
	AnnualRate     float64          `json:"annual_rate"`
	Status         string           `json:"status"`
	PaymentHistory []PaymentHistory `json:"payment_history"`
}

// PaymentHistory records a single repayment of a historical credit.
type PaymentHistory struct {
	PaymentDate string `json:"payment_date"`
	Status      string `json:"status"`
}

// CreditCheckEntry carries the scoring fields for the credit branch.
// The evaluator derives the monthly payment, DTI and confidence score
// from these; the orchestrator treats them as an opaque payload.
type CreditCheckEntry struct {
	LoanAmount         float64  `json:"loan_amount" validate:"required,gt=0"`
	DurationMonths     int      `json:"duration_months" validate:"required,gt=0"`
	GrossMonthlyIncome float64  `json:"gross_monthly_income" validate:"min=0"`
	UserCredits        []Credit `json:"user_credits"`
	DateOfBirth        string   `json:"date_of_birth" validate:"required"`
	NumberOfDependents int      `json:"number_of_dependents" validate:"min=0"`
	WorkStatus         string   `json:"work_status" validate:"required"`
}

// PropertyCheckEntry carries the scoring fields for the property branch.
type PropertyCheckEntry struct {
	LoanAmount    float64 `json:"loan_amount" validate:"required,gt=0"`
	PropertyValue float64 `json:"property_value" validate:"required,gt=0"`
}

// EvaluatorResponse is the parsed body of a successful (201) evaluator
// call. Only status and message are interpreted by the orchestrator;
// the remaining scoring fields travel in the raw payload.
type EvaluatorResponse struct {
	Status  LoanStatus `json:"status"`
	Message string     `json:"message"`
}

// DecisionEntry is the request body for the decision evaluator. Both
// fields hold the raw branch payloads so the decision service sees the
// complete scoring output of each branch.
type DecisionEntry struct {
	CreditCheckResponse   json.RawMessage `json:"credit_check_response"`
	PropertyCheckResponse json.RawMessage `json:"property_check_response"`
}

// RepaymentEvent is a single scheduled payment of an approved loan.
type RepaymentEvent struct {
	PaymentDate string  `json:"payment_date"`
	Amount      float64 `json:"amount"`
}

// RepaymentSchedule lists the monthly payments of an approved loan.
// It is produced by the decision evaluator and forwarded untouched to
// the persistence service.
type RepaymentSchedule struct {
	StartDate      string           `json:"start_date"`
	RepaymentEvent []RepaymentEvent `json:"repaymentEvent"`
}

// NewRepaymentSchedule builds a schedule of equal monthly payments
// spaced 30 days apart, starting startOffsetDays after now.
func NewRepaymentSchedule(now time.Time, durationMonths int, monthlyPayment float64, startOffsetDays int) RepaymentSchedule {
	start := now.AddDate(0, 0, startOffsetDays)
	events := make([]RepaymentEvent, 0, durationMonths)
	for i := 0; i < durationMonths; i++ {
		events = append(events, RepaymentEvent{
			PaymentDate: start.AddDate(0, 0, 30*i).Format("2006-01-02"),
			Amount:      monthlyPayment,
		})
	}
	return RepaymentSchedule{
		StartDate:      start.Format("2006-01-02"),
		RepaymentEvent: events,
	}
}

// StatusUpdate is the payload delivered to the notification gateway and,
// with the optional evaluation payloads attached, to the system of record.
// It is attempted exactly once per terminal transition.
type StatusUpdate struct {
	LoanID  string     `json:"loan_id"`
	UserID  string     `json:"user_id"`
	Status  LoanStatus `json:"loan_status"`
	Finish  bool       `json:"finish"`
	Message string     `json:"message"`

	// Optional partial evaluation payloads, present only on persistence
	// updates that carry branch or decision output.
	CreditCheckResponse   json.RawMessage `json:"credit_check_response,omitempty"`
	PropertyCheckResponse json.RawMessage `json:"property_check_response,omitempty"`
	RepaymentSchedule     json.RawMessage `json:"repaymentSchedule,omitempty"`
}
