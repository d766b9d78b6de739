package domain

import (
	"encoding/json"
	"fmt"
)

// LoanIdentity is the minimal identification of a loan request, carried
// across the parallel group so the decision task can address the user
// without re-reading the inbound event.
type LoanIdentity struct {
	LoanID string `json:"loan_id" validate:"required"`
	UserID string `json:"user_id" validate:"required"`
}

// ApplicationEvent is the immutable input of one workflow instance,
// parsed from an inbound loan submission message. It is consumed once:
// the scheduler copies what it needs into the workflow input and drops
// the event.
type ApplicationEvent struct {
	LoanID           string             `json:"loan_id" validate:"required"`
	UserID           string             `json:"user_id" validate:"required"`
	CreditCheckEntry CreditCheckEntry   `json:"credit_check_entry" validate:"required"`
	PropertyCheck    PropertyCheckEntry `json:"property_check_entry" validate:"required"`
}

// Identity returns the loan/user pair of the event.
func (e ApplicationEvent) Identity() LoanIdentity {
	return LoanIdentity{LoanID: e.LoanID, UserID: e.UserID}
}

// Validate checks the event against its struct constraints.
func (e ApplicationEvent) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("invalid application event: %w", err)
	}
	return nil
}

// submissionMessage mirrors the wire shape of an inbound loan submission:
// the loan envelope plus the two branch entries.
type submissionMessage struct {
	Loan struct {
		LoanID string `json:"loan_id"`
		UserID string `json:"user_id"`
	} `json:"loan"`
	CreditCheckEntry CreditCheckEntry   `json:"credit_check_entry"`
	PropertyCheck    PropertyCheckEntry `json:"property_check_entry"`
}

// ParseApplicationEvent decodes and validates an inbound submission
// payload. Malformed or incomplete payloads yield an error; callers are
// expected to log and skip them rather than abort consumption.
func ParseApplicationEvent(payload []byte) (ApplicationEvent, error) {
	var msg submissionMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ApplicationEvent{}, fmt.Errorf("malformed loan submission: %w", err)
	}

	event := ApplicationEvent{
		LoanID:           msg.Loan.LoanID,
		UserID:           msg.Loan.UserID,
		CreditCheckEntry: msg.CreditCheckEntry,
		PropertyCheck:    msg.PropertyCheck,
	}
	if err := event.Validate(); err != nil {
		return ApplicationEvent{}, err
	}
	return event, nil
}
