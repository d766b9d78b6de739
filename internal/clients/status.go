package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"loanflow/internal/domain"
)

// notificationPayload is the wire shape of a notification gateway push.
// The admin password authenticates the orchestrator to the gateway.
type notificationPayload struct {
	UserID     string            `json:"user_id"`
	LoanID     string            `json:"loan_id"`
	Password   string            `json:"password"`
	LoanStatus domain.LoanStatus `json:"loan_status"`
	Finish     bool              `json:"finish"`
	Message    string            `json:"message"`
}

// NotificationClient pushes status updates to the real-time notification
// gateway. Each push is attempted exactly once; the caller decides what a
// failed notification means for the workflow.
type NotificationClient struct {
	url        string
	password   string
	httpClient *http.Client
}

// NewNotificationClient creates a notification client bound to the gateway
// endpoint, authenticating with the shared admin password.
func NewNotificationClient(url, password string, timeout time.Duration) *NotificationClient {
	return &NotificationClient{
		url:        url,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Notify POSTs the status update to the gateway. Any outcome other than
// 201 is an error, transport failures included: an unreachable gateway and
// a rejected push are equally a failed notification.
func (c *NotificationClient) Notify(ctx context.Context, update domain.StatusUpdate) error {
	payload := notificationPayload{
		UserID:     update.UserID,
		LoanID:     update.LoanID,
		Password:   c.password,
		LoanStatus: update.Status,
		Finish:     update.Finish,
		Message:    update.Message,
	}

	statusCode, body, err := postJSON(ctx, c.httpClient, http.MethodPost, c.url, payload)
	if err != nil {
		return transportErr("notify", err)
	}
	if statusCode != http.StatusCreated {
		return fmt.Errorf("notify: gateway returned %d: %s", statusCode, parseDetail(body))
	}
	return nil
}

// updatePayload is the wire shape of a loan update in the system of record.
// The optional raw payloads carry partial or final evaluation output.
type updatePayload struct {
	UserID                string            `json:"user_id"`
	LoanID                string            `json:"loan_id"`
	Password              string            `json:"password"`
	LoanStatus            domain.LoanStatus `json:"loan_status"`
	LoanMessage           string            `json:"loan_message"`
	CreditCheckResponse   json.RawMessage   `json:"credit_check_response,omitempty"`
	PropertyCheckResponse json.RawMessage   `json:"property_check_response,omitempty"`
	RepaymentSchedule     json.RawMessage   `json:"repaymentSchedule,omitempty"`
}

// PersistenceClient records terminal and partial loan states in the system
// of record. Like notifications, updates are attempted exactly once per
// terminal transition and never retried.
type PersistenceClient struct {
	url        string
	password   string
	httpClient *http.Client
}

// NewPersistenceClient creates a persistence client bound to the loan
// update endpoint.
func NewPersistenceClient(url, password string, timeout time.Duration) *PersistenceClient {
	return &PersistenceClient{
		url:        url,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Update PUTs the loan state to the system of record. Non-201 responses
// and transport failures are reported as errors; callers log them without
// blocking workflow completion.
func (c *PersistenceClient) Update(ctx context.Context, update domain.StatusUpdate) error {
	payload := updatePayload{
		UserID:                update.UserID,
		LoanID:                update.LoanID,
		Password:              c.password,
		LoanStatus:            update.Status,
		LoanMessage:           update.Message,
		CreditCheckResponse:   update.CreditCheckResponse,
		PropertyCheckResponse: update.PropertyCheckResponse,
		RepaymentSchedule:     update.RepaymentSchedule,
	}

	statusCode, body, err := postJSON(ctx, c.httpClient, http.MethodPut, c.url, payload)
	if err != nil {
		return transportErr("update loan", err)
	}
	if statusCode != http.StatusCreated {
		return fmt.Errorf("update loan: store returned %d: %s", statusCode, parseDetail(body))
	}
	return nil
}
