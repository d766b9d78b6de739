// Package clients holds the leaf HTTP clients of the loan evaluation
// workflow: the evaluator and decision scoring services, the real-time
// notification gateway, and the loan persistence service. Clients issue a
// single call per invocation and classify the outcome; retry decisions
// belong to the workflow's retry policy, never to this layer.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"loanflow/internal/domain"
)

// EvalResult classifies the HTTP outcome of one evaluator call.
// Rejected marks a non-201 validation rejection; Status and Message are
// populated from the response body on success, Message from the parsed
// detail on rejection. Payload keeps the raw 201 body for downstream
// forwarding.
type EvalResult struct {
	StatusCode int               `json:"status_code"`
	Status     domain.LoanStatus `json:"status"`
	Message    string            `json:"message"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
	Rejected   bool              `json:"rejected"`
}

// EvaluatorClient issues scoring requests to an evaluation endpoint.
// The endpoint URL is a per-call parameter: the same client serves the
// credit and property branches.
type EvaluatorClient struct {
	httpClient *http.Client
}

// NewEvaluatorClient creates an evaluator client with a fixed call timeout.
func NewEvaluatorClient(timeout time.Duration) *EvaluatorClient {
	return &EvaluatorClient{httpClient: &http.Client{Timeout: timeout}}
}

// Evaluate POSTs the domain payload to url and classifies the outcome.
// A returned error always wraps ErrTransport; every received HTTP
// response, including validation rejections, yields an EvalResult.
func (c *EvaluatorClient) Evaluate(ctx context.Context, url string, payload any) (EvalResult, error) {
	statusCode, body, err := postJSON(ctx, c.httpClient, http.MethodPost, url, payload)
	if err != nil {
		return EvalResult{}, transportErr("evaluate", err)
	}

	if statusCode != http.StatusCreated {
		return EvalResult{
			StatusCode: statusCode,
			Status:     domain.StatusCancelled,
			Message:    parseDetail(body),
			Rejected:   true,
		}, nil
	}

	var resp domain.EvaluatorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return EvalResult{}, transportErr("evaluate: decode response", err)
	}

	return EvalResult{
		StatusCode: statusCode,
		Status:     resp.Status,
		Message:    resp.Message,
		Payload:    json.RawMessage(body),
	}, nil
}

// DecisionResult is the classified outcome of a decision evaluator call.
// RepaymentSchedule is present only when the decision service attached
// one, which it does exactly when both branches were approved.
type DecisionResult struct {
	StatusCode        int               `json:"status_code"`
	Status            domain.LoanStatus `json:"status"`
	Message           string            `json:"message"`
	Payload           json.RawMessage   `json:"payload,omitempty"`
	RepaymentSchedule json.RawMessage   `json:"repaymentSchedule,omitempty"`
	Rejected          bool              `json:"rejected"`
}

// DecisionClient issues the converged decision request carrying both
// branch payloads.
type DecisionClient struct {
	url        string
	httpClient *http.Client
}

// NewDecisionClient creates a decision client bound to the decision
// evaluator endpoint.
func NewDecisionClient(url string, timeout time.Duration) *DecisionClient {
	return &DecisionClient{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// Decide POSTs both branch payloads to the decision evaluator and
// classifies the outcome, mirroring EvaluatorClient.Evaluate.
func (c *DecisionClient) Decide(ctx context.Context, entry domain.DecisionEntry) (DecisionResult, error) {
	statusCode, body, err := postJSON(ctx, c.httpClient, http.MethodPost, c.url, entry)
	if err != nil {
		return DecisionResult{}, transportErr("decide", err)
	}

	if statusCode != http.StatusCreated {
		return DecisionResult{
			StatusCode: statusCode,
			Status:     domain.StatusCancelled,
			Message:    parseDetail(body),
			Rejected:   true,
		}, nil
	}

	var resp struct {
		Status            domain.LoanStatus `json:"status"`
		Message           string            `json:"message"`
		RepaymentSchedule json.RawMessage   `json:"repaymentSchedule"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return DecisionResult{}, transportErr("decide: decode response", err)
	}

	return DecisionResult{
		StatusCode:        statusCode,
		Status:            resp.Status,
		Message:           resp.Message,
		Payload:           json.RawMessage(body),
		RepaymentSchedule: resp.RepaymentSchedule,
	}, nil
}

// postJSON issues one JSON request and returns the status code and body.
// The caller owns interpretation; only building, sending, and reading
// failures are returned as errors.
func postJSON(ctx context.Context, client *http.Client, method, url string, payload any) (int, []byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(buf))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}
