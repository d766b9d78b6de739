package clients

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrTransport tags network-level failures (connection errors, timeouts,
// unreadable responses). These are the only failures the workflow retries.
var ErrTransport = errors.New("transport failure")

// transportErr wraps cause so callers can match with errors.Is(err, ErrTransport).
func transportErr(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, cause)
}

// errorBody is the wire shape of a non-201 evaluator or gateway response.
// Detail is either a plain string or a list of {"msg": ...} objects.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// parseDetail extracts the human-readable message from an error body.
// It accepts both detail encodings and falls back to the raw body text
// when neither matches.
func parseDetail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return string(body)
	}

	var s string
	if err := json.Unmarshal(eb.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(eb.Detail, &items); err == nil && len(items) > 0 {
		return items[0].Msg
	}

	return string(eb.Detail)
}
