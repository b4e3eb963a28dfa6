package hubwire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Error type constants classifying every failure the runtime can surface.
const (
	// ErrorTypeConfig marks fatal construction-time problems such as a
	// malformed base URL or an unparseable signing key.
	ErrorTypeConfig = "Config"
	// ErrorTypeTransport marks connection-level failures, propagated
	// verbatim and never retried by this runtime.
	ErrorTypeTransport = "Transport"
	// ErrorTypeAuth marks JWT signing failures and token-endpoint
	// rejections. A failed refresh-retry replaces the original
	// unauthorized error with one of these.
	ErrorTypeAuth = "Auth"
	// ErrorTypeUpstream marks non-success, non-not-modified responses,
	// carrying the decoded API error as the cause.
	ErrorTypeUpstream = "Upstream"
	// ErrorTypeBody marks request body construction or replay failures.
	ErrorTypeBody = "Body"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrBodyConsumed is returned when a streaming body is read twice.
	ErrBodyConsumed = errors.New("hubwire: streaming body already consumed")
)

// ClientError is the structured error type returned by the client.
type ClientError struct {
	Type       string
	Message    string
	Cause      error
	RequestID  string
	Method     string
	URL        string
	StatusCode int
	Timestamp  time.Time
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// APIError is the upstream error payload as returned by the API.
type APIError struct {
	Message          string            `json:"message"`
	DocumentationURL string            `json:"documentation_url"`
	Errors           []json.RawMessage `json:"errors,omitempty"`
	StatusCode       int               `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream responded %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream responded %d", e.StatusCode)
}
