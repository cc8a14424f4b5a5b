package remote

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoConnectivity indicates no network path to the remote service is
// available. It short-circuits before any retry.
var ErrNoConnectivity = errors.New("no network connectivity")

// Error is the structured error every remote call rejects with.
type Error struct {
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code,omitempty"`
	Retryable  bool      `json:"retryable"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRetryable reports whether the failure is transient. Consulted by the
// retry executor's default predicate.
func (e *Error) IsRetryable() bool { return e.Retryable }

// Error codes produced by the client.
const (
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeRateLimited  = "rate_limited"
	CodeServerError  = "server_error"
	CodeTimeout      = "timeout"
	CodeBadResponse  = "bad_response"
)
