package coordinator

import (
	"errors"
	"fmt"
)

// CancelReason says why an operation was cancelled.
type CancelReason string

const (
	ReasonPreempted CancelReason = "preempted"
	ReasonTimeout   CancelReason = "timeout"
	ReasonShutdown  CancelReason = "shutdown"
)

// CancellationError rejects an operation that was superseded, timed out or
// shut down. It is distinct from a network failure: callers must not treat it
// as a remote error and must not retry it.
type CancellationError struct {
	Key    string
	Reason CancelReason
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("operation for %q cancelled: %s", e.Key, e.Reason)
}

// IsRetryable marks cancellations as never worth retrying.
func (e *CancellationError) IsRetryable() bool { return false }

// IsCancellation reports whether err is a coordinator cancellation.
func IsCancellation(err error) bool {
	var ce *CancellationError
	return errors.As(err, &ce)
}
