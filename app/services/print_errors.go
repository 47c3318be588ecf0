package services

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the print pipeline
var (
	// ErrTransportUnavailable means a strategy's preconditions are not met
	ErrTransportUnavailable = errors.New("transport unavailable")
	// ErrJobAbandoned means a queued job exhausted its delivery attempts
	ErrJobAbandoned = errors.New("print job abandoned after max attempts")
	// ErrJobNotFound means the requested queue entry does not exist
	ErrJobNotFound = errors.New("print job not found")
)

// FormattingError means the order data could not be turned into a receipt.
// Unlike transport failures this aborts the whole print request.
type FormattingError struct {
	Reason string
}

func (e *FormattingError) Error() string {
	return fmt.Sprintf("could not format receipt: %s", e.Reason)
}

// TimeoutError records which transport timed out and after how long
type TimeoutError struct {
	Transport string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not respond within %s", e.Transport, e.Timeout)
}

// TransportError wraps a delivery failure with the transport that produced it
type TransportError struct {
	Transport string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
