package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

const maxErrorBody = 512

// TimeoutError means the backend did not answer within the configured timeout.
type TimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("inference timed out after %s: %v", e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ConnectionError means the backend was refused or unreachable.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("inference backend %s unreachable: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CanceledError means the caller gave up on the request, e.g. on shutdown.
type CanceledError struct {
	Err error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("inference canceled: %v", e.Err)
}

func (e *CanceledError) Unwrap() error { return e.Err }

// ProtocolError covers non-200 statuses and bodies that do not decode into an answer.
type ProtocolError struct {
	Status int
	Body   string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inference protocol error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("inference protocol error (status %d): %s", e.Status, e.Body)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// NewProtocolError trims the body so error values stay log-friendly.
func NewProtocolError(status int, body []byte, err error) *ProtocolError {
	b := string(body)
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody] + "..."
	}
	return &ProtocolError{Status: status, Body: b, Err: err}
}

// ClassifyTransportError maps a failed round trip to a cancellation, a timeout or a connection error.
func ClassifyTransportError(endpoint string, timeout time.Duration, err error) error {
	if errors.Is(err, context.Canceled) {
		return &CanceledError{Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Timeout: timeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Timeout: timeout, Err: err}
	}

	return &ConnectionError{Endpoint: endpoint, Err: err}
}
