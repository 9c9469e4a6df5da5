package pesepay

import (
	"errors"
	"fmt"
)

var (
	ErrGatewayUnreachable = errors.New("payment gateway unreachable")
	ErrGatewayProtocol    = errors.New("payment gateway protocol error")
	ErrStatusUnavailable  = errors.New("payment status unavailable")
	ErrNotConfigured      = errors.New("pesepay credentials are not configured")
)

// ProtocolError carries the message the processor returned instead of a
// payload. Message is safe to show to the payer.
type ProtocolError struct {
	StatusCode int
	Message    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("payment gateway protocol error: status=%d message=%q", e.StatusCode, e.Message)
}

func (e *ProtocolError) Is(target error) bool { return target == ErrGatewayProtocol }

// StatusUnavailableError means the processor does not know the reference or
// has not resolved it yet.
type StatusUnavailableError struct {
	Reference string
	Message   string
}

func (e *StatusUnavailableError) Error() string {
	return fmt.Sprintf("payment status unavailable: reference=%s message=%q", e.Reference, e.Message)
}

func (e *StatusUnavailableError) Is(target error) bool { return target == ErrStatusUnavailable }
