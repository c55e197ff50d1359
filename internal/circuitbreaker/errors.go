package circuitbreaker

import (
	"errors"
	"fmt"
)

var (
	// ErrShortCircuit is returned when the breaker is open and the call is not attempted.
	ErrShortCircuit = errors.New("circuit breaker is open")

	// ErrTimeout is returned when a protected call exceeds the call timeout.
	ErrTimeout = errors.New("operation timed out")
)

// CallError reports a protected call that was attempted and failed.
type CallError struct {
	Breaker string
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Breaker, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}
