package model

import "time"

type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitStats is a read-only snapshot of one provider's breaker.
type CircuitStats struct {
	ProviderID          string
	State               CircuitState
	ConsecutiveFailures int
	WindowFailureRate   float64
	LastTransition      time.Time
	RetryAt             time.Time // earliest time a half-open trial is allowed
}
