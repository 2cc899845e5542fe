package domain

import (
	"context"
	"errors"
)

var (
	// Common domain errors
	ErrNotFound              = errors.New("entity not found")
	ErrCircuitOpen           = errors.New("provider circuit is open")
	ErrProviderLockViolation = errors.New("provider differs from the one locked for this job")
	ErrCyclicDependency      = errors.New("stage graph contains a cycle")
	ErrStageHandlerMissing   = errors.New("no provider registered for stage category")
	ErrDuplicateStage        = errors.New("stage kind declared more than once")
	ErrUnknownDependency     = errors.New("stage depends on an undeclared stage")
	ErrJobNotRunning         = errors.New("job is not running")
	ErrJobTerminal           = errors.New("job already reached a terminal state")
	ErrEmptyPipeline         = errors.New("pipeline has no stages")
	ErrReservationExpired    = errors.New("idempotency reservation expired before commit")
	ErrRetriesExhausted      = errors.New("retry attempts exhausted")
)

// ErrorClass drives retry and failure handling. Transient errors are retried
// with backoff, fatal errors fail the task immediately, structural errors fail
// the job before any task executes.
type ErrorClass int

const (
	ClassFatal ErrorClass = iota
	ClassTransient
	ClassStructural
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassStructural:
		return "structural"
	default:
		return "fatal"
	}
}

type classifiedError struct {
	class ErrorClass
	err   error
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Transient marks err as retryable (timeouts, rate limits, connection resets).
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: ClassTransient, err: err}
}

// Fatal marks err as non-retryable (auth failures, malformed requests, quota).
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: ClassFatal, err: err}
}

// Structural marks err as a pipeline-definition problem detected before execution.
func Structural(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: ClassStructural, err: err}
}

// Classify reports the class of err. Unmarked errors default to fatal so that
// an unknown failure is never replayed against a side-effecting provider;
// context timeouts count as transient.
func Classify(err error) ErrorClass {
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	switch {
	case errors.Is(err, ErrCyclicDependency),
		errors.Is(err, ErrStageHandlerMissing),
		errors.Is(err, ErrDuplicateStage),
		errors.Is(err, ErrUnknownDependency),
		errors.Is(err, ErrEmptyPipeline):
		return ClassStructural
	}
	return ClassFatal
}
