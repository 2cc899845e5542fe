package model

import "time"

// FallbackReason explains why a job's provider changed.
type FallbackReason string

const (
	FallbackUserRequest        FallbackReason = "user_request"
	FallbackProviderFatalError FallbackReason = "provider_fatal_error"
	FallbackUserAfterStall     FallbackReason = "user_after_stall"
)

// FallbackDecision is an append-only audit record. Its absence for a job
// means the job's provider never changed.
type FallbackDecision struct {
	ID            string
	JobID         string
	Category      StageCategory
	FromProvider  string
	ToProvider    string
	Reason        FallbackReason
	UserConfirmed bool
	CreatedAt     time.Time
}
