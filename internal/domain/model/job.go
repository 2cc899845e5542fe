package model

import "time"

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusDone      JobStatus = "done"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether a job in this status will never change again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed || s == JobStatusCancelled
}

// CompensationState records how rollback went after a terminal failure.
// Empty means no compensation was needed.
type CompensationState string

const (
	CompensationNone    CompensationState = ""
	CompensationFull    CompensationState = "compensated"
	CompensationPartial CompensationState = "partially_compensated"
)

// Job is the unit of work the runner owns. Only the runner's per-job writer
// goroutine mutates it; everyone else sees copies.
type Job struct {
	ID            string
	Status        JobStatus
	Stage         string // label of the stage currently executing
	Progress      int    // 0..100, non-decreasing until terminal
	CorrelationID string
	OutputRef     string
	ErrorDetail   string
	Compensation  CompensationState
	CreatedAt     time.Time
	StartedAt     time.Time
	FinishedAt    time.Time
	UpdatedAt     time.Time
}

// Clone returns a copy safe to hand out across goroutines.
func (j *Job) Clone() *Job {
	cp := *j
	return &cp
}
