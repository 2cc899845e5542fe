package model

import "time"

// SagaStep records one committed side effect of a job. The compensating
// action itself lives with the coordinator; this is the audit row.
type SagaStep struct {
	ID         string
	JobID      string
	Name       string // usually the stage kind that committed the effect
	Executed   bool   // true once the compensation ran (successfully or not)
	RecordedAt time.Time
}
