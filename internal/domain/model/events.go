package model

import "time"

type EventKind string

const (
	EventJobChanged      EventKind = "job_changed"
	EventStallSuspected  EventKind = "stall_suspected"
	EventFallbackApplied EventKind = "fallback_applied"
)

// Event is what the runner pushes onto the outbound queue for the
// notification layer to drain.
type Event interface {
	Kind() EventKind
	Job() string
}

// JobChangedEvent carries a snapshot of the job after a mutation.
type JobChangedEvent struct {
	Snapshot *Job
	At       time.Time
}

func (e JobChangedEvent) Kind() EventKind { return EventJobChanged }
func (e JobChangedEvent) Job() string     { return e.Snapshot.ID }

// StallSuspectedEvent fires when a call's heartbeat silence crosses the
// stall threshold. The call keeps running; acting on this is the consumer's
// decision.
type StallSuspectedEvent struct {
	JobID      string
	ProviderID string
	Category   StageCategory
	Elapsed    time.Duration
	At         time.Time
}

func (e StallSuspectedEvent) Kind() EventKind { return EventStallSuspected }
func (e StallSuspectedEvent) Job() string     { return e.JobID }

// FallbackAppliedEvent confirms an explicit provider change took effect.
type FallbackAppliedEvent struct {
	Decision *FallbackDecision
	At       time.Time
}

func (e FallbackAppliedEvent) Kind() EventKind { return EventFallbackApplied }
func (e FallbackAppliedEvent) Job() string     { return e.Decision.JobID }
