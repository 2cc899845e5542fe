package adapter

import "time"

// ResourceSnapshot is a cheap point-in-time view of host pressure.
type ResourceSnapshot struct {
	CPULoad      float64 // 0..1 normalized across cores
	AvailableMiB uint64
	QueueDepth   int // jobs waiting or running
	TakenAt      time.Time
}

// TelemetrySource exposes the latest snapshot. Implementations refresh in
// the background; Snapshot must never block.
type TelemetrySource interface {
	Snapshot() ResourceSnapshot
}
