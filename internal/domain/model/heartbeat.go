package model

import "time"

// PatienceTier classifies how long a provider call has been silent.
// Tiers through DeepWait are informational; StallSuspected is a decision
// point for an external fallback policy, never an automatic action.
type PatienceTier string

const (
	PatienceNormal    PatienceTier = "normal"
	PatienceExtended  PatienceTier = "extended"
	PatienceDeepWait  PatienceTier = "deep_wait"
	PatienceSuspected PatienceTier = "stall_suspected"
)

// PatienceProfile holds per-provider-category wait thresholds.
type PatienceProfile struct {
	NormalThreshold   time.Duration `yaml:"normal_threshold"`
	ExtendedThreshold time.Duration `yaml:"extended_threshold"`
	DeepWaitThreshold time.Duration `yaml:"deep_wait_threshold"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	StallMultiplier   int           `yaml:"stall_multiplier"`
}

// StallAfter is the elapsed-since-heartbeat at which a call becomes suspect.
func (p PatienceProfile) StallAfter() time.Duration {
	return time.Duration(p.StallMultiplier) * p.HeartbeatInterval
}

// ClassifyPatience maps elapsed-since-heartbeat to a tier. Pure function of
// its inputs so it can be tested exhaustively.
func ClassifyPatience(elapsed time.Duration, p PatienceProfile) PatienceTier {
	if p.StallMultiplier > 0 && p.HeartbeatInterval > 0 && elapsed >= p.StallAfter() {
		return PatienceSuspected
	}
	switch {
	case elapsed < p.NormalThreshold:
		return PatienceNormal
	case elapsed < p.ExtendedThreshold:
		return PatienceExtended
	case p.DeepWaitThreshold <= 0 || elapsed < p.DeepWaitThreshold:
		return PatienceDeepWait
	default:
		// Past the deep-wait allowance the call is suspect even for a
		// provider with no heartbeat contract.
		return PatienceSuspected
	}
}

// HeartbeatRecord tracks liveness of one in-flight provider call.
// Created when the call starts, discarded when it completes.
type HeartbeatRecord struct {
	JobID      string
	ProviderID string
	Category   StageCategory
	StartedAt  time.Time
	LastBeat   time.Time
	Progress   float64 // 0..1, best-effort as reported by the provider
}
