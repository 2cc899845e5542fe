package usecase

import (
	"github.com/rs/zerolog"

	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/adapter"
)

// ProviderTier is a hint for adapter wiring: which quality/cost class of
// provider a job should prefer when several serve the same category.
type ProviderTier string

const (
	TierPremium  ProviderTier = "premium"
	TierStandard ProviderTier = "standard"
	TierEconomy  ProviderTier = "economy"
)

// Strategy is computed once at job start and fixed for the job's lifetime.
type Strategy struct {
	MaxConcurrent int
	Tier          ProviderTier
}

// StrategySelector derives a per-job strategy from the telemetry snapshot
// and the job's budget. It only ever narrows the configured ceiling.
type StrategySelector struct {
	telemetry adapter.TelemetrySource
	ceiling   int
	log       *zerolog.Logger
}

// economyBudgetMicros: below this credit limit a job is steered to the
// cheapest provider class.
const economyBudgetMicros = 1_000_000

func NewStrategySelector(telemetry adapter.TelemetrySource, maxConcurrentCalls int, log *zerolog.Logger) *StrategySelector {
	if maxConcurrentCalls < 1 {
		maxConcurrentCalls = 1
	}
	return &StrategySelector{telemetry: telemetry, ceiling: maxConcurrentCalls, log: log}
}

func (s *StrategySelector) Select(budget model.Budget) Strategy {
	snap := s.telemetry.Snapshot()

	conc := s.ceiling
	if snap.CPULoad >= 0.85 {
		conc /= 2
	}
	if snap.QueueDepth > 2*s.ceiling {
		conc /= 2
	}
	if snap.AvailableMiB > 0 && snap.AvailableMiB < 512 {
		conc = 1
	}
	if conc < 1 {
		conc = 1
	}

	tier := TierStandard
	switch {
	case budget.CreditLimit == 0:
		tier = TierPremium
	case budget.CreditLimit < economyBudgetMicros:
		tier = TierEconomy
	}

	if s.log != nil {
		s.log.Debug().
			Float64("cpu_load", snap.CPULoad).
			Int("queue_depth", snap.QueueDepth).
			Int("max_concurrent", conc).
			Str("tier", string(tier)).
			Msg("strategy selected")
	}
	return Strategy{MaxConcurrent: conc, Tier: tier}
}
