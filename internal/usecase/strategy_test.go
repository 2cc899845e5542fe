//go:build !integration

package usecase

import (
	"testing"

	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/adapter"
)

func TestStrategySelector_Concurrency(t *testing.T) {
	cases := []struct {
		name string
		snap adapter.ResourceSnapshot
		want int
	}{
		{"idle host", adapter.ResourceSnapshot{CPULoad: 0.1, AvailableMiB: 8192}, 8},
		{"cpu pressure halves", adapter.ResourceSnapshot{CPULoad: 0.9, AvailableMiB: 8192}, 4},
		{"deep queue halves", adapter.ResourceSnapshot{CPULoad: 0.1, AvailableMiB: 8192, QueueDepth: 17}, 4},
		{"both pressures stack", adapter.ResourceSnapshot{CPULoad: 0.9, AvailableMiB: 8192, QueueDepth: 17}, 2},
		{"low memory forces serial", adapter.ResourceSnapshot{CPULoad: 0.1, AvailableMiB: 256}, 1},
		{"unknown memory ignored", adapter.ResourceSnapshot{CPULoad: 0.1, AvailableMiB: 0}, 8},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sel := NewStrategySelector(&fakeTelemetry{snap: c.snap}, 8, newTestLogger())
			got := sel.Select(model.Budget{}).MaxConcurrent
			if got != c.want {
				t.Fatalf("MaxConcurrent = %d, want %d", got, c.want)
			}
		})
	}
}

func TestStrategySelector_NeverBelowOne(t *testing.T) {
	sel := NewStrategySelector(&fakeTelemetry{snap: adapter.ResourceSnapshot{CPULoad: 1, QueueDepth: 100}}, 1, newTestLogger())
	if got := sel.Select(model.Budget{}).MaxConcurrent; got != 1 {
		t.Fatalf("MaxConcurrent = %d, want 1", got)
	}
}

func TestStrategySelector_TierFromBudget(t *testing.T) {
	sel := NewStrategySelector(idleTelemetry(), 4, newTestLogger())

	cases := []struct {
		credit int64
		want   ProviderTier
	}{
		{0, TierPremium}, // unlimited
		{500_000, TierEconomy},
		{5_000_000, TierStandard},
	}
	for _, c := range cases {
		if got := sel.Select(model.Budget{CreditLimit: c.credit}).Tier; got != c.want {
			t.Fatalf("credit %d: tier = %s, want %s", c.credit, got, c.want)
		}
	}
}
