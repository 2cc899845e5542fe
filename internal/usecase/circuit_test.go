//go:build !integration

package usecase

import (
	"testing"
	"time"

	"ai-video-studio/internal/config"
	"ai-video-studio/internal/domain/model"
)

func testCircuitCfg() config.CircuitConfig {
	return config.CircuitConfig{
		FailureThreshold:  3,
		FailureRateWindow: 10,
		FailureRateLimit:  0.5,
		Cooldown:          30 * time.Second,
		CooldownGrowth:    2,
		MaxCooldown:       10 * time.Minute,
	}
}

// newTestBreaker returns a manager with a controllable clock.
func newTestBreaker(cfg config.CircuitConfig) (*CircuitBreakerManager, *time.Time) {
	m := NewCircuitBreakerManager(cfg, newTestLogger())
	now := time.Now()
	m.now = func() time.Time { return now }
	return m, &now
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	m, _ := newTestBreaker(testCircuitCfg())

	for i := 0; i < 2; i++ {
		if !m.Allow("p1") {
			t.Fatalf("call %d: expected closed circuit to allow", i)
		}
		m.RecordOutcome("p1", false)
	}
	if got := m.Snapshot("p1").State; got != model.CircuitClosed {
		t.Fatalf("after 2 failures: state = %s, want closed", got)
	}

	m.RecordOutcome("p1", false) // third consecutive failure
	if got := m.Snapshot("p1").State; got != model.CircuitOpen {
		t.Fatalf("after threshold failures: state = %s, want open", got)
	}
	if m.Allow("p1") {
		t.Fatal("open circuit allowed a call before cooldown")
	}
}

func TestCircuitBreaker_SuccessResetsConsecutiveCount(t *testing.T) {
	m, _ := newTestBreaker(testCircuitCfg())

	m.RecordOutcome("p1", false)
	m.RecordOutcome("p1", false)
	m.RecordOutcome("p1", true)
	m.RecordOutcome("p1", false)
	m.RecordOutcome("p1", false)

	if got := m.Snapshot("p1").State; got != model.CircuitClosed {
		t.Fatalf("state = %s, want closed (failures never consecutive enough)", got)
	}
}

func TestCircuitBreaker_HalfOpenSingleTrial(t *testing.T) {
	m, now := newTestBreaker(testCircuitCfg())

	for i := 0; i < 3; i++ {
		m.RecordOutcome("p1", false)
	}
	if m.Allow("p1") {
		t.Fatal("expected open circuit to reject")
	}

	*now = now.Add(31 * time.Second)
	if !m.Allow("p1") {
		t.Fatal("expected trial call after cooldown")
	}
	if got := m.Snapshot("p1").State; got != model.CircuitHalfOpen {
		t.Fatalf("state = %s, want half_open", got)
	}
	if m.Allow("p1") {
		t.Fatal("second call allowed while trial in flight")
	}

	m.RecordOutcome("p1", true)
	if got := m.Snapshot("p1").State; got != model.CircuitClosed {
		t.Fatalf("after trial success: state = %s, want closed", got)
	}
	if !m.Allow("p1") {
		t.Fatal("closed circuit rejected")
	}
}

// A trial slot granted by Allow but never spent on a provider call must be
// returnable, or the circuit stays half-open forever.
func TestCircuitBreaker_ReleaseTrialRestoresSlot(t *testing.T) {
	m, now := newTestBreaker(testCircuitCfg())

	for i := 0; i < 3; i++ {
		m.RecordOutcome("p1", false)
	}
	*now = now.Add(31 * time.Second)
	if !m.Allow("p1") {
		t.Fatal("expected trial call after cooldown")
	}
	if m.Allow("p1") {
		t.Fatal("second call allowed while trial in flight")
	}

	m.ReleaseTrial("p1")
	if !m.Allow("p1") {
		t.Fatal("released slot not granted to the next caller")
	}

	m.RecordOutcome("p1", true)
	if got := m.Snapshot("p1").State; got != model.CircuitClosed {
		t.Fatalf("state = %s, want closed", got)
	}
}

func TestCircuitBreaker_TrialFailureGrowsCooldown(t *testing.T) {
	m, now := newTestBreaker(testCircuitCfg())

	for i := 0; i < 3; i++ {
		m.RecordOutcome("p1", false)
	}
	*now = now.Add(31 * time.Second)
	if !m.Allow("p1") {
		t.Fatal("expected trial call")
	}
	m.RecordOutcome("p1", false)

	if got := m.Snapshot("p1").State; got != model.CircuitOpen {
		t.Fatalf("after trial failure: state = %s, want open", got)
	}
	// Cooldown doubled to 60s: still rejecting after the original 30s.
	*now = now.Add(31 * time.Second)
	if m.Allow("p1") {
		t.Fatal("circuit reopened before the grown cooldown elapsed")
	}
	*now = now.Add(30 * time.Second)
	if !m.Allow("p1") {
		t.Fatal("expected trial after the grown cooldown")
	}
}

func TestCircuitBreaker_CooldownCappedAtMax(t *testing.T) {
	cfg := testCircuitCfg()
	cfg.MaxCooldown = 45 * time.Second
	m, now := newTestBreaker(cfg)

	for i := 0; i < 3; i++ {
		m.RecordOutcome("p1", false)
	}
	// Fail several trials; cooldown would be 30s*2^n without the cap.
	for i := 0; i < 3; i++ {
		*now = now.Add(46 * time.Second)
		if !m.Allow("p1") {
			t.Fatalf("trial %d: expected trial call within max cooldown", i)
		}
		m.RecordOutcome("p1", false)
	}
	*now = now.Add(46 * time.Second)
	if !m.Allow("p1") {
		t.Fatal("cooldown exceeded the configured maximum")
	}
}

func TestCircuitBreaker_FailureRateNeedsFullWindow(t *testing.T) {
	cfg := testCircuitCfg()
	cfg.FailureThreshold = 100 // keep the consecutive rule out of the way
	cfg.FailureRateWindow = 4
	m, _ := newTestBreaker(cfg)

	// Alternate so failures are never consecutive: S F S -> window not full.
	m.RecordOutcome("p1", true)
	m.RecordOutcome("p1", false)
	m.RecordOutcome("p1", true)
	if got := m.Snapshot("p1").State; got != model.CircuitClosed {
		t.Fatalf("partial window tripped the rate rule: state = %s", got)
	}

	// Fourth outcome fills the window at 2/4 = 0.5 >= limit.
	m.RecordOutcome("p1", false)
	if got := m.Snapshot("p1").State; got != model.CircuitOpen {
		t.Fatalf("full window at limit: state = %s, want open", got)
	}
}

func TestCircuitBreaker_IndependentPerProvider(t *testing.T) {
	m, _ := newTestBreaker(testCircuitCfg())

	for i := 0; i < 3; i++ {
		m.RecordOutcome("flaky", false)
	}
	if m.Allow("flaky") {
		t.Fatal("flaky provider should be open")
	}
	if !m.Allow("healthy") {
		t.Fatal("healthy provider must be unaffected")
	}
}
