package usecase

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-video-studio/internal/config"
	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/infra/metrics"
)

// CircuitBreakerManager keeps one failure-rate state machine per provider.
// The registry is shared across jobs; each entry carries its own lock so a
// slow provider never serializes calls to a healthy one.
type CircuitBreakerManager struct {
	cfg config.CircuitConfig
	now func() time.Time
	log *zerolog.Logger

	mu       sync.RWMutex
	circuits map[string]*circuit
}

type circuit struct {
	mu sync.Mutex

	state       model.CircuitState
	consecFails int

	// sliding window of the last N outcomes, true = failure
	window []bool
	head   int
	filled int

	cooldown       time.Duration
	retryAt        time.Time
	trialInFlight  bool
	lastTransition time.Time
}

func NewCircuitBreakerManager(cfg config.CircuitConfig, log *zerolog.Logger) *CircuitBreakerManager {
	return &CircuitBreakerManager{
		cfg:      cfg,
		now:      time.Now,
		log:      log,
		circuits: make(map[string]*circuit),
	}
}

func (m *CircuitBreakerManager) get(providerID string) *circuit {
	m.mu.RLock()
	c := m.circuits[providerID]
	m.mu.RUnlock()
	if c != nil {
		return c
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c = m.circuits[providerID]; c == nil {
		c = &circuit{
			state:    model.CircuitClosed,
			window:   make([]bool, m.cfg.FailureRateWindow),
			cooldown: m.cfg.Cooldown,
		}
		m.circuits[providerID] = c
	}
	return c
}

// Allow reports whether a call to providerID may proceed. An open circuit
// rejects immediately; once the cooldown elapses exactly one trial call is
// let through (half-open).
func (m *CircuitBreakerManager) Allow(providerID string) bool {
	c := m.get(providerID)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case model.CircuitClosed:
		return true
	case model.CircuitOpen:
		if m.now().Before(c.retryAt) {
			return false
		}
		m.transition(providerID, c, model.CircuitHalfOpen)
		c.trialInFlight = true
		return true
	case model.CircuitHalfOpen:
		if c.trialInFlight {
			return false
		}
		c.trialInFlight = true
		return true
	}
	return false
}

// ReleaseTrial hands back a half-open trial slot that Allow granted but the
// caller never spent on a provider call, such as an idempotent replay.
// Without it the single slot would stay consumed and the circuit could
// never probe the provider again.
func (m *CircuitBreakerManager) ReleaseTrial(providerID string) {
	c := m.get(providerID)
	c.mu.Lock()
	if c.state == model.CircuitHalfOpen {
		c.trialInFlight = false
	}
	c.mu.Unlock()
}

// RecordOutcome feeds one classified call result into the state machine.
// The gateway classifies errors first; a short-circuited call must not be
// recorded.
func (m *CircuitBreakerManager) RecordOutcome(providerID string, success bool) {
	c := m.get(providerID)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.push(!success)

	switch c.state {
	case model.CircuitHalfOpen:
		c.trialInFlight = false
		if success {
			m.transition(providerID, c, model.CircuitClosed)
			c.consecFails = 0
			c.resetWindow()
			c.cooldown = m.cfg.Cooldown
			return
		}
		c.cooldown = m.growCooldown(c.cooldown)
		m.open(providerID, c)

	case model.CircuitClosed:
		if success {
			c.consecFails = 0
			return
		}
		c.consecFails++
		if c.consecFails >= m.cfg.FailureThreshold || c.rateTripped(m.cfg) {
			m.open(providerID, c)
		}

	case model.CircuitOpen:
		// Late outcome of a call that started before the open; window
		// already updated, no transition.
	}
}

// Snapshot returns a read-only view of one provider's breaker.
func (m *CircuitBreakerManager) Snapshot(providerID string) model.CircuitStats {
	c := m.get(providerID)
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.CircuitStats{
		ProviderID:          providerID,
		State:               c.state,
		ConsecutiveFailures: c.consecFails,
		WindowFailureRate:   c.rate(),
		LastTransition:      c.lastTransition,
		RetryAt:             c.retryAt,
	}
}

func (m *CircuitBreakerManager) open(providerID string, c *circuit) {
	m.transition(providerID, c, model.CircuitOpen)
	c.retryAt = m.now().Add(c.cooldown)
	c.trialInFlight = false
}

func (m *CircuitBreakerManager) transition(providerID string, c *circuit, to model.CircuitState) {
	c.state = to
	c.lastTransition = m.now()
	metrics.IncCircuitTransition(providerID, string(to))
	if m.log != nil {
		m.log.Warn().
			Str("provider_id", providerID).
			Str("state", string(to)).
			Msg("circuit transition")
	}
}

func (m *CircuitBreakerManager) growCooldown(d time.Duration) time.Duration {
	grown := time.Duration(float64(d) * m.cfg.CooldownGrowth)
	if grown > m.cfg.MaxCooldown {
		return m.cfg.MaxCooldown
	}
	return grown
}

func (c *circuit) push(failure bool) {
	if len(c.window) == 0 {
		return
	}
	c.window[c.head] = failure
	c.head = (c.head + 1) % len(c.window)
	if c.filled < len(c.window) {
		c.filled++
	}
}

func (c *circuit) resetWindow() {
	c.head = 0
	c.filled = 0
}

func (c *circuit) rate() float64 {
	if c.filled == 0 {
		return 0
	}
	fails := 0
	for i := 0; i < c.filled; i++ {
		if c.window[i] {
			fails++
		}
	}
	return float64(fails) / float64(c.filled)
}

// rateTripped requires a full window so a single early failure cannot open
// the circuit on rate alone.
func (c *circuit) rateTripped(cfg config.CircuitConfig) bool {
	return c.filled == len(c.window) && len(c.window) > 0 && c.rate() >= cfg.FailureRateLimit
}
