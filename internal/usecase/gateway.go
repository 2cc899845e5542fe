package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-video-studio/internal/config"
	"ai-video-studio/internal/domain"
	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/adapter"
	"ai-video-studio/internal/domain/ports/repository"
	"ai-video-studio/internal/infra/logging"
	"ai-video-studio/internal/infra/metrics"
)

// ProviderRegistry resolves providers by capability. Implemented by the
// adapter layer; absent optional capabilities simply yield no task.
type ProviderRegistry interface {
	Lookup(category model.StageCategory, id string) (adapter.Provider, bool)
	Default(category model.StageCategory, tier ProviderTier) (adapter.Provider, bool)
	Has(category model.StageCategory) bool
}

// ProviderGateway is the single choke point for every external provider
// call: provider lock, circuit breaker, idempotent replay, heartbeat
// tracking and transient-error retry all compose here. The gateway never
// switches providers on its own; only ApplyFallback re-points a lock.
type ProviderGateway struct {
	registry ProviderRegistry
	circuits *CircuitBreakerManager
	idem     repository.IdempotencyStore
	monitor  *PatienceMonitor
	retry    config.RetryConfig
	idemTTL  time.Duration
	log      *zerolog.Logger

	mu    sync.Mutex
	locks map[lockKey]string // provider id locked per job+category
}

type lockKey struct {
	jobID    string
	category model.StageCategory
}

func NewProviderGateway(
	registry ProviderRegistry,
	circuits *CircuitBreakerManager,
	idem repository.IdempotencyStore,
	monitor *PatienceMonitor,
	retry config.RetryConfig,
	idemTTL time.Duration,
	log *zerolog.Logger,
) *ProviderGateway {
	return &ProviderGateway{
		registry: registry,
		circuits: circuits,
		idem:     idem,
		monitor:  monitor,
		retry:    retry,
		idemTTL:  idemTTL,
		log:      log,
		locks:    make(map[lockKey]string),
	}
}

// LockedProvider reports the provider currently locked for a job's category.
func (g *ProviderGateway) LockedProvider(jobID string, category model.StageCategory) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.locks[lockKey{jobID: jobID, category: category}]
	return id, ok
}

// ApplyFallback re-points the lock after an explicit, recorded decision.
// Callers must have appended the FallbackDecision first.
func (g *ProviderGateway) ApplyFallback(jobID string, category model.StageCategory, toProvider string) {
	g.mu.Lock()
	g.locks[lockKey{jobID: jobID, category: category}] = toProvider
	g.mu.Unlock()
}

// ReleaseJob drops all locks held by a finished job.
func (g *ProviderGateway) ReleaseJob(jobID string) {
	g.mu.Lock()
	for k := range g.locks {
		if k.jobID == jobID {
			delete(g.locks, k)
		}
	}
	g.mu.Unlock()
}

// Invoke performs one stage call through the full resilience stack.
func (g *ProviderGateway) Invoke(ctx context.Context, jobID, providerID string, req adapter.Request) (*model.StageResult, error) {
	// (a) provider lock: first call in this category sets it, later calls
	// must match unless a fallback decision re-pointed it.
	if err := g.checkLock(jobID, req.Category, providerID); err != nil {
		return nil, err
	}

	prov, ok := g.registry.Lookup(req.Category, providerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrStageHandlerMissing, req.Category, providerID)
	}

	// (b) fail fast while the circuit is open.
	if !g.circuits.Allow(providerID) {
		metrics.IncShortCircuit(providerID)
		return nil, fmt.Errorf("%w: %s", domain.ErrCircuitOpen, providerID)
	}

	// (c) idempotent replay: identical key+fingerprint within TTL never
	// reaches the provider twice.
	fingerprint := req.Fingerprint()
	cached, rsv, err := g.idem.GetOrReserve(ctx, req.IdempotencyKey, fingerprint)
	if err != nil {
		// The provider was never called; a granted half-open trial slot
		// must go back or the circuit wedges.
		g.circuits.ReleaseTrial(providerID)
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if cached != nil {
		g.circuits.ReleaseTrial(providerID)
		metrics.IncIdempotentReplay(providerID)
		cached.FromCache = true
		return cached, nil
	}

	// (d) the actual call, heartbeat-tracked and retried on transient errors.
	handle := g.monitor.Track(jobID, providerID, req.Category)
	defer handle.Close()

	res, err := g.callWithRetry(logging.WithProviderID(ctx, providerID), prov, req, handle)
	if err != nil {
		if aerr := g.idem.Abort(ctx, rsv); aerr != nil && g.log != nil {
			g.log.Warn().Err(aerr).Str("job_id", jobID).Msg("idempotency abort failed")
		}
		return nil, err
	}

	// (e) commit so retries and duplicate submissions replay this result.
	if cerr := g.idem.Commit(ctx, rsv, res, g.idemTTL); cerr != nil && g.log != nil {
		g.log.Warn().Err(cerr).Str("job_id", jobID).Msg("idempotency commit failed")
	}
	return res, nil
}

func (g *ProviderGateway) checkLock(jobID string, category model.StageCategory, providerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := lockKey{jobID: jobID, category: category}
	locked, ok := g.locks[key]
	if !ok {
		g.locks[key] = providerID
		return nil
	}
	if locked != providerID {
		return fmt.Errorf("%w: locked=%s requested=%s", domain.ErrProviderLockViolation, locked, providerID)
	}
	return nil
}

func (g *ProviderGateway) callWithRetry(ctx context.Context, prov adapter.Provider, req adapter.Request, handle *HeartbeatHandle) (*model.StageResult, error) {
	providerID := prov.ID()
	var lastErr error

	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			metrics.IncGatewayRetry(providerID)
			if err := sleepWithJitter(ctx, g.backoff(attempt-1)); err != nil {
				return nil, err
			}
			// The breaker may have opened on our own earlier attempts.
			if !g.circuits.Allow(providerID) {
				metrics.IncShortCircuit(providerID)
				return nil, fmt.Errorf("%w: %s", domain.ErrCircuitOpen, providerID)
			}
		}

		start := time.Now()
		res, err := prov.Invoke(ctx, req, handle.Beat)
		latencyMs := int(time.Since(start) / time.Millisecond)

		if err == nil {
			g.circuits.RecordOutcome(providerID, true)
			metrics.ObserveGatewayCall(providerID, string(req.Category), latencyMs, true)
			return res, nil
		}

		g.circuits.RecordOutcome(providerID, false)
		metrics.ObserveGatewayCall(providerID, string(req.Category), latencyMs, false)
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if domain.Classify(err) != domain.ClassTransient {
			return nil, err
		}
		if g.log != nil {
			g.log.Warn().Err(err).
				Str("provider_id", providerID).
				Int("attempt", attempt).
				Msg("transient provider error")
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", domain.ErrRetriesExhausted, g.retry.MaxAttempts, lastErr)
}

// backoff returns the exponential ceiling for the n-th retry (n >= 1).
func (g *ProviderGateway) backoff(n int) time.Duration {
	d := g.retry.InitialBackoff << (n - 1)
	if d > g.retry.MaxBackoff || d <= 0 {
		d = g.retry.MaxBackoff
	}
	return d
}

// sleepWithJitter waits a uniformly random duration in (0, max], honoring
// cancellation.
func sleepWithJitter(ctx context.Context, max time.Duration) error {
	if max <= 0 {
		return nil
	}
	d := time.Duration(rand.Int63n(int64(max))) + 1
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
