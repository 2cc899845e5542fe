package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"ai-video-studio/internal/domain"
	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/repository"
	"ai-video-studio/internal/infra/logging"
	"ai-video-studio/internal/infra/metrics"
)

// JobRunner owns the job record lifecycle. Every job runs on its own
// goroutine, and all mutations of a job record funnel through that single
// goroutine so stage/percent updates never interleave. After every
// mutation a JobChanged event goes onto the outbound queue.
type JobRunner struct {
	jobs      repository.JobRepository
	fallbacks repository.FallbackDecisionRepository
	scheduler *PipelineScheduler
	strategy  *StrategySelector
	saga      *SagaCoordinator
	gateway   *ProviderGateway
	events    *EventQueue
	log       *zerolog.Logger

	mu      sync.Mutex
	handles map[string]*jobHandle
	wg      sync.WaitGroup
}

type jobHandle struct {
	cancel  context.CancelFunc
	updates chan func(*model.Job)
}

// jobEntropy makes job ids sortable by submission time.
var jobEntropy = &ulid.LockedMonotonicReader{
	MonotonicReader: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
}

func NewJobRunner(
	jobs repository.JobRepository,
	fallbacks repository.FallbackDecisionRepository,
	scheduler *PipelineScheduler,
	strategy *StrategySelector,
	saga *SagaCoordinator,
	gateway *ProviderGateway,
	events *EventQueue,
	log *zerolog.Logger,
) *JobRunner {
	return &JobRunner{
		jobs:      jobs,
		fallbacks: fallbacks,
		scheduler: scheduler,
		strategy:  strategy,
		saga:      saga,
		gateway:   gateway,
		events:    events,
		log:       log,
		handles:   make(map[string]*jobHandle),
	}
}

// Submit persists a queued job and starts executing it on its own
// goroutine. The returned id is immediately queryable via GetStatus.
func (r *JobRunner) Submit(ctx context.Context, spec model.PipelineSpec) (string, error) {
	if len(spec.Stages) == 0 {
		return "", domain.ErrEmptyPipeline
	}
	now := time.Now()
	job := &model.Job{
		ID:            ulid.MustNew(ulid.Timestamp(now), jobEntropy).String(),
		Status:        model.JobStatusQueued,
		CorrelationID: uuid.NewString(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.jobs.Save(ctx, job); err != nil {
		return "", fmt.Errorf("persist job: %w", err)
	}
	metrics.IncJobSubmitted()

	jctx, cancel := context.WithCancel(context.Background())
	jctx = logging.WithJobID(jctx, job.ID)
	jctx = logging.WithCorrelationID(jctx, job.CorrelationID)
	handle := &jobHandle{
		cancel:  cancel,
		updates: make(chan func(*model.Job), 64),
	}
	r.mu.Lock()
	r.handles[job.ID] = handle
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(jctx, job, spec, handle)
	return job.ID, nil
}

// GetStatus returns the persisted job record.
func (r *JobRunner) GetStatus(ctx context.Context, jobID string) (*model.Job, error) {
	return r.jobs.FindByID(ctx, jobID)
}

// Cancel signals the job's execution context. In-flight provider calls see
// the cancellation, not-yet-started tasks never run, committed steps get
// compensated.
func (r *JobRunner) Cancel(ctx context.Context, jobID string) error {
	r.mu.Lock()
	handle := r.handles[jobID]
	r.mu.Unlock()
	if handle == nil {
		job, err := r.jobs.FindByID(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status.Terminal() {
			return domain.ErrJobTerminal
		}
		return domain.ErrJobNotRunning
	}
	handle.cancel()
	return nil
}

// ApplyFallback records an explicit provider change and re-points the
// gateway lock. This is the only path by which a job's provider may change.
func (r *JobRunner) ApplyFallback(ctx context.Context, jobID string, category model.StageCategory, toProvider string, reason model.FallbackReason, userConfirmed bool) error {
	if _, err := r.jobs.FindByID(ctx, jobID); err != nil {
		return err
	}
	from, _ := r.gateway.LockedProvider(jobID, category)
	decision := &model.FallbackDecision{
		ID:            uuid.NewString(),
		JobID:         jobID,
		Category:      category,
		FromProvider:  from,
		ToProvider:    toProvider,
		Reason:        reason,
		UserConfirmed: userConfirmed,
		CreatedAt:     time.Now(),
	}
	if err := r.fallbacks.Append(ctx, decision); err != nil {
		return fmt.Errorf("record fallback decision: %w", err)
	}
	r.gateway.ApplyFallback(jobID, category, toProvider)
	r.events.Emit(model.FallbackAppliedEvent{Decision: decision, At: decision.CreatedAt})
	r.log.Info().
		Str("job_id", jobID).
		Str("from", from).
		Str("to", toProvider).
		Str("reason", string(reason)).
		Msg("fallback decision applied")
	return nil
}

// ActiveJobs reports how many jobs are currently executing; the telemetry
// sampler uses it as queue depth.
func (r *JobRunner) ActiveJobs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Wait blocks until all in-flight jobs reach a terminal state or ctx
// expires. Used during shutdown.
func (r *JobRunner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the per-job writer goroutine: the only place job fields mutate.
func (r *JobRunner) run(ctx context.Context, job *model.Job, spec model.PipelineSpec, handle *jobHandle) {
	defer r.wg.Done()
	log := logging.With(ctx, r.log)

	strat := r.strategy.Select(spec.Budget)
	r.mutate(job, func(j *model.Job) {
		j.Status = model.JobStatusRunning
		j.StartedAt = time.Now()
	})
	log.Info().Int("max_concurrent", strat.MaxConcurrent).Str("tier", string(strat.Tier)).Msg("job started")

	hooks := RunHooks{
		OnStage: func(label string) {
			r.push(handle, func(j *model.Job) { j.Stage = label })
		},
		OnProgress: func(pct int) {
			r.push(handle, func(j *model.Job) { j.Progress = pct })
		},
	}

	type runResult struct {
		output string
		err    error
	}
	resultCh := make(chan runResult, 1)
	go func() {
		out, err := r.scheduler.Run(ctx, job, spec, strat, hooks)
		resultCh <- runResult{output: out, err: err}
	}()

	var res runResult
loop:
	for {
		select {
		case fn := <-handle.updates:
			r.mutate(job, fn)
		case res = <-resultCh:
			break loop
		}
	}
	// Apply updates that raced with completion before finalizing.
	for {
		select {
		case fn := <-handle.updates:
			r.mutate(job, fn)
			continue
		default:
		}
		break
	}

	r.finalize(ctx, job, res.output, res.err, log)

	r.mu.Lock()
	delete(r.handles, job.ID)
	r.mu.Unlock()
}

func (r *JobRunner) finalize(ctx context.Context, job *model.Job, output string, runErr error, log *zerolog.Logger) {
	r.gateway.ReleaseJob(job.ID)

	// Compensation must run even though the job context is cancelled.
	compCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch {
	case runErr == nil:
		r.saga.Clear(job.ID)
		r.mutate(job, func(j *model.Job) {
			j.Status = model.JobStatusDone
			j.Progress = 100
			j.OutputRef = output
			j.FinishedAt = time.Now()
		})
		log.Info().Str("output_ref", output).Msg("job done")

	case errors.Is(runErr, context.Canceled) && ctx.Err() != nil:
		comp := r.compensate(compCtx, job.ID)
		r.mutate(job, func(j *model.Job) {
			j.Status = model.JobStatusCancelled
			j.ErrorDetail = "cancelled by request"
			j.Compensation = comp
			j.FinishedAt = time.Now()
		})
		log.Info().Msg("job cancelled")

	default:
		comp := r.compensate(compCtx, job.ID)
		detail := fmt.Sprintf("%v (correlation_id=%s)", runErr, job.CorrelationID)
		r.mutate(job, func(j *model.Job) {
			j.Status = model.JobStatusFailed
			j.ErrorDetail = detail
			j.Compensation = comp
			j.FinishedAt = time.Now()
		})
		log.Error().Err(runErr).Str("compensation", string(comp)).Msg("job failed")
	}

	metrics.ObserveJobFinished(string(job.Status), job.FinishedAt.Sub(job.StartedAt).Seconds())
}

func (r *JobRunner) compensate(ctx context.Context, jobID string) model.CompensationState {
	executed, failed := r.saga.Compensate(ctx, jobID)
	switch {
	case executed == 0:
		return model.CompensationNone
	case failed == 0:
		return model.CompensationFull
	default:
		return model.CompensationPartial
	}
}

// push hands a mutation to the job's writer goroutine. Updates are
// droppable (the writer clamps progress monotonically), so a full mailbox
// never blocks a task goroutine.
func (r *JobRunner) push(handle *jobHandle, fn func(*model.Job)) {
	select {
	case handle.updates <- fn:
	default:
	}
}

// mutate applies fn, enforces progress monotonicity, persists, and emits
// JobChanged. Only ever called from the job's writer goroutine.
func (r *JobRunner) mutate(job *model.Job, fn func(*model.Job)) {
	before := job.Progress
	fn(job)
	if job.Progress < before && !job.Status.Terminal() {
		job.Progress = before
	}
	job.UpdatedAt = time.Now()
	if err := r.jobs.Save(context.Background(), job); err != nil {
		r.log.Error().Err(err).Str("job_id", job.ID).Msg("job save failed")
	}
	r.events.Emit(model.JobChangedEvent{Snapshot: job.Clone(), At: job.UpdatedAt})
}
