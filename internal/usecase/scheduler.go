package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"ai-video-studio/internal/domain"
	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/adapter"
	"ai-video-studio/internal/domain/ports/repository"
	"ai-video-studio/internal/infra/logging"
	"ai-video-studio/internal/infra/metrics"
)

// SchedulerConfig is the slice of the orchestrator config the scheduler
// cares about.
type SchedulerConfig struct {
	EnableCaching             bool
	CacheTTL                  time.Duration
	ContinueOnOptionalFailure bool
}

// RunHooks let the runner observe stage and progress changes without the
// scheduler knowing anything about job persistence.
type RunHooks struct {
	OnStage    func(label string)
	OnProgress func(percent int)
}

// PipelineScheduler turns a pipeline spec into a task DAG and executes it
// level by level: every task in level k must reach a terminal state before
// level k+1 starts (wave barrier). Within a level tasks run concurrently,
// bounded by the job's strategy.
type PipelineScheduler struct {
	gateway  *ProviderGateway
	registry ProviderRegistry
	cache    repository.ResultCache
	saga     *SagaCoordinator
	cfg      SchedulerConfig
	log      *zerolog.Logger
}

func NewPipelineScheduler(
	gateway *ProviderGateway,
	registry ProviderRegistry,
	cache repository.ResultCache,
	saga *SagaCoordinator,
	cfg SchedulerConfig,
	log *zerolog.Logger,
) *PipelineScheduler {
	return &PipelineScheduler{
		gateway:  gateway,
		registry: registry,
		cache:    cache,
		saga:     saga,
		cfg:      cfg,
		log:      log,
	}
}

// Run executes the whole pipeline for one job and returns the terminal
// output reference. A mandatory-task failure aborts not-yet-started tasks
// and surfaces the originating error; the runner decides what that means
// for the job record.
func (s *PipelineScheduler) Run(ctx context.Context, job *model.Job, spec model.PipelineSpec, strat Strategy, hooks RunHooks) (string, error) {
	defer logging.TraceDuration(logging.With(ctx, s.log), "Scheduler.Run")()

	tasks, err := BuildTasks(job.ID, spec, s.registry)
	if err != nil {
		return "", err
	}
	levels, err := Levels(tasks)
	if err != nil {
		return "", err
	}

	run := &pipelineRun{
		job:     job,
		results: make(map[model.StageKind]*model.StageResult, len(tasks)),
		hooks:   hooks,
	}
	for _, t := range tasks {
		run.totalWeight += t.Weight
	}

	for _, level := range levels {
		if err := s.runLevel(ctx, run, level, strat); err != nil {
			cancelPending(tasks)
			return "", err
		}
	}

	return finalOutput(levels, run), nil
}

// pipelineRun is the per-job mutable state shared by a level's workers.
type pipelineRun struct {
	job   *model.Job
	hooks RunHooks

	mu          sync.Mutex
	results     map[model.StageKind]*model.StageResult
	doneWeight  int
	totalWeight int
}

func (r *pipelineRun) finish(t *model.TaskNode, state model.TaskState, res *model.StageResult) {
	r.mu.Lock()
	t.State = state
	t.Result = res
	if state == model.TaskDone {
		r.results[t.Kind] = res
	}
	// Failed and cancelled tasks never advance the percent; a job must not
	// tick up on the update that precedes its failure.
	if state == model.TaskDone || state == model.TaskSkipped {
		r.doneWeight += t.Weight
	}
	pct := 0
	if r.totalWeight > 0 {
		pct = r.doneWeight * 100 / r.totalWeight
	}
	r.mu.Unlock()
	if r.hooks.OnProgress != nil {
		r.hooks.OnProgress(pct)
	}
}

// inputsFor merges the stage's declared inputs with the refs of its
// completed dependencies. A skipped dependency contributes no ref key;
// that absence is the marker dependents must tolerate.
func (r *pipelineRun) inputsFor(t *model.TaskNode) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	merged := make(map[string]string, len(t.Inputs)+len(t.DependsOn))
	for k, v := range t.Inputs {
		merged[k] = v
	}
	for _, dep := range t.DependsOn {
		if res := r.results[dep]; res != nil {
			merged["ref:"+string(dep)] = res.Ref
		}
	}
	return merged
}

func (s *PipelineScheduler) runLevel(ctx context.Context, run *pipelineRun, level []*model.TaskNode, strat Strategy) error {
	if run.hooks.OnStage != nil {
		run.hooks.OnStage(levelLabel(level))
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(strat.MaxConcurrent))

	for _, t := range level {
		t := t
		t.State = model.TaskReady
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				run.finish(t, model.TaskCancelled, nil)
				return err
			}
			defer sem.Release(1)
			// A sibling may have failed while we waited for a slot. The
			// context error must surface so the run never looks clean.
			if err := gctx.Err(); err != nil {
				run.finish(t, model.TaskCancelled, nil)
				return err
			}
			return s.runTask(gctx, run, t, strat)
		})
	}
	return g.Wait()
}

func (s *PipelineScheduler) runTask(ctx context.Context, run *pipelineRun, t *model.TaskNode, strat Strategy) error {
	t.State = model.TaskRunning
	inputs := run.inputsFor(t)
	req := adapter.Request{
		IdempotencyKey: t.ID,
		Stage:          t.Kind,
		Category:       t.Category,
		Inputs:         inputs,
	}

	cacheKey := adapter.Request{Stage: t.Kind, Category: t.Category, Inputs: inputs}.Fingerprint()
	if s.cfg.EnableCaching {
		if res, err := s.cache.Get(ctx, cacheKey); err == nil && res != nil {
			metrics.IncCacheHit()
			res.FromCache = true
			run.finish(t, model.TaskDone, res)
			return nil
		}
		metrics.IncCacheMiss()
	}

	providerID, ok := s.gateway.LockedProvider(run.job.ID, t.Category)
	if !ok {
		prov, found := s.registry.Default(t.Category, strat.Tier)
		if !found {
			err := fmt.Errorf("%w: %s", domain.ErrStageHandlerMissing, t.Category)
			run.finish(t, model.TaskFailed, nil)
			return err
		}
		providerID = prov.ID()
	}

	res, err := s.gateway.Invoke(ctx, run.job.ID, providerID, req)
	if err != nil {
		t.Err = err
		if ctx.Err() != nil {
			run.finish(t, model.TaskCancelled, nil)
			return ctx.Err()
		}
		if t.Optional && s.cfg.ContinueOnOptionalFailure {
			if s.log != nil {
				s.log.Warn().Err(err).
					Str("job_id", run.job.ID).
					Str("stage", string(t.Kind)).
					Msg("optional stage failed; continuing without it")
			}
			run.finish(t, model.TaskSkipped, nil)
			return nil
		}
		run.finish(t, model.TaskFailed, nil)
		return fmt.Errorf("stage %s: %w", t.Kind, err)
	}

	// Side effects already billed by the provider get a compensation hook.
	if prov, found := s.registry.Lookup(t.Category, res.ProviderID); found && !res.FromCache {
		if comp, hasComp := prov.(adapter.Compensator); hasComp {
			result := res
			s.saga.RecordStep(run.job.ID, string(t.Kind), func(cctx context.Context) error {
				return comp.Compensate(cctx, result)
			})
		}
	}

	if s.cfg.EnableCaching && !res.FromCache {
		if cerr := s.cache.Set(ctx, cacheKey, res, s.cfg.CacheTTL); cerr != nil && s.log != nil {
			s.log.Warn().Err(cerr).Str("stage", string(t.Kind)).Msg("result cache write failed")
		}
	}

	run.finish(t, model.TaskDone, res)
	return nil
}

func cancelPending(tasks []*model.TaskNode) {
	for _, t := range tasks {
		if !t.State.Terminal() && t.State != model.TaskRunning {
			t.State = model.TaskCancelled
		}
	}
}

func levelLabel(level []*model.TaskNode) string {
	kinds := make([]string, 0, len(level))
	for _, t := range level {
		kinds = append(kinds, string(t.Kind))
	}
	sort.Strings(kinds)
	return strings.Join(kinds, "+")
}

// finalOutput picks the terminal artifact: the first completed task of the
// last level that produced a result.
func finalOutput(levels [][]*model.TaskNode, run *pipelineRun) string {
	run.mu.Lock()
	defer run.mu.Unlock()
	for i := len(levels) - 1; i >= 0; i-- {
		for _, t := range levels[i] {
			if res := run.results[t.Kind]; res != nil {
				return res.Ref
			}
		}
	}
	return ""
}
