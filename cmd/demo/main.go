package main

import (
	"context"
	"log"
	"time"

	"ai-video-studio/internal/config"
	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/adapter"
	provAdapters "ai-video-studio/internal/infra/adapters/provider"
	"ai-video-studio/internal/infra/logging"
	"ai-video-studio/internal/infra/memory"
	"ai-video-studio/internal/usecase"
)

// Runs a full pipeline end to end against simulated providers: the narration
// provider fails twice to show gateway retries, everything stays in memory.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &config.Config{Log: config.LogConfig{Level: "debug", Format: "console"}}
	cfg.ApplyDefaults()
	logger := logging.New(cfg.Log, true)

	// 1. Simulated providers, narration scripted to fail twice
	registry := provAdapters.NewRegistry()
	registry.Register(provAdapters.NewSimProvider("sim-script", model.CategoryScript), usecase.TierStandard)
	registry.Register(provAdapters.NewSimProvider("sim-narration", model.CategoryNarration,
		provAdapters.FailFirst(2)), usecase.TierStandard)
	registry.Register(provAdapters.NewSimProvider("sim-visual", model.CategoryVisual), usecase.TierStandard)
	registry.Register(provAdapters.NewSimProvider("sim-composition", model.CategoryComposition), usecase.TierStandard)

	// 2. Orchestration core on in-memory infrastructure
	orch := cfg.Orchestrator
	events := usecase.NewEventQueue(orch.EventBuffer, logger)
	circuits := usecase.NewCircuitBreakerManager(orch.Circuit, logger)
	monitor := usecase.NewPatienceMonitor(orch.Patience, orch.StallSweepInterval, events.Emit, logger)
	monitor.Start(ctx)

	gateway := usecase.NewProviderGateway(registry, circuits, memory.NewIdempotencyStore(), monitor,
		orch.Retry, orch.IdempotencyTTL, logger)
	saga := usecase.NewSagaCoordinator(logger)
	scheduler := usecase.NewPipelineScheduler(gateway, registry, memory.NewResultCache(), saga,
		usecase.SchedulerConfig{EnableCaching: true, CacheTTL: orch.CacheTTL}, logger)
	strategy := usecase.NewStrategySelector(staticTelemetry{}, orch.MaxConcurrentCalls, logger)
	runner := usecase.NewJobRunner(memory.NewJobRepo(), memory.NewFallbackRepo(),
		scheduler, strategy, saga, gateway, events, logger)

	// 3. Submit a four-stage pipeline
	spec := model.PipelineSpec{
		Title: "demo video",
		Stages: []model.StageSpec{
			{Kind: "script", Category: model.CategoryScript, Inputs: map[string]string{"topic": "the deep sea"}},
			{Kind: "narration", Category: model.CategoryNarration, DependsOn: []model.StageKind{"script"}},
			{Kind: "visual", Category: model.CategoryVisual, DependsOn: []model.StageKind{"script"}, Optional: true},
			{Kind: "composition", Category: model.CategoryComposition, DependsOn: []model.StageKind{"narration", "visual"}},
		},
	}
	jobID, err := runner.Submit(ctx, spec)
	if err != nil {
		log.Fatalf("submit: %v", err)
	}
	log.Printf("submitted job %s", jobID)

	// 4. Watch the event stream until the job reaches a terminal state
	deadline := time.After(30 * time.Second)
	for {
		select {
		case ev := <-events.Events():
			if jc, ok := ev.(model.JobChangedEvent); ok {
				log.Printf("job %s: status=%s stage=%q progress=%d%%",
					jc.Snapshot.ID, jc.Snapshot.Status, jc.Snapshot.Stage, jc.Snapshot.Progress)
				if jc.Snapshot.Status.Terminal() {
					log.Printf("output: %s", jc.Snapshot.OutputRef)
					return
				}
			} else {
				log.Printf("event %s for job %s", ev.Kind(), ev.Job())
			}
		case <-deadline:
			log.Fatalf("demo timed out")
		}
	}
}

// staticTelemetry reports an idle host so the demo always gets the full
// concurrency ceiling.
type staticTelemetry struct{}

func (staticTelemetry) Snapshot() adapter.ResourceSnapshot {
	return adapter.ResourceSnapshot{AvailableMiB: 4096, TakenAt: time.Now()}
}
