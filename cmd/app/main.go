package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-video-studio/internal/config"
	"ai-video-studio/internal/domain/ports/adapter"
	provAdapters "ai-video-studio/internal/infra/adapters/provider"
	"ai-video-studio/internal/infra/api"
	pg "ai-video-studio/internal/infra/db/postgres"
	"ai-video-studio/internal/infra/logging"
	"ai-video-studio/internal/infra/notify"
	red "ai-video-studio/internal/infra/redis"
	"ai-video-studio/internal/infra/telemetry"
	"ai-video-studio/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, debug level)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := pg.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("postgres schema: %v", err)
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()

	// ---- Repositories ----
	jobRepo := pg.NewJobRepo(pool)
	fallbackRepo := pg.NewFallbackRepo(pool)
	idemStore := red.NewIdempotencyRepo(redisClient)
	resultCache := red.NewResultCacheRepo(redisClient)

	// ---- Providers ----
	registry := provAdapters.NewRegistry()
	if cfg.Providers.OpenAIKey != "" {
		script, err := provAdapters.NewOpenAIScriptProvider(cfg.Providers.OpenAIKey, cfg.Providers.OpenAIModel)
		if err != nil {
			log.Fatalf("openai provider: %v", err)
		}
		registry.Register(script, usecase.TierPremium)
		logger.Info().Str("model", cfg.Providers.OpenAIModel).Msg("registered openai script provider")
	}
	if cfg.Providers.GeminiKey != "" {
		visual, err := provAdapters.NewGeminiVisualProvider(ctx, cfg.Providers.GeminiKey, cfg.Providers.GeminiURL, cfg.Providers.GeminiModel)
		if err != nil {
			log.Fatalf("gemini provider: %v", err)
		}
		registry.Register(visual, usecase.TierPremium)
		logger.Info().Str("model", cfg.Providers.GeminiModel).Msg("registered gemini visual provider")
	}
	if cfg.Providers.Simulated {
		provAdapters.RegisterSimulated(registry, logger)
	}

	// ---- Orchestration core ----
	orch := cfg.Orchestrator
	events := usecase.NewEventQueue(orch.EventBuffer, logger)
	circuits := usecase.NewCircuitBreakerManager(orch.Circuit, logger)
	monitor := usecase.NewPatienceMonitor(orch.Patience, orch.StallSweepInterval, events.Emit, logger)
	monitor.Start(ctx)

	gateway := usecase.NewProviderGateway(registry, circuits, idemStore, monitor, orch.Retry, orch.IdempotencyTTL, logger)
	saga := usecase.NewSagaCoordinator(logger)
	scheduler := usecase.NewPipelineScheduler(gateway, registry, resultCache, saga, usecase.SchedulerConfig{
		EnableCaching:             orch.EnableCaching,
		CacheTTL:                  orch.CacheTTL,
		ContinueOnOptionalFailure: orch.ContinueOnOptionalFailure,
	}, logger)

	// The sampler reads the runner's queue depth and the runner's strategy
	// selector reads the sampler, so wire the depth probe through a closure.
	var runner *usecase.JobRunner
	sampler := telemetry.NewSampler(orch.TelemetryInterval, func() int {
		if runner == nil {
			return 0
		}
		return runner.ActiveJobs()
	}, logger)
	strategy := usecase.NewStrategySelector(sampler, orch.MaxConcurrentCalls, logger)
	runner = usecase.NewJobRunner(jobRepo, fallbackRepo, scheduler, strategy, saga, gateway, events, logger)
	sampler.Start(ctx)

	// ---- Notifications ----
	sinks := []adapter.NotificationSink{notify.NewLogSink(logger)}
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegramSink(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			log.Fatalf("telegram sink: %v", err)
		}
		sinks = append(sinks, tg)
	}
	dispatcher := notify.NewDispatcher(events.Events(), logger, sinks...)
	dispatcher.Start(ctx)

	// ---- Ops server ----
	ops := api.NewServer(cfg.Ops, logger)
	ops.AddReadyCheck("postgres", func(ctx context.Context) error { return pool.Ping(ctx) })
	ops.AddReadyCheck("redis", redisClient.Ping)
	go func() {
		if err := ops.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("ops server stopped")
		}
	}()

	logger.Info().Msg("studio core up")

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := ops.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("ops server shutdown")
	}
	if err := runner.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("jobs still running at shutdown deadline")
	}
	cancel()
	monitor.Stop()
	sampler.Stop()
	dispatcher.Stop()
	logger.Info().Msg("studio core down")
}
