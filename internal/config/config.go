package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"ai-video-studio/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type OpsConfig struct {
	Port int `yaml:"port"`
}

// CircuitConfig is the breaker profile shared by all providers.
type CircuitConfig struct {
	FailureThreshold  int           `yaml:"failure_threshold"`   // consecutive failures to open
	FailureRateWindow int           `yaml:"failure_rate_window"` // size of the sliding call window
	FailureRateLimit  float64       `yaml:"failure_rate_limit"`  // open when window rate >= limit
	Cooldown          time.Duration `yaml:"cooldown"`
	CooldownGrowth    float64       `yaml:"cooldown_growth"` // multiplier applied on repeated opens
	MaxCooldown       time.Duration `yaml:"max_cooldown"`
}

// RetryConfig bounds transient-error retries at the gateway.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// OrchestratorConfig is the core scheduling surface.
type OrchestratorConfig struct {
	MaxConcurrentCalls        int                                           `yaml:"max_concurrent_calls"`
	EnableCaching             bool                                          `yaml:"enable_caching"`
	CacheTTL                  time.Duration                                 `yaml:"cache_ttl"`
	IdempotencyTTL            time.Duration                                 `yaml:"idempotency_ttl"`
	ContinueOnOptionalFailure bool                                          `yaml:"continue_on_optional_failure"`
	EventBuffer               int                                           `yaml:"event_buffer"`
	Retry                     RetryConfig                                   `yaml:"retry"`
	Circuit                   CircuitConfig                                 `yaml:"circuit"`
	Patience                  map[model.StageCategory]model.PatienceProfile `yaml:"patience"`
	StallSweepInterval        time.Duration                                 `yaml:"stall_sweep_interval"`
	TelemetryInterval         time.Duration                                 `yaml:"telemetry_interval"`
}

type ProvidersConfig struct {
	OpenAIKey   string `yaml:"openai_key"`
	OpenAIModel string `yaml:"openai_model"`
	GeminiKey   string `yaml:"gemini_key"`
	GeminiURL   string `yaml:"gemini_url"`
	GeminiModel string `yaml:"gemini_model"`
	Simulated   bool   `yaml:"simulated"` // wire simulated providers for every category
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chat_id"`
}

type Config struct {
	Log          LogConfig          `yaml:"log"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Ops          OpsConfig          `yaml:"ops"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Telegram     TelegramConfig     `yaml:"telegram"`

	Runtime RuntimeConfig `yaml:"-"`
}

// DefaultPatience is applied to categories the config file leaves out.
// Local models get long leashes elsewhere; these suit cloud providers.
func DefaultPatience() model.PatienceProfile {
	return model.PatienceProfile{
		NormalThreshold:   30 * time.Second,
		ExtendedThreshold: 2 * time.Minute,
		DeepWaitThreshold: 5 * time.Minute,
		HeartbeatInterval: 15 * time.Second,
		StallMultiplier:   3,
	}
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if !cfg.Providers.Simulated && cfg.Providers.OpenAIKey == "" && cfg.Providers.GeminiKey == "" {
		return nil, errors.New("providers: need simulated=true or at least one API key")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// ApplyDefaults fills zero values in place. Exported so the demo binary and
// tests can build a config without a file.
func (cfg *Config) ApplyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Ops.Port <= 0 {
		cfg.Ops.Port = 9090
	}

	o := &cfg.Orchestrator
	if o.MaxConcurrentCalls <= 0 {
		o.MaxConcurrentCalls = runtime.NumCPU() / 2
		if o.MaxConcurrentCalls < 1 {
			o.MaxConcurrentCalls = 1
		}
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = time.Hour
	}
	if o.IdempotencyTTL <= 0 {
		o.IdempotencyTTL = 24 * time.Hour
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 256
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry.MaxAttempts = 3
	}
	if o.Retry.InitialBackoff <= 0 {
		o.Retry.InitialBackoff = 500 * time.Millisecond
	}
	if o.Retry.MaxBackoff <= 0 {
		o.Retry.MaxBackoff = 30 * time.Second
	}
	if o.Circuit.FailureThreshold <= 0 {
		o.Circuit.FailureThreshold = 5
	}
	if o.Circuit.FailureRateWindow <= 0 {
		o.Circuit.FailureRateWindow = 20
	}
	if o.Circuit.FailureRateLimit <= 0 {
		o.Circuit.FailureRateLimit = 0.5
	}
	if o.Circuit.Cooldown <= 0 {
		o.Circuit.Cooldown = 30 * time.Second
	}
	if o.Circuit.CooldownGrowth < 1 {
		o.Circuit.CooldownGrowth = 2
	}
	if o.Circuit.MaxCooldown <= 0 {
		o.Circuit.MaxCooldown = 10 * time.Minute
	}
	if o.StallSweepInterval <= 0 {
		o.StallSweepInterval = time.Second
	}
	if o.TelemetryInterval <= 0 {
		o.TelemetryInterval = 5 * time.Second
	}
	if o.Patience == nil {
		o.Patience = map[model.StageCategory]model.PatienceProfile{}
	}
	for _, cat := range []model.StageCategory{
		model.CategoryScript, model.CategoryNarration,
		model.CategoryVisual, model.CategoryComposition,
	} {
		p := o.Patience[cat]
		if p.HeartbeatInterval <= 0 {
			p = DefaultPatience()
		}
		if p.StallMultiplier <= 0 {
			p.StallMultiplier = 3
		}
		o.Patience[cat] = p
	}

	if cfg.Providers.OpenAIModel == "" {
		cfg.Providers.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.Providers.GeminiModel == "" {
		cfg.Providers.GeminiModel = "gemini-2.0-flash"
	}
}
