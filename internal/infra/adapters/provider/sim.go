package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-video-studio/internal/domain"
	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/adapter"
	"ai-video-studio/internal/usecase"
)

var (
	_ adapter.Provider    = (*SimProvider)(nil)
	_ adapter.Compensator = (*SimProvider)(nil)
)

// SimProvider fakes a generation backend. It emits heartbeats on a fixed
// cadence while "working" and can be scripted to fail the first N calls,
// which is how the demo and tests exercise retries, circuit trips and
// compensation without real credentials.
type SimProvider struct {
	id       string
	category model.StageCategory
	latency  time.Duration
	beats    int

	mu          sync.Mutex
	failFirst   int
	failFatal   bool
	calls       int
	compensated []string
}

type SimOption func(*SimProvider)

// WithLatency sets the total simulated work duration per call.
func WithLatency(d time.Duration) SimOption {
	return func(p *SimProvider) { p.latency = d }
}

// WithBeats sets how many heartbeats a call emits.
func WithBeats(n int) SimOption {
	return func(p *SimProvider) { p.beats = n }
}

// FailFirst makes the first n calls return a transient error.
func FailFirst(n int) SimOption {
	return func(p *SimProvider) { p.failFirst = n }
}

// FailFatalFirst makes the first n calls return a fatal error instead.
func FailFatalFirst(n int) SimOption {
	return func(p *SimProvider) { p.failFirst = n; p.failFatal = true }
}

func NewSimProvider(id string, category model.StageCategory, opts ...SimOption) *SimProvider {
	p := &SimProvider{id: id, category: category, latency: 50 * time.Millisecond, beats: 5}
	for _, o := range opts {
		o(p)
	}
	if p.beats < 1 {
		p.beats = 1
	}
	return p
}

func (p *SimProvider) ID() string { return p.id }
func (p *SimProvider) Category() model.StageCategory { return p.category }

func (p *SimProvider) Invoke(ctx context.Context, req adapter.Request, beat adapter.Heartbeat) (*model.StageResult, error) {
	p.mu.Lock()
	p.calls++
	fail := p.calls <= p.failFirst
	fatal := p.failFatal
	p.mu.Unlock()

	step := p.latency / time.Duration(p.beats)
	for i := 1; i <= p.beats; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(step):
		}
		if beat != nil {
			beat(float64(i) / float64(p.beats))
		}
	}

	if fail {
		if fatal {
			return nil, domain.Fatal(fmt.Errorf("%s: simulated fatal failure", p.id))
		}
		return nil, domain.Transient(fmt.Errorf("%s: simulated transient failure", p.id))
	}

	return &model.StageResult{
		Ref:        fmt.Sprintf("sim://%s/%s/%s", p.category, req.Stage, req.Fingerprint()[:12]),
		Detail:     fmt.Sprintf("simulated %s output for stage %q", p.category, req.Stage),
		ProviderID: p.id,
	}, nil
}

// Compensate records the released artifact so tests and the demo can assert
// rollbacks ran.
func (p *SimProvider) Compensate(ctx context.Context, res *model.StageResult) error {
	p.mu.Lock()
	p.compensated = append(p.compensated, res.Ref)
	p.mu.Unlock()
	return nil
}

// Calls reports how many times Invoke ran.
func (p *SimProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Compensated returns the refs released so far, oldest first.
func (p *SimProvider) Compensated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.compensated))
	copy(out, p.compensated)
	return out
}

// RegisterSimulated wires a full simulated provider set covering every stage
// category, used by the demo binary and by deployments without credentials.
func RegisterSimulated(reg *Registry, log *zerolog.Logger) {
	reg.Register(NewSimProvider("sim-script", model.CategoryScript), usecase.TierStandard)
	reg.Register(NewSimProvider("sim-narration", model.CategoryNarration), usecase.TierStandard)
	reg.Register(NewSimProvider("sim-visual", model.CategoryVisual), usecase.TierStandard)
	reg.Register(NewSimProvider("sim-composition", model.CategoryComposition), usecase.TierStandard)
	log.Info().Msg("registered simulated providers for all stage categories")
}
