package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/adapter"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// fakeTelemetry returns a fixed snapshot.
type fakeTelemetry struct {
	snap adapter.ResourceSnapshot
}

func (f *fakeTelemetry) Snapshot() adapter.ResourceSnapshot { return f.snap }

func idleTelemetry() *fakeTelemetry {
	return &fakeTelemetry{snap: adapter.ResourceSnapshot{AvailableMiB: 8192, TakenAt: time.Now()}}
}

// fakeProvider is a scriptable provider for unit tests. invoke, when set,
// overrides the default success response.
type fakeProvider struct {
	id       string
	category model.StageCategory
	invoke   func(ctx context.Context, req adapter.Request, beat adapter.Heartbeat) (*model.StageResult, error)

	mu    sync.Mutex
	calls int
}

func newFakeProvider(id string, category model.StageCategory) *fakeProvider {
	return &fakeProvider{id: id, category: category}
}

func (f *fakeProvider) ID() string                    { return f.id }
func (f *fakeProvider) Category() model.StageCategory { return f.category }

func (f *fakeProvider) Invoke(ctx context.Context, req adapter.Request, beat adapter.Heartbeat) (*model.StageResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.invoke != nil {
		return f.invoke(ctx, req, beat)
	}
	return &model.StageResult{
		Ref:        "ref://" + f.id + "/" + string(req.Stage),
		ProviderID: f.id,
	}, nil
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// compProvider is a fakeProvider that also records compensations.
type compProvider struct {
	*fakeProvider

	compMu      sync.Mutex
	compErr     error
	compensated []string
}

func newCompProvider(id string, category model.StageCategory) *compProvider {
	return &compProvider{fakeProvider: newFakeProvider(id, category)}
}

func (c *compProvider) Compensate(ctx context.Context, res *model.StageResult) error {
	c.compMu.Lock()
	defer c.compMu.Unlock()
	c.compensated = append(c.compensated, res.Ref)
	return c.compErr
}

func (c *compProvider) Compensated() []string {
	c.compMu.Lock()
	defer c.compMu.Unlock()
	out := make([]string, len(c.compensated))
	copy(out, c.compensated)
	return out
}

// fakeRegistry maps categories to providers in registration order.
type fakeRegistry struct {
	mu    sync.Mutex
	provs map[model.StageCategory][]adapter.Provider
}

func newFakeRegistry(provs ...adapter.Provider) *fakeRegistry {
	r := &fakeRegistry{provs: make(map[model.StageCategory][]adapter.Provider)}
	for _, p := range provs {
		r.add(p)
	}
	return r
}

func (r *fakeRegistry) add(p adapter.Provider) {
	r.mu.Lock()
	r.provs[p.Category()] = append(r.provs[p.Category()], p)
	r.mu.Unlock()
}

func (r *fakeRegistry) Lookup(category model.StageCategory, id string) (adapter.Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.provs[category] {
		if p.ID() == id {
			return p, true
		}
	}
	return nil, false
}

func (r *fakeRegistry) Default(category model.StageCategory, _ ProviderTier) (adapter.Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ps := r.provs[category]; len(ps) > 0 {
		return ps[0], true
	}
	return nil, false
}

func (r *fakeRegistry) Has(category model.StageCategory) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.provs[category]) > 0
}
