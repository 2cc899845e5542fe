package provider

import (
	"sync"

	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/adapter"
	"ai-video-studio/internal/usecase"
)

var _ usecase.ProviderRegistry = (*Registry)(nil)

// Registry is the capability set the scheduler and gateway query. A stage
// category with no registered provider is an absent capability: optional
// stages needing it are dropped at DAG build, mandatory ones fail the job
// structurally.
type Registry struct {
	mu         sync.RWMutex
	byCategory map[model.StageCategory][]registered
}

type registered struct {
	prov adapter.Provider
	tier usecase.ProviderTier
}

func NewRegistry() *Registry {
	return &Registry{byCategory: make(map[model.StageCategory][]registered)}
}

// Register adds a provider under its category with a cost/quality tier.
func (r *Registry) Register(p adapter.Provider, tier usecase.ProviderTier) {
	r.mu.Lock()
	r.byCategory[p.Category()] = append(r.byCategory[p.Category()], registered{prov: p, tier: tier})
	r.mu.Unlock()
}

func (r *Registry) Lookup(category model.StageCategory, id string) (adapter.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, reg := range r.byCategory[category] {
		if reg.prov.ID() == id {
			return reg.prov, true
		}
	}
	return nil, false
}

// Default picks the provider a fresh job should lock onto: the first
// registered provider matching the requested tier, or the first registered
// at all when no tier matches.
func (r *Registry) Default(category model.StageCategory, tier usecase.ProviderTier) (adapter.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	regs := r.byCategory[category]
	if len(regs) == 0 {
		return nil, false
	}
	for _, reg := range regs {
		if reg.tier == tier {
			return reg.prov, true
		}
	}
	return regs[0].prov, true
}

func (r *Registry) Has(category model.StageCategory) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCategory[category]) > 0
}
