package memory

import (
	"context"
	"sync"

	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/repository"
)

var _ repository.FallbackDecisionRepository = (*FallbackRepo)(nil)

// FallbackRepo keeps fallback decisions in memory, append-only.
type FallbackRepo struct {
	mu    sync.RWMutex
	byJob map[string][]*model.FallbackDecision
}

func NewFallbackRepo() *FallbackRepo {
	return &FallbackRepo{byJob: make(map[string][]*model.FallbackDecision)}
}

func (r *FallbackRepo) Append(ctx context.Context, d *model.FallbackDecision) error {
	cp := *d
	r.mu.Lock()
	r.byJob[d.JobID] = append(r.byJob[d.JobID], &cp)
	r.mu.Unlock()
	return nil
}

func (r *FallbackRepo) FindByJob(ctx context.Context, jobID string) ([]*model.FallbackDecision, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src := r.byJob[jobID]
	out := make([]*model.FallbackDecision, len(src))
	for i, d := range src {
		cp := *d
		out[i] = &cp
	}
	return out, nil
}
