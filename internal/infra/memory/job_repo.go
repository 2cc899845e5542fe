package memory

import (
	"context"
	"sync"

	"ai-video-studio/internal/domain"
	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*JobRepo)(nil)

// JobRepo is the in-memory JobRepository used by the demo binary and tests.
type JobRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Job
}

func NewJobRepo() *JobRepo {
	return &JobRepo{store: make(map[string]*model.Job)}
}

func (r *JobRepo) Save(ctx context.Context, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store[job.ID] = job.Clone()
	return nil
}

func (r *JobRepo) FindByID(ctx context.Context, id string) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return j.Clone(), nil
}

func (r *JobRepo) FindByStatus(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Job
	for _, j := range r.store {
		if j.Status == status {
			out = append(out, j.Clone())
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
