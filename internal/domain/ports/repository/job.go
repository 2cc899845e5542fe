package repository

import (
	"context"

	"ai-video-studio/internal/domain/model"
)

// JobRepository persists job records. Save is an upsert keyed by job id.
type JobRepository interface {
	Save(ctx context.Context, job *model.Job) error
	FindByID(ctx context.Context, id string) (*model.Job, error)
	FindByStatus(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error)
}
