package repository

import (
	"context"

	"ai-video-studio/internal/domain/model"
)

// FallbackDecisionRepository is append-only; decisions are never updated or
// deleted by the core.
type FallbackDecisionRepository interface {
	Append(ctx context.Context, d *model.FallbackDecision) error
	FindByJob(ctx context.Context, jobID string) ([]*model.FallbackDecision, error)
}
