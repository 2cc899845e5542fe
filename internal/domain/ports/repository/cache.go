package repository

import (
	"context"
	"time"

	"ai-video-studio/internal/domain/model"
)

// ResultCache holds per-task results keyed by (stage kind, normalized
// inputs) so identical work is not re-executed across jobs. A miss is
// (nil, nil).
type ResultCache interface {
	Get(ctx context.Context, key string) (*model.StageResult, error)
	Set(ctx context.Context, key string, res *model.StageResult, ttl time.Duration) error
}
