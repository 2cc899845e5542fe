package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/repository"
)

var _ repository.ResultCache = (*ResultCacheRepo)(nil)

// ResultCacheRepo stores task results in Redis so identical stage work is
// shared across jobs and process restarts.
type ResultCacheRepo struct {
	client RedisClient
}

func NewResultCacheRepo(client RedisClient) *ResultCacheRepo {
	return &ResultCacheRepo{client: client}
}

func cacheKey(key string) string { return fmt.Sprintf("task_cache:%s", key) }

func (r *ResultCacheRepo) Get(ctx context.Context, key string) (*model.StageResult, error) {
	raw, err := r.client.Get(ctx, cacheKey(key))
	if err != nil {
		if IsNil(err) {
			return nil, nil
		}
		return nil, err
	}
	var res model.StageResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("decode cached result: %w", err)
	}
	return &res, nil
}

func (r *ResultCacheRepo) Set(ctx context.Context, key string, res *model.StageResult, ttl time.Duration) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return r.client.Set(ctx, cacheKey(key), data, ttl)
}
