package memory

import (
	"context"
	"sync"
	"time"

	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/repository"
)

var _ repository.ResultCache = (*ResultCache)(nil)

// ResultCache is a TTL map for task results.
type ResultCache struct {
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	res    model.StageResult
	expiry time.Time
}

func NewResultCache() *ResultCache {
	return &ResultCache{now: time.Now, entries: make(map[string]cacheEntry)}
}

func (c *ResultCache) Get(ctx context.Context, key string) (*model.StageResult, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiry) {
		return nil, nil
	}
	res := e.res
	return &res, nil
}

func (c *ResultCache) Set(ctx context.Context, key string, res *model.StageResult, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[key] = cacheEntry{res: *res, expiry: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}
