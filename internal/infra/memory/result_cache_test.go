//go:build !integration

package memory

import (
	"context"
	"testing"
	"time"

	"ai-video-studio/internal/domain/model"
)

func TestResultCache_TTL(t *testing.T) {
	c := NewResultCache()
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if res, err := c.Get(ctx, "k"); err != nil || res != nil {
		t.Fatalf("miss: res=%v err=%v", res, err)
	}

	if err := c.Set(ctx, "k", &model.StageResult{Ref: "ref://x"}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	res, err := c.Get(ctx, "k")
	if err != nil || res == nil || res.Ref != "ref://x" {
		t.Fatalf("hit: res=%v err=%v", res, err)
	}

	now = now.Add(2 * time.Minute)
	if res, _ := c.Get(ctx, "k"); res != nil {
		t.Fatalf("expired entry served: %+v", res)
	}
}
