package adapter

import (
	"context"

	"ai-video-studio/internal/domain/model"
)

// NotificationSink receives orchestration events. Delivery transport is the
// sink's concern; the core only guarantees per-job ordering of what it emits.
type NotificationSink interface {
	Publish(ctx context.Context, ev model.Event) error
}
