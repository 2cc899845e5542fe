package usecase

import (
	"github.com/rs/zerolog"

	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/infra/metrics"
)

// EventQueue is the explicit outbound channel between the orchestration
// core and the notification layer. The core writes, the notification layer
// drains. When the consumer falls behind, the oldest event is dropped so
// the core never blocks on a slow sink.
type EventQueue struct {
	ch  chan model.Event
	log *zerolog.Logger
}

func NewEventQueue(size int, log *zerolog.Logger) *EventQueue {
	if size <= 0 {
		size = 256
	}
	return &EventQueue{ch: make(chan model.Event, size), log: log}
}

// Emit enqueues ev, evicting the oldest entry when the buffer is full.
func (q *EventQueue) Emit(ev model.Event) {
	for {
		select {
		case q.ch <- ev:
			return
		default:
		}
		select {
		case old := <-q.ch:
			metrics.IncEventDropped()
			if q.log != nil {
				q.log.Warn().
					Str("kind", string(old.Kind())).
					Str("job_id", old.Job()).
					Msg("outbound event dropped; notification consumer too slow")
			}
		default:
		}
	}
}

// Events is the drain side, consumed by the notification layer.
func (q *EventQueue) Events() <-chan model.Event { return q.ch }
