package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/adapter"
)

const publishTimeout = 5 * time.Second

// Dispatcher fans job events out to the configured sinks. A failing sink is
// logged and skipped; it never stalls the queue or the other sinks.
type Dispatcher struct {
	events <-chan model.Event
	sinks  []adapter.NotificationSink
	log    *zerolog.Logger
	done   chan struct{}
}

func NewDispatcher(events <-chan model.Event, log *zerolog.Logger, sinks ...adapter.NotificationSink) *Dispatcher {
	return &Dispatcher{events: events, sinks: sinks, log: log, done: make(chan struct{})}
}

// Start consumes events until ctx is cancelled, then drains whatever is
// already buffered before exiting.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		defer close(d.done)
		for {
			select {
			case <-ctx.Done():
				d.drain()
				return
			case ev, ok := <-d.events:
				if !ok {
					return
				}
				d.publish(ev)
			}
		}
	}()
}

// Stop blocks until the dispatch loop has exited.
func (d *Dispatcher) Stop() { <-d.done }

func (d *Dispatcher) drain() {
	for {
		select {
		case ev, ok := <-d.events:
			if !ok {
				return
			}
			d.publish(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(ev model.Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := sink.Publish(ctx, ev); err != nil {
			d.log.Warn().Err(err).
				Str("kind", string(ev.Kind())).
				Str("job_id", ev.Job()).
				Msg("notification sink failed")
		}
		cancel()
	}
}
