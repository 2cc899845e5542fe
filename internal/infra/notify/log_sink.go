package notify

import (
	"context"

	"github.com/rs/zerolog"

	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/adapter"
)

var _ adapter.NotificationSink = (*LogSink)(nil)

// LogSink writes every event to the structured log. Always wired; it is the
// floor of observability when no external sink is configured.
type LogSink struct {
	log *zerolog.Logger
}

func NewLogSink(log *zerolog.Logger) *LogSink { return &LogSink{log: log} }

func (s *LogSink) Publish(_ context.Context, ev model.Event) error {
	switch e := ev.(type) {
	case model.JobChangedEvent:
		s.log.Info().
			Str("job_id", e.Snapshot.ID).
			Str("status", string(e.Snapshot.Status)).
			Str("stage", e.Snapshot.Stage).
			Int("progress", e.Snapshot.Progress).
			Msg("job changed")
	case model.StallSuspectedEvent:
		s.log.Warn().
			Str("job_id", e.JobID).
			Str("provider_id", e.ProviderID).
			Str("category", string(e.Category)).
			Dur("elapsed", e.Elapsed).
			Msg("stall suspected")
	case model.FallbackAppliedEvent:
		s.log.Info().
			Str("job_id", e.Decision.JobID).
			Str("category", string(e.Decision.Category)).
			Str("from", e.Decision.FromProvider).
			Str("to", e.Decision.ToProvider).
			Str("reason", string(e.Decision.Reason)).
			Msg("fallback applied")
	default:
		s.log.Info().Str("kind", string(ev.Kind())).Str("job_id", ev.Job()).Msg("event")
	}
	return nil
}
