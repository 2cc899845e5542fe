package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-video-studio/internal/domain/model"
)

// Compensation undoes one committed side effect.
type Compensation func(ctx context.Context) error

// SagaCoordinator records committed side-effecting steps per job and, on
// terminal failure or cancellation, runs their compensations in reverse
// order. Compensation is best-effort: a failing compensation is logged and
// the remaining ones still run.
type SagaCoordinator struct {
	log *zerolog.Logger

	mu    sync.Mutex
	steps map[string][]*sagaStep
}

type sagaStep struct {
	rec  model.SagaStep
	comp Compensation
}

func NewSagaCoordinator(log *zerolog.Logger) *SagaCoordinator {
	return &SagaCoordinator{log: log, steps: make(map[string][]*sagaStep)}
}

// RecordStep appends a compensation for a side effect that just committed.
func (s *SagaCoordinator) RecordStep(jobID, name string, comp Compensation) string {
	step := &sagaStep{
		rec: model.SagaStep{
			ID:         uuid.NewString(),
			JobID:      jobID,
			Name:       name,
			RecordedAt: time.Now(),
		},
		comp: comp,
	}
	s.mu.Lock()
	s.steps[jobID] = append(s.steps[jobID], step)
	s.mu.Unlock()
	return step.rec.ID
}

// Compensate walks the job's recorded steps newest-first and invokes each
// compensation. Returns how many ran and how many of those failed.
func (s *SagaCoordinator) Compensate(ctx context.Context, jobID string) (executed, failed int) {
	s.mu.Lock()
	steps := s.steps[jobID]
	delete(s.steps, jobID)
	s.mu.Unlock()

	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		step.rec.Executed = true
		executed++
		if step.comp == nil {
			continue
		}
		if err := step.comp(ctx); err != nil {
			failed++
			if s.log != nil {
				s.log.Error().Err(err).
					Str("job_id", jobID).
					Str("step", step.rec.Name).
					Msg("compensation failed; continuing with remaining steps")
			}
		}
	}
	return executed, failed
}

// Steps returns copies of the recorded step metadata for a job.
func (s *SagaCoordinator) Steps(jobID string) []model.SagaStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SagaStep, 0, len(s.steps[jobID]))
	for _, st := range s.steps[jobID] {
		out = append(out, st.rec)
	}
	return out
}

// Clear drops recorded steps without running them (job finished cleanly).
func (s *SagaCoordinator) Clear(jobID string) {
	s.mu.Lock()
	delete(s.steps, jobID)
	s.mu.Unlock()
}
