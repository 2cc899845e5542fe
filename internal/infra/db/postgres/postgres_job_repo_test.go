//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-video-studio/internal/domain"
	"ai-video-studio/internal/domain/model"
)

func TestJobRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewJobRepo(testPool)
	ctx := context.Background()

	t.Run("should perform full upsert cycle", func(t *testing.T) {
		cleanup(t)

		now := time.Now().UTC().Truncate(time.Microsecond)
		job := &model.Job{
			ID:            "job-1",
			Status:        model.JobStatusQueued,
			CorrelationID: "corr-1",
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := repo.Save(ctx, job); err != nil {
			t.Fatalf("Failed to save new job: %v", err)
		}

		found, err := repo.FindByID(ctx, "job-1")
		if err != nil {
			t.Fatalf("Failed to find job by ID: %v", err)
		}
		if found.Status != model.JobStatusQueued || found.CorrelationID != "corr-1" {
			t.Errorf("Loaded job mismatch: %+v", found)
		}
		if !found.StartedAt.IsZero() || !found.FinishedAt.IsZero() {
			t.Errorf("Expected zero start/finish times, got %v / %v", found.StartedAt, found.FinishedAt)
		}

		job.Status = model.JobStatusDone
		job.Stage = "composition"
		job.Progress = 100
		job.OutputRef = "ref://final"
		job.Compensation = model.CompensationNone
		job.StartedAt = now
		job.FinishedAt = now.Add(time.Minute)
		job.UpdatedAt = now.Add(time.Minute)
		if err := repo.Save(ctx, job); err != nil {
			t.Fatalf("Failed to update job: %v", err)
		}

		found, err = repo.FindByID(ctx, "job-1")
		if err != nil {
			t.Fatalf("Failed to re-find job: %v", err)
		}
		if found.Status != model.JobStatusDone || found.Progress != 100 || found.OutputRef != "ref://final" {
			t.Errorf("Updated job mismatch: %+v", found)
		}
		if !found.FinishedAt.Equal(now.Add(time.Minute)) {
			t.Errorf("FinishedAt = %v, want %v", found.FinishedAt, now.Add(time.Minute))
		}
	})

	t.Run("should return ErrNotFound for a missing job", func(t *testing.T) {
		cleanup(t)
		_, err := repo.FindByID(ctx, "no-such-job")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Expected domain.ErrNotFound, got %v", err)
		}
	})

	t.Run("should list jobs by status", func(t *testing.T) {
		cleanup(t)

		now := time.Now().UTC().Truncate(time.Microsecond)
		for i, status := range []model.JobStatus{
			model.JobStatusRunning, model.JobStatusRunning, model.JobStatusDone,
		} {
			job := &model.Job{
				ID:            string(rune('a' + i)),
				Status:        status,
				CorrelationID: "corr",
				CreatedAt:     now.Add(time.Duration(i) * time.Second),
				UpdatedAt:     now,
			}
			if err := repo.Save(ctx, job); err != nil {
				t.Fatalf("Failed to save job %d: %v", i, err)
			}
		}

		running, err := repo.FindByStatus(ctx, model.JobStatusRunning, 10)
		if err != nil {
			t.Fatalf("FindByStatus failed: %v", err)
		}
		if len(running) != 2 {
			t.Errorf("Expected 2 running jobs, got %d", len(running))
		}
		limited, err := repo.FindByStatus(ctx, model.JobStatusRunning, 1)
		if err != nil {
			t.Fatalf("FindByStatus with limit failed: %v", err)
		}
		if len(limited) != 1 || limited[0].ID != "a" {
			t.Errorf("Expected the oldest running job, got %+v", limited)
		}
	})
}

func TestFallbackRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewFallbackRepo(testPool)
	ctx := context.Background()

	t.Run("should append and list decisions in order", func(t *testing.T) {
		cleanup(t)

		now := time.Now().UTC().Truncate(time.Microsecond)
		first := &model.FallbackDecision{
			ID: "d-1", JobID: "job-1", Category: model.CategoryVisual,
			FromProvider: "sora", ToProvider: "sdxl-local",
			Reason: model.FallbackUserAfterStall, UserConfirmed: true, CreatedAt: now,
		}
		second := &model.FallbackDecision{
			ID: "d-2", JobID: "job-1", Category: model.CategoryNarration,
			FromProvider: "elevenlabs", ToProvider: "local-tts",
			Reason: model.FallbackProviderFatalError, CreatedAt: now.Add(time.Second),
		}
		for _, d := range []*model.FallbackDecision{second, first} {
			if err := repo.Append(ctx, d); err != nil {
				t.Fatalf("Append failed: %v", err)
			}
		}

		decisions, err := repo.FindByJob(ctx, "job-1")
		if err != nil {
			t.Fatalf("FindByJob failed: %v", err)
		}
		if len(decisions) != 2 {
			t.Fatalf("Expected 2 decisions, got %d", len(decisions))
		}
		if decisions[0].ID != "d-1" || decisions[1].ID != "d-2" {
			t.Errorf("Decisions out of order: %s, %s", decisions[0].ID, decisions[1].ID)
		}
		if decisions[0].ToProvider != "sdxl-local" || !decisions[0].UserConfirmed {
			t.Errorf("First decision mismatch: %+v", decisions[0])
		}

		other, err := repo.FindByJob(ctx, "job-2")
		if err != nil {
			t.Fatalf("FindByJob for empty job failed: %v", err)
		}
		if len(other) != 0 {
			t.Errorf("Expected no decisions for job-2, got %d", len(other))
		}
	})
}
