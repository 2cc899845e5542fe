package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-video-studio/internal/domain"
	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

func (r *jobRepo) Save(ctx context.Context, job *model.Job) error {
	const q = `
INSERT INTO jobs (id, status, stage, progress, correlation_id, output_ref, error_detail, compensation,
                  created_at, started_at, finished_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
  status       = EXCLUDED.status,
  stage        = EXCLUDED.stage,
  progress     = EXCLUDED.progress,
  output_ref   = EXCLUDED.output_ref,
  error_detail = EXCLUDED.error_detail,
  compensation = EXCLUDED.compensation,
  started_at   = EXCLUDED.started_at,
  finished_at  = EXCLUDED.finished_at,
  updated_at   = EXCLUDED.updated_at;`

	_, err := r.pool.Exec(ctx, q,
		job.ID, string(job.Status), job.Stage, job.Progress, job.CorrelationID,
		job.OutputRef, job.ErrorDetail, string(job.Compensation),
		job.CreatedAt, nullTime(job.StartedAt), nullTime(job.FinishedAt), job.UpdatedAt)
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, id string) (*model.Job, error) {
	const q = `
SELECT id, status, stage, progress, correlation_id, output_ref, error_detail, compensation,
       created_at, started_at, finished_at, updated_at
FROM jobs WHERE id = $1;`
	return scanJob(r.pool.QueryRow(ctx, q, id))
}

func (r *jobRepo) FindByStatus(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error) {
	const q = `
SELECT id, status, stage, progress, correlation_id, output_ref, error_detail, compensation,
       created_at, started_at, finished_at, updated_at
FROM jobs WHERE status = $1 ORDER BY created_at LIMIT $2;`
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, q, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		job               model.Job
		status, comp      string
		started, finished sql.NullTime
	)
	err := row.Scan(
		&job.ID, &status, &job.Stage, &job.Progress, &job.CorrelationID,
		&job.OutputRef, &job.ErrorDetail, &comp,
		&job.CreatedAt, &started, &finished, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Status = model.JobStatus(status)
	job.Compensation = model.CompensationState(comp)
	if started.Valid {
		job.StartedAt = started.Time
	}
	if finished.Valid {
		job.FinishedAt = finished.Time
	}
	return &job, nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
