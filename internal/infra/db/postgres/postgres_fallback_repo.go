package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/repository"
)

var _ repository.FallbackDecisionRepository = (*fallbackRepo)(nil)

type fallbackRepo struct {
	pool *pgxpool.Pool
}

func NewFallbackRepo(pool *pgxpool.Pool) *fallbackRepo {
	return &fallbackRepo{pool: pool}
}

func (r *fallbackRepo) Append(ctx context.Context, d *model.FallbackDecision) error {
	const q = `
INSERT INTO fallback_decisions (id, job_id, category, from_provider, to_provider, reason, user_confirmed, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`
	_, err := r.pool.Exec(ctx, q,
		d.ID, d.JobID, string(d.Category), d.FromProvider, d.ToProvider,
		string(d.Reason), d.UserConfirmed, d.CreatedAt)
	return err
}

func (r *fallbackRepo) FindByJob(ctx context.Context, jobID string) ([]*model.FallbackDecision, error) {
	const q = `
SELECT id, job_id, category, from_provider, to_provider, reason, user_confirmed, created_at
FROM fallback_decisions WHERE job_id = $1 ORDER BY created_at;`
	rows, err := r.pool.Query(ctx, q, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.FallbackDecision
	for rows.Next() {
		var (
			d                model.FallbackDecision
			category, reason string
		)
		if err := rows.Scan(&d.ID, &d.JobID, &category, &d.FromProvider, &d.ToProvider,
			&reason, &d.UserConfirmed, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Category = model.StageCategory(category)
		d.Reason = model.FallbackReason(reason)
		out = append(out, &d)
	}
	return out, rows.Err()
}
