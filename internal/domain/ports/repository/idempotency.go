package repository

import (
	"context"
	"time"

	"ai-video-studio/internal/domain/model"
)

// Reservation is the token the first caller holds while it executes the
// underlying side effect. Concurrent callers with the same key+fingerprint
// wait for its commit instead of executing again.
type Reservation struct {
	Token       string
	Key         string
	Fingerprint string
}

// IdempotencyStore deduplicates side-effecting calls. GetOrReserve returns
// either a cached result (res != nil), or a reservation the caller must
// Commit or Abort. When another caller holds the reservation, GetOrReserve
// blocks until that caller commits, aborts, or the reservation expires.
type IdempotencyStore interface {
	GetOrReserve(ctx context.Context, key, fingerprint string) (res *model.StageResult, rsv *Reservation, err error)
	Commit(ctx context.Context, rsv *Reservation, res *model.StageResult, ttl time.Duration) error
	Abort(ctx context.Context, rsv *Reservation) error
}
