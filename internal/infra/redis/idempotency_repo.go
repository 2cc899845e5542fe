package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ai-video-studio/internal/domain"
	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/repository"
)

var _ repository.IdempotencyStore = (*IdempotencyRepo)(nil)

// IdempotencyRepo implements the idempotency store on Redis. The
// reservation is a SETNX key scoped to key+fingerprint; losers of the race
// poll until the winner commits a result, aborts, or the reservation TTL
// lapses.
type IdempotencyRepo struct {
	client       RedisClient
	reserveTTL   time.Duration
	pollInterval time.Duration
}

func NewIdempotencyRepo(client RedisClient) *IdempotencyRepo {
	return &IdempotencyRepo{
		client:       client,
		reserveTTL:   10 * time.Minute, // longest tolerated single provider call
		pollInterval: 200 * time.Millisecond,
	}
}

func dataKey(key, fp string) string { return fmt.Sprintf("idem:data:%s:%s", key, fp) }
func rsvKey(key, fp string) string  { return fmt.Sprintf("idem:rsv:%s:%s", key, fp) }

func (r *IdempotencyRepo) GetOrReserve(ctx context.Context, key, fingerprint string) (*model.StageResult, *repository.Reservation, error) {
	dk, rk := dataKey(key, fingerprint), rsvKey(key, fingerprint)
	token := uuid.NewString()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		raw, err := r.client.Get(ctx, dk)
		if err == nil {
			var res model.StageResult
			if uerr := json.Unmarshal([]byte(raw), &res); uerr != nil {
				return nil, nil, fmt.Errorf("decode cached result: %w", uerr)
			}
			return &res, nil, nil
		}
		if !IsNil(err) {
			return nil, nil, err
		}

		ok, err := r.client.SetNX(ctx, rk, token, r.reserveTTL)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			return nil, &repository.Reservation{Token: token, Key: key, Fingerprint: fingerprint}, nil
		}

		// Another caller holds the reservation; wait and re-check.
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *IdempotencyRepo) Commit(ctx context.Context, rsv *repository.Reservation, res *model.StageResult, ttl time.Duration) error {
	rk := rsvKey(rsv.Key, rsv.Fingerprint)
	holder, err := r.client.Get(ctx, rk)
	if err != nil || holder != rsv.Token {
		return domain.ErrReservationExpired
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := r.client.Set(ctx, dataKey(rsv.Key, rsv.Fingerprint), data, ttl); err != nil {
		return err
	}
	return r.client.Del(ctx, rk)
}

func (r *IdempotencyRepo) Abort(ctx context.Context, rsv *repository.Reservation) error {
	rk := rsvKey(rsv.Key, rsv.Fingerprint)
	holder, err := r.client.Get(ctx, rk)
	if err != nil || holder != rsv.Token {
		return nil // expired or taken over; nothing to release
	}
	return r.client.Del(ctx, rk)
}
