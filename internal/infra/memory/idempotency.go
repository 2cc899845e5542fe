package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-video-studio/internal/domain"
	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/repository"
)

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore is the in-memory implementation. A waiting caller blocks
// on the reservation holder's done channel, so two concurrent identical
// requests execute the underlying side effect exactly once.
type IdempotencyStore struct {
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*idemEntry
}

type idemEntry struct {
	token     string
	res       *model.StageResult
	committed bool
	expiry    time.Time
	done      chan struct{}
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{now: time.Now, entries: make(map[string]*idemEntry)}
}

func idemKey(key, fingerprint string) string { return key + "\x00" + fingerprint }

func (s *IdempotencyStore) GetOrReserve(ctx context.Context, key, fingerprint string) (*model.StageResult, *repository.Reservation, error) {
	k := idemKey(key, fingerprint)
	for {
		s.mu.Lock()
		e := s.entries[k]
		switch {
		case e == nil, e.committed && s.now().After(e.expiry):
			// Miss (or expired): this caller takes the reservation.
			e = &idemEntry{token: uuid.NewString(), done: make(chan struct{})}
			s.entries[k] = e
			s.mu.Unlock()
			return nil, &repository.Reservation{Token: e.token, Key: key, Fingerprint: fingerprint}, nil
		case e.committed:
			res := *e.res
			s.mu.Unlock()
			return &res, nil, nil
		}
		// Someone else holds the reservation; wait for its outcome.
		done := e.done
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-done:
		}
	}
}

func (s *IdempotencyStore) Commit(ctx context.Context, rsv *repository.Reservation, res *model.StageResult, ttl time.Duration) error {
	k := idemKey(rsv.Key, rsv.Fingerprint)
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[k]
	if e == nil || e.token != rsv.Token {
		return domain.ErrReservationExpired
	}
	cp := *res
	e.res = &cp
	e.committed = true
	e.expiry = s.now().Add(ttl)
	close(e.done)
	return nil
}

func (s *IdempotencyStore) Abort(ctx context.Context, rsv *repository.Reservation) error {
	k := idemKey(rsv.Key, rsv.Fingerprint)
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[k]
	if e == nil || e.token != rsv.Token || e.committed {
		return nil
	}
	delete(s.entries, k)
	close(e.done)
	return nil
}
