//go:build !integration

package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"ai-video-studio/internal/domain"
	"ai-video-studio/internal/domain/model"
)

func TestIdempotencyStore_ReserveCommitReplay(t *testing.T) {
	s := NewIdempotencyStore()
	ctx := context.Background()

	cached, rsv, err := s.GetOrReserve(ctx, "k", "fp")
	if err != nil || cached != nil || rsv == nil {
		t.Fatalf("first call: cached=%v rsv=%v err=%v", cached, rsv, err)
	}

	res := &model.StageResult{Ref: "ref://x", ProviderID: "p1"}
	if err := s.Commit(ctx, rsv, res, time.Hour); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	cached, rsv2, err := s.GetOrReserve(ctx, "k", "fp")
	if err != nil || rsv2 != nil {
		t.Fatalf("replay: rsv=%v err=%v", rsv2, err)
	}
	if cached == nil || cached.Ref != "ref://x" {
		t.Fatalf("replayed = %+v", cached)
	}

	// Same key, different fingerprint is a different side effect.
	cached, rsv3, err := s.GetOrReserve(ctx, "k", "other")
	if err != nil || cached != nil || rsv3 == nil {
		t.Fatalf("different fingerprint: cached=%v rsv=%v err=%v", cached, rsv3, err)
	}
}

func TestIdempotencyStore_WaiterSeesCommittedResult(t *testing.T) {
	s := NewIdempotencyStore()
	ctx := context.Background()

	_, rsv, err := s.GetOrReserve(ctx, "k", "fp")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	got := make(chan *model.StageResult, 1)
	go func() {
		cached, _, err := s.GetOrReserve(ctx, "k", "fp")
		if err != nil {
			t.Errorf("waiter: %v", err)
		}
		got <- cached
	}()

	time.Sleep(10 * time.Millisecond) // let the waiter block
	if err := s.Commit(ctx, rsv, &model.StageResult{Ref: "ref://done"}, time.Hour); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	select {
	case cached := <-got:
		if cached == nil || cached.Ref != "ref://done" {
			t.Fatalf("waiter got %+v", cached)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never woke up")
	}
}

func TestIdempotencyStore_AbortHandsReservationToWaiter(t *testing.T) {
	s := NewIdempotencyStore()
	ctx := context.Background()

	_, rsv, err := s.GetOrReserve(ctx, "k", "fp")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	type outcome struct {
		cached *model.StageResult
		rsv    bool
	}
	got := make(chan outcome, 1)
	go func() {
		cached, r2, err := s.GetOrReserve(ctx, "k", "fp")
		if err != nil {
			t.Errorf("waiter: %v", err)
		}
		got <- outcome{cached: cached, rsv: r2 != nil}
	}()

	time.Sleep(10 * time.Millisecond)
	if err := s.Abort(ctx, rsv); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	select {
	case o := <-got:
		if o.cached != nil || !o.rsv {
			t.Fatalf("waiter after abort: %+v, want a fresh reservation", o)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never woke up after abort")
	}
}

func TestIdempotencyStore_ManyConcurrentCallersOneReservation(t *testing.T) {
	s := NewIdempotencyStore()
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	reservations := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cached, rsv, err := s.GetOrReserve(ctx, "k", "fp")
			if err != nil {
				t.Errorf("GetOrReserve: %v", err)
				return
			}
			if rsv != nil {
				mu.Lock()
				reservations++
				mu.Unlock()
				// Simulate the work, then commit for everyone else.
				time.Sleep(5 * time.Millisecond)
				if err := s.Commit(ctx, rsv, &model.StageResult{Ref: "ref://winner"}, time.Hour); err != nil {
					t.Errorf("Commit: %v", err)
				}
				return
			}
			if cached == nil || cached.Ref != "ref://winner" {
				t.Errorf("cached = %+v", cached)
			}
		}()
	}
	wg.Wait()
	if reservations != 1 {
		t.Fatalf("reservations = %d, want exactly 1", reservations)
	}
}

func TestIdempotencyStore_ExpiredEntryReReserved(t *testing.T) {
	s := NewIdempotencyStore()
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_, rsv, _ := s.GetOrReserve(ctx, "k", "fp")
	if err := s.Commit(ctx, rsv, &model.StageResult{Ref: "ref://old"}, time.Minute); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	now = now.Add(2 * time.Minute)
	cached, rsv2, err := s.GetOrReserve(ctx, "k", "fp")
	if err != nil || cached != nil || rsv2 == nil {
		t.Fatalf("after expiry: cached=%v rsv=%v err=%v", cached, rsv2, err)
	}
}

func TestIdempotencyStore_CommitWithStaleTokenRejected(t *testing.T) {
	s := NewIdempotencyStore()
	ctx := context.Background()

	_, rsv, _ := s.GetOrReserve(ctx, "k", "fp")
	if err := s.Abort(ctx, rsv); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	_, rsv2, _ := s.GetOrReserve(ctx, "k", "fp")

	err := s.Commit(ctx, rsv, &model.StageResult{Ref: "ref://stale"}, time.Hour)
	if err != domain.ErrReservationExpired {
		t.Fatalf("stale commit err = %v, want ErrReservationExpired", err)
	}
	if err := s.Commit(ctx, rsv2, &model.StageResult{Ref: "ref://fresh"}, time.Hour); err != nil {
		t.Fatalf("fresh commit: %v", err)
	}
}

func TestIdempotencyStore_WaiterHonorsContext(t *testing.T) {
	s := NewIdempotencyStore()
	_, _, err := s.GetOrReserve(context.Background(), "k", "fp")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = s.GetOrReserve(ctx, "k", "fp")
	if err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}
