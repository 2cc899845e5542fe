//go:build !integration

package usecase

import (
	"testing"
	"time"

	"ai-video-studio/internal/domain/model"
)

func testPatienceProfiles() map[model.StageCategory]model.PatienceProfile {
	return map[model.StageCategory]model.PatienceProfile{
		model.CategoryVisual: {
			NormalThreshold:   30 * time.Second,
			ExtendedThreshold: 2 * time.Minute,
			DeepWaitThreshold: 5 * time.Minute,
			HeartbeatInterval: 15 * time.Second,
			StallMultiplier:   3, // suspect after 45s of silence
		},
	}
}

func newTestMonitor(emit func(model.Event)) (*PatienceMonitor, *time.Time) {
	m := NewPatienceMonitor(testPatienceProfiles(), time.Second, emit, newTestLogger())
	now := time.Now()
	m.now = func() time.Time { return now }
	return m, &now
}

func TestPatienceMonitor_TierProgression(t *testing.T) {
	m, now := newTestMonitor(nil)
	h := m.Track("job-1", "gemini-visual", model.CategoryVisual)
	defer h.Close()

	steps := []struct {
		advance time.Duration
		want    model.PatienceTier
	}{
		{10 * time.Second, model.PatienceNormal},
		{25 * time.Second, model.PatienceExtended}, // 35s total
		{10 * time.Second, model.PatienceSuspected}, // 45s = interval * multiplier
	}
	for _, st := range steps {
		*now = now.Add(st.advance)
		tier, ok := m.Tier("job-1", "gemini-visual")
		if !ok {
			t.Fatal("tracked call not found")
		}
		if tier != st.want {
			t.Fatalf("after %s silence: tier = %s, want %s", now.Sub(h.entry.rec.StartedAt), tier, st.want)
		}
	}
}

func TestPatienceMonitor_FiresOncePerSilentPeriod(t *testing.T) {
	var events []model.Event
	m, now := newTestMonitor(func(ev model.Event) { events = append(events, ev) })

	h := m.Track("job-1", "gemini-visual", model.CategoryVisual)
	defer h.Close()

	*now = now.Add(46 * time.Second)
	m.sweepOnce()
	m.sweepOnce()
	if len(events) != 1 {
		t.Fatalf("events = %d, want exactly 1 per silent period", len(events))
	}
	ev, ok := events[0].(model.StallSuspectedEvent)
	if !ok {
		t.Fatalf("unexpected event type %T", events[0])
	}
	if ev.JobID != "job-1" || ev.ProviderID != "gemini-visual" {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Elapsed < 45*time.Second {
		t.Fatalf("elapsed = %s, want >= stall threshold", ev.Elapsed)
	}
}

func TestPatienceMonitor_BeatResetsSuspicion(t *testing.T) {
	var events []model.Event
	m, now := newTestMonitor(func(ev model.Event) { events = append(events, ev) })

	h := m.Track("job-1", "gemini-visual", model.CategoryVisual)
	defer h.Close()

	*now = now.Add(46 * time.Second)
	m.sweepOnce()
	h.Beat(0.4)
	m.sweepOnce() // freshly beaten, not suspect
	if len(events) != 1 {
		t.Fatalf("events after beat = %d, want 1", len(events))
	}

	// A second silent period may fire again.
	*now = now.Add(46 * time.Second)
	m.sweepOnce()
	if len(events) != 2 {
		t.Fatalf("events after second silence = %d, want 2", len(events))
	}
}

func TestPatienceMonitor_CloseStopsTracking(t *testing.T) {
	var events []model.Event
	m, now := newTestMonitor(func(ev model.Event) { events = append(events, ev) })

	h := m.Track("job-1", "gemini-visual", model.CategoryVisual)
	h.Close()

	*now = now.Add(time.Hour)
	m.sweepOnce()
	if len(events) != 0 {
		t.Fatalf("events for a completed call = %d, want 0", len(events))
	}
	if _, ok := m.Tier("job-1", "gemini-visual"); ok {
		t.Fatal("closed record still classifiable")
	}
}

func TestPatienceMonitor_ProgressMonotonic(t *testing.T) {
	m, _ := newTestMonitor(nil)
	h := m.Track("job-1", "gemini-visual", model.CategoryVisual)
	defer h.Close()

	h.Beat(0.5)
	h.Beat(0.3) // late out-of-order report must not regress
	h.entry.mu.Lock()
	got := h.entry.rec.Progress
	h.entry.mu.Unlock()
	if got != 0.5 {
		t.Fatalf("progress = %v, want 0.5", got)
	}
}
