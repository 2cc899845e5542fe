package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/infra/metrics"
)

// PatienceMonitor watches heartbeat records for every in-flight provider
// call and classifies elapsed silence into patience tiers. Tiers through
// DeepWait are informational; when silence crosses the stall threshold the
// monitor emits a StallSuspected event exactly once per silent period and
// does nothing else — it never cancels the call or switches providers.
type PatienceMonitor struct {
	profiles map[model.StageCategory]model.PatienceProfile
	sweep    time.Duration
	now      func() time.Time
	emit     func(model.Event)
	log      *zerolog.Logger

	mu      sync.Mutex
	records map[beatKey]*beatEntry

	done chan struct{}
}

type beatKey struct {
	jobID      string
	providerID string
}

type beatEntry struct {
	mu        sync.Mutex
	rec       model.HeartbeatRecord
	suspected bool
}

// HeartbeatHandle is held by the gateway for the duration of one call.
type HeartbeatHandle struct {
	monitor *PatienceMonitor
	key     beatKey
	entry   *beatEntry
}

func NewPatienceMonitor(
	profiles map[model.StageCategory]model.PatienceProfile,
	sweep time.Duration,
	emit func(model.Event),
	log *zerolog.Logger,
) *PatienceMonitor {
	return &PatienceMonitor{
		profiles: profiles,
		sweep:    sweep,
		now:      time.Now,
		emit:     emit,
		log:      log,
		records:  make(map[beatKey]*beatEntry),
		done:     make(chan struct{}),
	}
}

// Track creates a heartbeat record for a starting call. The returned handle
// must be closed when the call completes, whatever the outcome.
func (m *PatienceMonitor) Track(jobID, providerID string, category model.StageCategory) *HeartbeatHandle {
	now := m.now()
	key := beatKey{jobID: jobID, providerID: providerID}
	entry := &beatEntry{
		rec: model.HeartbeatRecord{
			JobID:      jobID,
			ProviderID: providerID,
			Category:   category,
			StartedAt:  now,
			LastBeat:   now,
		},
	}
	m.mu.Lock()
	m.records[key] = entry
	m.mu.Unlock()
	return &HeartbeatHandle{monitor: m, key: key, entry: entry}
}

// Beat resets the silence clock. A call that recovers after a suspicion may
// become suspect again later.
func (h *HeartbeatHandle) Beat(progress float64) {
	h.entry.mu.Lock()
	h.entry.rec.LastBeat = h.monitor.now()
	if progress > h.entry.rec.Progress {
		h.entry.rec.Progress = progress
	}
	h.entry.suspected = false
	h.entry.mu.Unlock()
}

// Close discards the record.
func (h *HeartbeatHandle) Close() {
	h.monitor.mu.Lock()
	delete(h.monitor.records, h.key)
	h.monitor.mu.Unlock()
}

// Tier classifies the current silence of one tracked call.
func (m *PatienceMonitor) Tier(jobID, providerID string) (model.PatienceTier, bool) {
	m.mu.Lock()
	entry := m.records[beatKey{jobID: jobID, providerID: providerID}]
	m.mu.Unlock()
	if entry == nil {
		return "", false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return model.ClassifyPatience(m.now().Sub(entry.rec.LastBeat), m.profile(entry.rec.Category)), true
}

func (m *PatienceMonitor) profile(cat model.StageCategory) model.PatienceProfile {
	if p, ok := m.profiles[cat]; ok {
		return p
	}
	// Unconfigured category: long defaults so we never cry wolf.
	return model.PatienceProfile{
		NormalThreshold:   time.Minute,
		ExtendedThreshold: 5 * time.Minute,
		DeepWaitThreshold: 15 * time.Minute,
		HeartbeatInterval: time.Minute,
		StallMultiplier:   5,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (m *PatienceMonitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.sweep)
		defer func() {
			ticker.Stop()
			close(m.done)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweepOnce()
			}
		}
	}()
}

// Stop blocks until the sweep loop has exited.
func (m *PatienceMonitor) Stop() { <-m.done }

func (m *PatienceMonitor) sweepOnce() {
	m.mu.Lock()
	entries := make([]*beatEntry, 0, len(m.records))
	for _, e := range m.records {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	now := m.now()
	for _, e := range entries {
		e.mu.Lock()
		elapsed := now.Sub(e.rec.LastBeat)
		tier := model.ClassifyPatience(elapsed, m.profile(e.rec.Category))
		fire := tier == model.PatienceSuspected && !e.suspected
		if fire {
			e.suspected = true
		}
		rec := e.rec
		e.mu.Unlock()

		if !fire {
			continue
		}
		metrics.IncStallSuspected(rec.ProviderID)
		if m.log != nil {
			m.log.Warn().
				Str("job_id", rec.JobID).
				Str("provider_id", rec.ProviderID).
				Dur("silent_for", elapsed).
				Msg("stall suspected; call left running")
		}
		if m.emit != nil {
			m.emit(model.StallSuspectedEvent{
				JobID:      rec.JobID,
				ProviderID: rec.ProviderID,
				Category:   rec.Category,
				Elapsed:    elapsed,
				At:         now,
			})
		}
	}
}
