package telemetry

import (
	"bufio"
	"context"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ai-video-studio/internal/domain/ports/adapter"
)

var _ adapter.TelemetrySource = (*Sampler)(nil)

// Sampler keeps a periodically refreshed snapshot of host pressure plus the
// runner's queue depth. Snapshot never blocks; callers always see the last
// completed sample.
type Sampler struct {
	interval   time.Duration
	queueDepth func() int
	log        *zerolog.Logger

	snap atomic.Value // adapter.ResourceSnapshot
	done chan struct{}
}

func NewSampler(interval time.Duration, queueDepth func() int, log *zerolog.Logger) *Sampler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if queueDepth == nil {
		queueDepth = func() int { return 0 }
	}
	s := &Sampler{
		interval:   interval,
		queueDepth: queueDepth,
		log:        log,
		done:       make(chan struct{}),
	}
	s.refresh()
	return s
}

// Start refreshes the snapshot until ctx is cancelled.
func (s *Sampler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.refresh()
			}
		}
	}()
}

// Stop blocks until the refresh loop has exited.
func (s *Sampler) Stop() { <-s.done }

func (s *Sampler) Snapshot() adapter.ResourceSnapshot {
	return s.snap.Load().(adapter.ResourceSnapshot)
}

func (s *Sampler) refresh() {
	snap := adapter.ResourceSnapshot{
		CPULoad:      readCPULoad(),
		AvailableMiB: uint64(readAvailableMiB()),
		QueueDepth:   s.queueDepth(),
		TakenAt:      time.Now(),
	}
	s.snap.Store(snap)
	s.log.Debug().
		Float64("cpu_load", snap.CPULoad).
		Uint64("available_mib", snap.AvailableMiB).
		Int("queue_depth", snap.QueueDepth).
		Msg("telemetry sample")
}

// readCPULoad reads the 1-minute load average normalized by core count.
// Returns 0 on platforms without /proc.
func readCPULoad() float64 {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0
	}
	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return load / float64(runtime.NumCPU())
}

// readAvailableMiB reads MemAvailable from /proc/meminfo. Returns 0 when it
// cannot be determined, which the strategy selector treats as "unknown"
// rather than exhausted.
func readAvailableMiB() int64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb / 1024
	}
	return 0
}
