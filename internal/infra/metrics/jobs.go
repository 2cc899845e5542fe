package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(jobsFinishedTotal, jobsSubmittedTotal, jobDurationSeconds, eventsDroppedTotal)
}

var (
	jobsSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "studio_jobs_submitted_total",
			Help: "Total number of jobs accepted by the runner.",
		},
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_jobs_finished_total",
			Help: "Total number of jobs reaching a terminal state, labeled by status.",
		},
		[]string{"status"}, // done | failed | cancelled
	)

	jobDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studio_job_duration_seconds",
			Help:    "Wall-clock job duration from start to terminal state.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"status"},
	)

	eventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "studio_events_dropped_total",
			Help: "Outbound events dropped because the notification queue was full.",
		},
	)
)

func IncJobSubmitted() { jobsSubmittedTotal.Inc() }

func ObserveJobFinished(status string, seconds float64) {
	jobsFinishedTotal.WithLabelValues(norm(status)).Inc()
	jobDurationSeconds.WithLabelValues(norm(status)).Observe(seconds)
}

func IncEventDropped() { eventsDroppedTotal.Inc() }
