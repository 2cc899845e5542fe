package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(taskCacheTotal) }

var taskCacheTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "studio_task_cache_total",
		Help: "Task result cache lookups, labeled hit or miss.",
	},
	[]string{"outcome"},
)

func IncCacheHit()  { taskCacheTotal.WithLabelValues("hit").Inc() }
func IncCacheMiss() { taskCacheTotal.WithLabelValues("miss").Inc() }
