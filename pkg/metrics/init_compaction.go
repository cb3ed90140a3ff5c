package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initCompactionMetrics() {
	r.CompactionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinylsm_compactions_total",
			Help: "Sorted-run compactions by trigger and status",
		},
		[]string{"kind", "status"},
	)

	r.CompactionDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tinylsm_compaction_duration_seconds",
			Help:    "Compaction duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
		},
		[]string{"kind"},
	)

	r.CompactionInputsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "tinylsm_compaction_inputs_total",
			Help: "Sorted runs consumed by compactions",
		},
	)

	r.CompactedBytesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "tinylsm_compacted_bytes_total",
			Help: "Compressed bytes written by compactions",
		},
	)

	r.SortedRuns = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "tinylsm_sorted_runs",
			Help: "Number of live sorted runs",
		},
	)

	r.SortedRunBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "tinylsm_sorted_run_bytes",
			Help: "Total size of live sorted runs",
		},
	)
}
