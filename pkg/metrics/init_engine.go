package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initEngineMetrics() {
	r.WritesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinylsm_writes_total",
			Help: "Total number of logged mutations",
		},
		[]string{"op"},
	)

	r.LoggedBytesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "tinylsm_logged_bytes_total",
			Help: "Bytes appended to the write-ahead log",
		},
	)

	r.FlushesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinylsm_flushes_total",
			Help: "Memtable flushes into sorted runs",
		},
		[]string{"status"},
	)

	r.FlushDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tinylsm_flush_duration_seconds",
			Help:    "Memtable flush duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
	)

	r.FlushedBytesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "tinylsm_flushed_bytes_total",
			Help: "Compressed bytes written by memtable flushes",
		},
	)

	r.ResidentBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "tinylsm_resident_bytes",
			Help: "Key and value bytes of all live keys",
		},
	)

	r.OnDiskBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "tinylsm_on_disk_bytes",
			Help: "Bytes of the log plus all sorted runs",
		},
	)

	r.SpaceAmplification = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "tinylsm_space_amplification",
			Help: "On-disk bytes divided by resident bytes",
		},
	)

	r.WriteAmplification = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "tinylsm_write_amplification",
			Help: "Bytes written since the last stats query divided by on-disk bytes",
		},
	)
}
