package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector receives engine and compactor events.
type Collector interface {
	ObserveWrite(op string, bytes int)
	ObserveFlush(bytes int64, duration time.Duration, err error)
	ObserveCompaction(kind string, inputs int, bytes int64, duration time.Duration, err error)
	SetSortedRuns(count int, bytes uint64)
	SetSizes(resident, onDisk uint64)
	SetAmplification(space, write float64)
}

// Registry holds the Prometheus metrics of one store.
type Registry struct {
	// Write path
	WritesTotal      *prometheus.CounterVec
	LoggedBytesTotal prometheus.Counter

	// Flush
	FlushesTotal      *prometheus.CounterVec
	FlushDuration     prometheus.Histogram
	FlushedBytesTotal prometheus.Counter

	// Compaction
	CompactionsTotal      *prometheus.CounterVec
	CompactionDuration    *prometheus.HistogramVec
	CompactionInputsTotal prometheus.Counter
	CompactedBytesTotal   prometheus.Counter

	// Sizes
	SortedRuns         prometheus.Gauge
	SortedRunBytes     prometheus.Gauge
	ResidentBytes      prometheus.Gauge
	OnDiskBytes        prometheus.Gauge
	SpaceAmplification prometheus.Gauge
	WriteAmplification prometheus.Gauge

	registry *prometheus.Registry
}

// NewRegistry creates a registry with all metrics initialized.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initEngineMetrics()
	r.initCompactionMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
