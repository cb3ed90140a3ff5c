package metrics

import (
	"time"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

func status(err error) string {
	if err != nil {
		return statusError
	}
	return statusSuccess
}

// ObserveWrite records one logged mutation.
func (r *Registry) ObserveWrite(op string, bytes int) {
	r.WritesTotal.WithLabelValues(op).Inc()
	r.LoggedBytesTotal.Add(float64(bytes))
}

// ObserveFlush records a memtable flush.
func (r *Registry) ObserveFlush(bytes int64, duration time.Duration, err error) {
	r.FlushesTotal.WithLabelValues(status(err)).Inc()
	if err != nil {
		return
	}
	r.FlushDuration.Observe(duration.Seconds())
	r.FlushedBytesTotal.Add(float64(bytes))
}

// ObserveCompaction records a compaction of the given trigger kind.
func (r *Registry) ObserveCompaction(kind string, inputs int, bytes int64, duration time.Duration, err error) {
	r.CompactionsTotal.WithLabelValues(kind, status(err)).Inc()
	if err != nil {
		return
	}
	r.CompactionDuration.WithLabelValues(kind).Observe(duration.Seconds())
	r.CompactionInputsTotal.Add(float64(inputs))
	r.CompactedBytesTotal.Add(float64(bytes))
}

func (r *Registry) SetSortedRuns(count int, bytes uint64) {
	r.SortedRuns.Set(float64(count))
	r.SortedRunBytes.Set(float64(bytes))
}

func (r *Registry) SetSizes(resident, onDisk uint64) {
	r.ResidentBytes.Set(float64(resident))
	r.OnDiskBytes.Set(float64(onDisk))
}

func (r *Registry) SetAmplification(space, write float64) {
	r.SpaceAmplification.Set(space)
	r.WriteAmplification.Set(write)
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveWrite(string, int) {}
func (Nop) ObserveFlush(int64, time.Duration, error) {}
func (Nop) ObserveCompaction(string, int, int64, time.Duration, error) {}
func (Nop) SetSortedRuns(int, uint64) {}
func (Nop) SetSizes(uint64, uint64) {}
func (Nop) SetAmplification(float64, float64) {}

var (
	_ Collector = (*Registry)(nil)
	_ Collector = Nop{}
)
