package store

import (
	"path/filepath"

	"tinylsm/pkg/dberrors"
	"tinylsm/pkg/fsutil"
	"tinylsm/pkg/sstable"
	"tinylsm/pkg/wal"
)

// Stats describes the size and I/O of a store.
type Stats struct {
	// ResidentBytes is the key and value size of every live key.
	ResidentBytes uint64 `json:"resident_bytes"`
	// OnDiskBytes is the log plus all sorted runs.
	OnDiskBytes uint64 `json:"on_disk_bytes"`
	LoggedBytes uint64 `json:"logged_bytes"`
	// WrittenBytes counts log appends, flushes and compaction output.
	WrittenBytes uint64 `json:"written_bytes"`
	// ReadBytes counts sorted-run bytes read by compactions.
	ReadBytes uint64  `json:"read_bytes"`
	SpaceAmp  float64 `json:"space_amp"`
	WriteAmp  float64 `json:"write_amp"`

	SSTables int `json:"sstables"`
	Keys     int `json:"keys"`
}

func (s *Stats) amplification() {
	s.WriteAmp = float64(s.WrittenBytes) / float64(max(s.OnDiskBytes, 1))
	s.SpaceAmp = float64(s.OnDiskBytes) / float64(max(s.ResidentBytes, 1))
}

// Stats drains the compactor counters and lists the store directory for
// on-disk sizes.
func (s *Store) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Stats{}, dberrors.ErrClosed
	}

	s.stats.WrittenBytes += s.worker.TakeWrittenBytes()
	s.stats.ReadBytes += s.worker.TakeReadBytes()
	s.stats.ResidentBytes = s.residentBytes()
	s.stats.Keys = s.db.Len()

	logSize, err := fsutil.FileSize(filepath.Join(s.path, wal.FileName))
	if err != nil {
		return Stats{}, err
	}

	dir, err := sstable.List(s.path, false, s.log)
	if err != nil {
		return Stats{}, err
	}

	s.stats.OnDiskBytes = uint64(logSize) + dir.Sum()
	s.stats.SSTables = dir.Len()
	s.stats.amplification()

	s.metrics.SetSizes(s.stats.ResidentBytes, s.stats.OnDiskBytes)
	s.metrics.SetAmplification(s.stats.SpaceAmp, s.stats.WriteAmp)

	return s.stats, nil
}
