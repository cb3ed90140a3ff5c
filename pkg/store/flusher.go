package store

import (
	"fmt"
	"time"

	"tinylsm/pkg/dberrors"
	"tinylsm/pkg/fsutil"
	"tinylsm/pkg/memtable"
	"tinylsm/pkg/sstable"
)

// Flush folds the memtable into a new sorted run and empties the log. With an
// empty memtable it only makes the log durable.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return dberrors.ErrClosed
	}
	return s.flush()
}

func (s *Store) maybeFlush() error {
	if s.dirtyBytes() <= s.cfg.MaxLogLength {
		return nil
	}

	s.log.Debug("log over threshold, flushing memtable", "dirty_bytes", s.dirtyBytes())
	return s.flush()
}

func (s *Store) flush() error {
	if err := s.jr.Sync(); err != nil {
		return err
	}

	if s.mt.Len() == 0 {
		// only empty batch markers were logged
		if s.dirtyBytes() > 0 {
			if err := s.jr.Reset(); err != nil {
				return err
			}
		}
		return nil
	}

	start := time.Now()
	taken := s.mt
	s.mt = memtable.New()

	id := s.nextID.Val()
	size, err := sstable.Write(s.path, id, s.layout, taken.Sorted(), s.writeOptions())
	if err != nil {
		s.mt = taken
		s.metrics.ObserveFlush(0, time.Since(start), err)
		s.log.Error("failed to flush memtable to sstable", "id", sstable.FileName(id), "error", err)
		return fmt.Errorf("failed to flush memtable: %w", err)
	}

	s.worker.Register(id, uint64(size), s.residentBytes())
	s.nextID.Next()
	s.stats.WrittenBytes += uint64(size)

	if err := s.jr.Reset(); err != nil {
		return err
	}
	if err := fsutil.SyncDir(sstable.Path(s.path)); err != nil {
		return err
	}

	s.metrics.ObserveFlush(size, time.Since(start), nil)
	s.log.Debug("flushed memtable", "id", sstable.FileName(id), "records", taken.Len(), "bytes", size)

	return nil
}
