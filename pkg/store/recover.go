package store

import (
	"context"
	"fmt"
	"path/filepath"

	"tinylsm/pkg/clock"
	"tinylsm/pkg/codec"
	"tinylsm/pkg/compactor"
	"tinylsm/pkg/fsutil"
	"tinylsm/pkg/sstable"
	"tinylsm/pkg/wal"
)

// recover rebuilds the authoritative map from every sorted run in id order,
// overlays the log tail onto both maps and starts the compactor.
func (s *Store) recover() error {
	if err := fsutil.MkdirAllSynced(sstable.Path(s.path)); err != nil {
		return err
	}
	if err := s.checkLayout(); err != nil {
		return err
	}

	dir, err := sstable.List(s.path, true, s.log)
	if err != nil {
		return err
	}

	for _, id := range dir.IDs() {
		contents, err := sstable.Read(s.path, id, s.layout, s.log)
		if err != nil {
			return fmt.Errorf("failed to recover sstable %s: %w", sstable.FileName(id), err)
		}
		for _, r := range contents.Records {
			s.applyDB(r)
		}
	}

	journal, err := wal.Open(filepath.Join(s.path, wal.FileName), s.layout, s.cfg.LogBufferSize, s.log)
	if err != nil {
		return err
	}

	rec, err := journal.Recover(func(records []codec.Record) {
		for _, r := range records {
			s.apply(r)
		}
	})
	if err != nil {
		_ = journal.Close()
		return fmt.Errorf("failed to recover WAL: %w", err)
	}
	if rec.Dropped > 0 {
		s.log.Warn("dropped torn WAL tail", "bytes", rec.Dropped)
	}

	if err := fsutil.SyncDir(sstable.Path(s.path)); err != nil {
		_ = journal.Close()
		return err
	}

	var next uint64
	if maxID, ok := dir.MaxID(); ok {
		next = maxID + 1
	}

	worker := compactor.New(compactor.Options{
		Root:        s.path,
		Layout:      s.layout,
		MaxSpaceAmp: s.cfg.MaxSpaceAmp,
		MergeRatio:  s.cfg.MergeRatio,
		MergeWindow: s.cfg.MergeWindow,
		Write:       s.writeOptions(),
		Logger:      s.log,
		Metrics:     s.metrics,
	}, dir, s.residentBytes())
	worker.Start(context.Background())

	if !worker.Heartbeat() {
		_ = journal.Close()
		return ErrWorkerUnavailable
	}

	s.jr = journal
	s.worker = worker
	s.nextID = clock.NewAtomic(next)
	s.stats.LoggedBytes = uint64(rec.Offset)
	s.stats.WrittenBytes = uint64(rec.Offset)

	s.log.Info("store opened",
		"path", s.path,
		"sstables", dir.Len(),
		"keys", s.db.Len(),
		"memtable", s.mt.Len(),
		"log_records", rec.Records,
		"log_batches", rec.Batches,
	)

	return nil
}

func (s *Store) applyDB(r codec.Record) {
	if r.Tombstone {
		s.db.Delete(string(r.Key))
		return
	}
	s.db.Store(string(r.Key), r.Value)
}
