// Package store implements the engine: a write-ahead log in front of an
// in-memory map, flushed into compressed sorted runs that a background worker
// merges.
package store

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/zhangyunhao116/skipmap"

	"tinylsm/pkg/batch"
	"tinylsm/pkg/codec"
	"tinylsm/pkg/compression"
	"tinylsm/pkg/config"
	"tinylsm/pkg/dberrors"
	"tinylsm/pkg/listener"
	"tinylsm/pkg/memtable"
	"tinylsm/pkg/metrics"
	"tinylsm/pkg/sstable"
	"tinylsm/pkg/types"
	"tinylsm/pkg/wal"
)

type iJournal interface {
	Append(r codec.Record) (int, error)
	AppendBatch(records []codec.Record) (int, error)
	Recover(apply func([]codec.Record)) (wal.Recovery, error)
	Sync() error
	Reset() error
	Size() int64
	Close() error
}

type iCompactor interface {
	listener.Job

	Register(id types.SSTableID, size, resident uint64)
	Heartbeat() bool
	TakeReadBytes() uint64
	TakeWrittenBytes() uint64
}

type iClock interface {
	Val() uint64
	Next() uint64
	Set(t uint64)
}

// Store is a single-writer LSM engine for fixed-width keys and values. Writes
// are serialized; reads go straight to the authoritative map and never block.
type Store struct {
	mu sync.Mutex

	path    string
	cfg     config.DB
	layout  codec.Layout
	log     *slog.Logger
	metrics metrics.Collector

	jr     iJournal
	worker iCompactor
	nextID iClock

	// mutations not yet folded into a sorted run
	mt *memtable.Memtable
	// resolved state, the only structure reads see
	db *skipmap.OrderedMap[string, []byte]

	stats      Stats
	closed     bool
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

func WithMetrics(m metrics.Collector) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// Open opens the store at path, creating it on first use, and recovers its
// state from the sorted runs and the log.
func Open(path string, cfg config.DB, opts ...Option) (*Store, error) {
	cfg.Path = path
	if err := config.ValidateDB(cfg); err != nil {
		return nil, err
	}

	s := &Store{
		path:    filepath.Clean(path),
		cfg:     cfg,
		layout:  codec.Layout{KeySize: cfg.KeySize, ValueSize: cfg.ValueSize},
		log:     slog.Default(),
		metrics: metrics.Nop{},
		mt:      memtable.New(),
		db:      skipmap.New[string, []byte](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "store")

	if err := s.recover(); err != nil {
		return nil, err
	}

	return s, nil
}

// Layout returns the key and value widths of the store.
func (s *Store) Layout() codec.Layout {
	return s.layout
}

// Insert stores value under key and returns the previous value, if any.
func (s *Store) Insert(key, value []byte) ([]byte, bool, error) {
	return s.mutate("insert", codec.Put(clone(key), clone(value)))
}

// Remove deletes key and returns the previous value, if any.
func (s *Store) Remove(key []byte) ([]byte, bool, error) {
	return s.mutate("remove", codec.Delete(clone(key)))
}

func (s *Store) mutate(op string, r codec.Record) ([]byte, bool, error) {
	if err := s.layout.Validate(r); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, dberrors.ErrClosed
	}

	// log first: a failed append leaves memory untouched
	n, err := s.jr.Append(r)
	if err != nil {
		return nil, false, err
	}
	s.logged(op, n)

	prev, ok := s.apply(r)
	if err := s.maybeFlush(); err != nil {
		return prev, ok, err
	}
	return prev, ok, nil
}

// WriteBatch applies records atomically: after a crash either all of them
// are recovered or none. Later records for the same key win.
func (s *Store) WriteBatch(records []codec.Record) error {
	owned := make([]codec.Record, len(records))
	for i, r := range records {
		if err := s.layout.Validate(r); err != nil {
			return fmt.Errorf("batch record %d: %w", i, err)
		}
		owned[i] = codec.Record{Key: clone(r.Key), Tombstone: r.Tombstone}
		if !r.Tombstone {
			owned[i].Value = clone(r.Value)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return dberrors.ErrClosed
	}
	if len(owned) == 0 {
		return nil
	}

	n, err := s.jr.AppendBatch(owned)
	if err != nil {
		return err
	}
	s.logged("batch", n)

	for _, r := range owned {
		s.apply(r)
	}
	return s.maybeFlush()
}

// Write applies a batch built with the batch package.
func (s *Store) Write(b *batch.Batch) error {
	return s.WriteBatch(b.Records())
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(key []byte) ([]byte, bool) {
	v, ok := s.db.Load(string(key))
	if !ok {
		return nil, false
	}
	return clone(v), true
}

// Len returns the number of live keys.
func (s *Store) Len() int {
	return s.db.Len()
}

// Range calls fn for every live key in ascending order until fn returns false.
// The slices passed to fn must not be modified.
func (s *Store) Range(fn func(key, value []byte) bool) {
	s.db.Range(func(k string, v []byte) bool {
		return fn([]byte(k), v)
	})
}

// Sync makes every logged mutation durable without flushing the memtable.
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return dberrors.ErrClosed
	}
	return s.jr.Sync()
}

// Close stops the compactor and closes the log. The memtable is not flushed;
// its contents stay in the durable log and are replayed on the next open.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.worker.Stop()

	syncErr := s.jr.Sync()
	if err := s.jr.Close(); err != nil {
		return err
	}
	if syncErr != nil {
		return syncErr
	}

	s.log.Info("store closed", "path", s.path, "keys", s.db.Len())
	return nil
}

func (s *Store) apply(r codec.Record) ([]byte, bool) {
	s.mt.Apply(r)

	key := string(r.Key)
	if r.Tombstone {
		return s.db.LoadAndDelete(key)
	}

	prev, ok := s.db.Load(key)
	s.db.Store(key, r.Value)
	return prev, ok
}

func (s *Store) logged(op string, n int) {
	s.stats.LoggedBytes += uint64(n)
	s.stats.WrittenBytes += uint64(n)
	s.metrics.ObserveWrite(op, n)
}

// dirtyBytes is the log written since the last flush.
func (s *Store) dirtyBytes() uint64 {
	return uint64(s.jr.Size())
}

func (s *Store) residentBytes() uint64 {
	return uint64(s.db.Len()) * uint64(s.layout.ResidentSize())
}

func (s *Store) writeOptions() sstable.WriteOptions {
	return sstable.WriteOptions{
		Algorithm: compression.Algorithm(s.cfg.Compression),
		Level:     s.cfg.CompressionLevel,
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
