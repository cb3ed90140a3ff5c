// Package compactor runs the background worker that merges sorted runs to
// bound space amplification. The engine talks to it only through messages;
// the worker owns its view of the sorted-run directory.
package compactor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"tinylsm/pkg/codec"
	"tinylsm/pkg/listener"
	"tinylsm/pkg/metrics"
	"tinylsm/pkg/sstable"
	"tinylsm/pkg/types"
)

const inboxSize = 128

type msgKind int

const (
	msgNewSST msgKind = iota
	msgHeartbeat
	msgStop
)

type message struct {
	kind msgKind

	id       types.SSTableID
	size     uint64
	resident uint64

	reply chan struct{}
}

// Options configure the maintenance policy.
type Options struct {
	Root   string
	Layout codec.Layout
	// MaxSpaceAmp triggers a full compaction once the sorted runs exceed this
	// many times the resident size.
	MaxSpaceAmp uint64
	MergeRatio  uint64
	MergeWindow int
	Write       sstable.WriteOptions

	Logger  *slog.Logger
	Metrics metrics.Collector
}

// Compactor is the background maintenance worker.
type Compactor struct {
	*listener.Listener[message]

	opts  Options
	log   *slog.Logger
	inbox chan message

	// owned by the worker goroutine
	dir      *sstable.Directory
	resident uint64

	readBytes    atomic.Uint64
	writtenBytes atomic.Uint64
}

// New creates a worker seeded with the sorted runs found at recovery and the
// resident size at that moment. Call Start to run it.
func New(opts Options, dir *sstable.Directory, resident uint64) *Compactor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}

	c := &Compactor{
		opts:     opts,
		log:      opts.Logger.With("component", "compactor"),
		inbox:    make(chan message, inboxSize),
		dir:      dir,
		resident: resident,
	}
	c.Listener = listener.New(c.inbox, c.handle)

	return c
}

// Start runs the worker until Stop.
func (c *Compactor) Start(ctx context.Context) {
	c.opts.Metrics.SetSortedRuns(c.dir.Len(), c.dir.Sum())
	c.Listener.Start(ctx)
}

// Register announces a freshly flushed sorted run. It panics if the worker is
// gone, since its directory view would no longer match the disk.
func (c *Compactor) Register(id types.SSTableID, size, resident uint64) {
	msg := message{kind: msgNewSST, id: id, size: size, resident: resident}
	if c.exited() {
		panic(fmt.Sprintf("compactor: worker exited, cannot register sstable %s", sstable.FileName(id)))
	}

	select {
	case c.inbox <- msg:
	case <-c.Done():
		panic(fmt.Sprintf("compactor: worker exited, cannot register sstable %s", sstable.FileName(id)))
	}
}

func (c *Compactor) exited() bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

// Heartbeat blocks until the worker picks up a liveness probe. It reports
// false if the worker has exited.
func (c *Compactor) Heartbeat() bool {
	if c.exited() {
		return false
	}

	reply := make(chan struct{})
	select {
	case c.inbox <- message{kind: msgHeartbeat, reply: reply}:
	case <-c.Done():
		return false
	}

	select {
	case <-reply:
		return true
	case <-c.Done():
		return false
	}
}

// Stop asks the worker to finish and waits until it has exited. No sorted-run
// I/O happens after Stop returns.
func (c *Compactor) Stop() {
	if c.exited() {
		return
	}

	reply := make(chan struct{})
	select {
	case c.inbox <- message{kind: msgStop, reply: reply}:
	case <-c.Done():
		return
	}

	select {
	case <-reply:
	case <-c.Done():
	}
	<-c.Done()
}

// TakeReadBytes returns the bytes read by compactions since the last call.
func (c *Compactor) TakeReadBytes() uint64 {
	return c.readBytes.Swap(0)
}

// TakeWrittenBytes returns the bytes written by compactions since the last call.
func (c *Compactor) TakeWrittenBytes() uint64 {
	return c.writtenBytes.Swap(0)
}

func (c *Compactor) handle(msg message) error {
	switch msg.kind {
	case msgNewSST:
		c.dir.Insert(msg.id, msg.size)
		c.resident = msg.resident
	case msgHeartbeat:
		close(msg.reply)
	case msgStop:
		c.log.Debug("compactor stopping")
		close(msg.reply)
		return listener.ErrStopped
	}

	c.maintain()
	return nil
}
