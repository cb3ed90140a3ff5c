package compactor

import (
	"fmt"
	"time"

	"tinylsm/pkg/fsutil"
	"tinylsm/pkg/memtable"
	"tinylsm/pkg/sstable"
	"tinylsm/pkg/types"
)

const (
	kindFull   = "full"
	kindWindow = "window"
)

// plan picks at most one set of runs to merge. It returns nil when nothing
// needs to happen this round.
func plan(entries []sstable.Entry, resident, maxSpaceAmp, mergeRatio uint64, mergeWindow int) ([]types.SSTableID, string) {
	var sum uint64
	for _, e := range entries {
		sum += e.Size
	}

	if len(entries) > 1 && sum/(resident+1) > maxSpaceAmp {
		return ids(entries), kindFull
	}

	window := max(mergeWindow, 2)
	if len(entries) < window {
		return nil, ""
	}

	for start := 0; start+window <= len(entries); start++ {
		candidate := entries[start : start+window]
		first := candidate[0].Size

		ok := true
		for _, e := range candidate[1:] {
			if e.Size*mergeRatio <= first {
				ok = false
				break
			}
		}
		if ok {
			return ids(candidate), kindWindow
		}
	}

	return nil, ""
}

func ids(entries []sstable.Entry) []types.SSTableID {
	out := make([]types.SSTableID, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func (c *Compactor) maintain() {
	entries := c.dir.Entries()
	chosen, kind := plan(entries, c.resident, c.opts.MaxSpaceAmp, c.opts.MergeRatio, c.opts.MergeWindow)
	if chosen == nil {
		return
	}

	c.log.Debug("compacting sorted runs", "kind", kind, "inputs", len(chosen),
		"first", sstable.FileName(chosen[0]), "last", sstable.FileName(chosen[len(chosen)-1]))

	start := time.Now()
	written, err := c.compact(chosen)
	c.opts.Metrics.ObserveCompaction(kind, len(chosen), written, time.Since(start), err)
	if err != nil {
		// inputs are untouched; the next round retries
		c.log.Error("compaction failed", "kind", kind, "error", err)
		return
	}

	c.opts.Metrics.SetSortedRuns(c.dir.Len(), c.dir.Sum())
	c.log.Info("compaction finished", "kind", kind, "inputs", len(chosen),
		"output", sstable.FileName(chosen[len(chosen)-1]), "bytes", written,
		"duration", time.Since(start))
}

// compact merges the chosen runs, given in ascending id order, into one run
// stored under the highest id. Tombstones are kept: an input that outlives a
// crash or a failed unlink must still be shadowed on replay.
func (c *Compactor) compact(chosen []types.SSTableID) (int64, error) {
	merged := memtable.New()
	for _, id := range chosen {
		contents, err := sstable.Read(c.opts.Root, id, c.opts.Layout, c.log)
		if err != nil {
			return 0, err
		}
		c.readBytes.Add(uint64(contents.Compressed))

		for _, r := range contents.Records {
			merged.Apply(r)
		}
	}

	c.log.Debug("merged sorted runs", "keys", merged.Len(), "tombstones", merged.Tombstones())

	outID := chosen[len(chosen)-1]
	size, err := sstable.Write(c.opts.Root, outID, c.opts.Layout, merged.Sorted(), c.opts.Write)
	if err != nil {
		return 0, fmt.Errorf("failed to write compacted sstable: %w", err)
	}
	c.writtenBytes.Add(uint64(size))

	for _, id := range chosen[:len(chosen)-1] {
		if err := sstable.Remove(c.opts.Root, id); err != nil {
			// still on disk and still valid, keep tracking it
			c.log.Error("failed to remove compacted input", "id", sstable.FileName(id), "error", err)
			continue
		}
		c.dir.Remove(id)
	}
	c.dir.Insert(outID, uint64(size))

	if err := fsutil.SyncDir(sstable.Path(c.opts.Root)); err != nil {
		return size, err
	}
	return size, nil
}
