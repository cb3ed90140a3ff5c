// Package memtable holds mutations that are in the log but not yet folded
// into a sorted-run file, ordered by key.
package memtable

import (
	"github.com/zhangyunhao116/skipmap"

	"tinylsm/pkg/codec"
)

type orderedSet = skipmap.OrderedMap[string, Item]

// Memtable maps keys to their latest value or tombstone. It is also used as the
// merge buffer of a compaction, where later records overwrite earlier ones.
type Memtable struct {
	m *orderedSet
}

func New() *Memtable {
	return &Memtable{m: skipmap.New[string, Item]()}
}

// Apply records r, replacing any earlier state of the same key.
func (mt *Memtable) Apply(r codec.Record) {
	mt.m.Store(string(r.Key), itemOf(r))
}

// Get returns the pending state of key.
func (mt *Memtable) Get(key []byte) (Item, bool) {
	return mt.m.Load(string(key))
}

// Len returns the number of distinct keys, tombstones included.
func (mt *Memtable) Len() int {
	return mt.m.Len()
}

// Tombstones counts the pending deletions.
func (mt *Memtable) Tombstones() int {
	n := 0
	mt.m.Range(func(_ string, value Item) bool {
		if value.Tombstone {
			n++
		}
		return true
	})
	return n
}
