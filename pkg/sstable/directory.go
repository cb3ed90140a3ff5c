package sstable

import "github.com/zhangyunhao116/skipmap"

// Directory maps live sorted-run ids to their size on disk, ordered by id.
type Directory struct {
	m *skipmap.OrderedMap[uint64, uint64]
}

func NewDirectory() *Directory {
	return &Directory{m: skipmap.New[uint64, uint64]()}
}

func (d *Directory) Insert(id, size uint64) {
	d.m.Store(id, size)
}

func (d *Directory) Remove(id uint64) {
	d.m.Delete(id)
}

func (d *Directory) Len() int {
	return d.m.Len()
}

// Sum is the total size of all live runs.
func (d *Directory) Sum() uint64 {
	var total uint64
	d.m.Range(func(_ uint64, size uint64) bool {
		total += size
		return true
	})
	return total
}

// Entry is one live run.
type Entry struct {
	ID   uint64
	Size uint64
}

// Entries returns the live runs in ascending id order.
func (d *Directory) Entries() []Entry {
	entries := make([]Entry, 0, d.m.Len())
	d.m.Range(func(id uint64, size uint64) bool {
		entries = append(entries, Entry{ID: id, Size: size})
		return true
	})
	return entries
}

// IDs returns the live run ids in ascending order.
func (d *Directory) IDs() []uint64 {
	ids := make([]uint64, 0, d.m.Len())
	d.m.Range(func(id uint64, _ uint64) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// MaxID returns the highest live id.
func (d *Directory) MaxID() (uint64, bool) {
	var maxID uint64
	found := false
	d.m.Range(func(id uint64, _ uint64) bool {
		maxID, found = id, true
		return true
	})
	return maxID, found
}
