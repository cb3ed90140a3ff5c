package memtable

import "tinylsm/pkg/codec"

// Sorted returns every pending record in ascending key order.
func (mt *Memtable) Sorted() []codec.Record {
	result := make([]codec.Record, 0, mt.Len())
	mt.m.Range(func(key string, value Item) bool {
		result = append(result, value.record(key))
		return true
	})

	return result
}
