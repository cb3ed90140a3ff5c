package memtable

import "tinylsm/pkg/codec"

// Item is the pending state of one key: a value or a tombstone.
type Item struct {
	Value     []byte
	Tombstone bool
}

func itemOf(r codec.Record) Item {
	if r.Tombstone {
		return Item{Tombstone: true}
	}
	return Item{Value: r.Value}
}

func (it Item) record(key string) codec.Record {
	return codec.Record{Key: []byte(key), Value: it.Value, Tombstone: it.Tombstone}
}
