package batch

import (
	"tinylsm/pkg/codec"
	"tinylsm/pkg/types"
)

// WriteBatch groups multiple mutations atomically.
type WriteBatch interface {
	Put(key types.Key, value types.Value)
	Delete(key types.Key)
	Clear()
	Count() int
}

// Batch collects mutations in call order. Later mutations of the same key win
// when the batch is applied.
type Batch struct {
	records []codec.Record
}

var _ WriteBatch = (*Batch)(nil)

func New() *Batch {
	return &Batch{}
}

func (b *Batch) Put(key types.Key, value types.Value) {
	b.records = append(b.records, codec.Put(clone(key), clone(value)))
}

func (b *Batch) Delete(key types.Key) {
	b.records = append(b.records, codec.Delete(clone(key)))
}

func (b *Batch) Clear() {
	b.records = b.records[:0]
}

func (b *Batch) Count() int {
	return len(b.records)
}

// Records returns the collected mutations. The slice is owned by the batch.
func (b *Batch) Records() []codec.Record {
	return b.records
}

func clone(b []byte) []byte {
	return append(make([]byte, 0, len(b)), b...)
}
