// Package codec implements the fixed-width framing shared by the write-ahead
// log and sorted-run files.
//
// Every frame starts with a 4 byte little-endian checksum and a 1 byte kind,
// followed by the key and the value slot:
//
//	+-------------+----------+-----------+-------------------+
//	| crc32 (4B)  | kind(1B) | key (K B) | value (V B)       |
//	+-------------+----------+-----------+-------------------+
//
// The log pads each frame to 5 + max(8, K+V) bytes so that batch markers,
// which carry an 8 byte record count, fit in the same fixed-size slot.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"tinylsm/pkg/dberrors"
)

// Kind is the discriminant byte of a frame.
type Kind byte

const (
	KindValue     Kind = 0
	KindTombstone Kind = 1
	// KindBatch only appears in the log.
	KindBatch Kind = 2
)

const (
	checksumSize = 4
	// HeaderSize is the checksum plus the kind byte.
	HeaderSize = checksumSize + 1
	// CountSize is the width of the batch and sorted-run entry counters.
	CountSize = 8

	// checksumMask keeps an all-zero frame from validating as checksum 0.
	checksumMask uint32 = 0xFF
)

var (
	ErrChecksum     = errors.New("codec: checksum mismatch")
	ErrDiscriminant = errors.New("codec: invalid discriminant")
	ErrPadding      = errors.New("codec: non-zero padding")
	ErrShortFrame   = errors.New("codec: short frame")
)

// Record is a key with an optional value. A tombstone has no value.
type Record struct {
	Key       []byte
	Value     []byte
	Tombstone bool
}

// Put builds a value record.
func Put(key, value []byte) Record {
	return Record{Key: key, Value: value}
}

// Delete builds a tombstone record.
func Delete(key []byte) Record {
	return Record{Key: key, Tombstone: true}
}

func (r Record) kind() Kind {
	if r.Tombstone {
		return KindTombstone
	}
	return KindValue
}

// Layout holds the key and value widths of a store.
type Layout struct {
	KeySize   int
	ValueSize int
}

// RecordSize is the width of one sorted-run record.
func (l Layout) RecordSize() int {
	return HeaderSize + l.KeySize + l.ValueSize
}

// WALFrameSize is the width of one log frame, padded so a batch marker fits.
func (l Layout) WALFrameSize() int {
	return HeaderSize + max(CountSize, l.KeySize+l.ValueSize)
}

// ResidentSize is the in-memory footprint of one live key.
func (l Layout) ResidentSize() int {
	return l.KeySize + l.ValueSize
}

// Validate checks that the record matches the layout widths.
func (l Layout) Validate(r Record) error {
	if len(r.Key) != l.KeySize {
		return fmt.Errorf("%w: got %d bytes, want %d", dberrors.ErrKeySize, len(r.Key), l.KeySize)
	}
	if !r.Tombstone && len(r.Value) != l.ValueSize {
		return fmt.Errorf("%w: got %d bytes, want %d", dberrors.ErrValueSize, len(r.Value), l.ValueSize)
	}
	return nil
}

// Checksum covers the presence flag, the key and the value slot. A tombstone
// is hashed with a zero-filled value slot.
func (l Layout) Checksum(r Record) uint32 {
	presence := []byte{1}
	if r.Tombstone {
		presence[0] = 0
	}

	crc := crc32.Update(0, crc32.IEEETable, presence)
	crc = crc32.Update(crc, crc32.IEEETable, r.Key)
	if r.Tombstone {
		crc = crc32.Update(crc, crc32.IEEETable, make([]byte, l.ValueSize))
	} else {
		crc = crc32.Update(crc, crc32.IEEETable, r.Value)
	}

	return crc ^ checksumMask
}

// BatchChecksum covers the little-endian record count of a batch marker.
func BatchChecksum(count uint64) uint32 {
	var buf [CountSize]byte
	binary.LittleEndian.PutUint64(buf[:], count)
	return crc32.ChecksumIEEE(buf[:]) ^ checksumMask
}

// PutRecord encodes r into dst. Bytes of dst past the value slot are zeroed,
// so dst may be either a sorted-run record or a padded log frame.
func (l Layout) PutRecord(dst []byte, r Record) {
	binary.LittleEndian.PutUint32(dst[:checksumSize], l.Checksum(r))
	dst[checksumSize] = byte(r.kind())

	body := dst[HeaderSize:]
	n := copy(body, r.Key)
	if !r.Tombstone {
		n += copy(body[n:], r.Value)
	}
	clear(body[n:])
}

// PutBatchMarker encodes a batch marker announcing count records into dst.
func PutBatchMarker(dst []byte, count uint64) {
	binary.LittleEndian.PutUint32(dst[:checksumSize], BatchChecksum(count))
	dst[checksumSize] = byte(KindBatch)
	binary.LittleEndian.PutUint64(dst[HeaderSize:HeaderSize+CountSize], count)
	clear(dst[HeaderSize+CountSize:])
}

// DecodeRecord parses one sorted-run record. The returned key and value are
// copies and stay valid after buf is reused.
func (l Layout) DecodeRecord(buf []byte) (Record, error) {
	if len(buf) < l.RecordSize() {
		return Record{}, ErrShortFrame
	}

	var r Record
	switch Kind(buf[checksumSize]) {
	case KindValue:
	case KindTombstone:
		r.Tombstone = true
	default:
		return Record{}, fmt.Errorf("%w: %d", ErrDiscriminant, buf[checksumSize])
	}

	keyEnd := HeaderSize + l.KeySize
	r.Key = append([]byte(nil), buf[HeaderSize:keyEnd]...)
	if !r.Tombstone {
		r.Value = append(make([]byte, 0, l.ValueSize), buf[keyEnd:keyEnd+l.ValueSize]...)
	}

	expected := binary.LittleEndian.Uint32(buf[:checksumSize])
	if actual := l.Checksum(r); actual != expected {
		return Record{}, fmt.Errorf("%w: expected %08x actual %08x", ErrChecksum, expected, actual)
	}

	return r, nil
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
