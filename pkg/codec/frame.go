package codec

import (
	"encoding/binary"
	"fmt"
)

// Frame is one decoded log frame: either a record or a batch marker.
type Frame struct {
	Kind   Kind
	Record Record
	// Count is the number of records announced by a batch marker.
	Count uint64
}

// DecodeFrame parses one padded log frame of WALFrameSize bytes.
func (l Layout) DecodeFrame(buf []byte) (Frame, error) {
	if len(buf) < l.WALFrameSize() {
		return Frame{}, ErrShortFrame
	}
	buf = buf[:l.WALFrameSize()]

	switch kind := Kind(buf[checksumSize]); kind {
	case KindBatch:
		count := binary.LittleEndian.Uint64(buf[HeaderSize : HeaderSize+CountSize])
		expected := binary.LittleEndian.Uint32(buf[:checksumSize])
		if actual := BatchChecksum(count); actual != expected {
			return Frame{}, fmt.Errorf("%w: batch marker expected %08x actual %08x", ErrChecksum, expected, actual)
		}
		if !allZero(buf[HeaderSize+CountSize:]) {
			return Frame{}, fmt.Errorf("%w: after batch marker", ErrPadding)
		}
		return Frame{Kind: KindBatch, Count: count}, nil

	case KindValue, KindTombstone:
		r, err := l.DecodeRecord(buf)
		if err != nil {
			return Frame{}, err
		}

		padStart := HeaderSize + l.KeySize
		if !r.Tombstone {
			padStart += l.ValueSize
		}
		if !allZero(buf[padStart:]) {
			return Frame{}, fmt.Errorf("%w: after logged record", ErrPadding)
		}
		return Frame{Kind: kind, Record: r}, nil

	default:
		return Frame{}, fmt.Errorf("%w: %d", ErrDiscriminant, kind)
	}
}
