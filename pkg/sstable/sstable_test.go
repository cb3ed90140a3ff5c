package sstable

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinylsm/pkg/codec"
	"tinylsm/pkg/compression"
	"tinylsm/pkg/fsutil"
)

var layout = codec.Layout{KeySize: 4, ValueSize: 6}

func newRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, fsutil.MkdirAllSynced(Path(root)))
	return root
}

func key(i int) []byte {
	k := make([]byte, layout.KeySize)
	binary.BigEndian.PutUint32(k, uint32(i))
	return k
}

func value(i int) []byte {
	return []byte(fmt.Sprintf("v%05d", i))
}

func sampleRecords(n int) []codec.Record {
	records := make([]codec.Record, 0, n)
	for i := 0; i < n; i++ {
		if i%5 == 4 {
			records = append(records, codec.Delete(key(i)))
			continue
		}
		records = append(records, codec.Put(key(i), value(i)))
	}
	return records
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "0000000000000000", FileName(0))
	assert.Equal(t, "00000000000000ff", FileName(255))
	assert.Equal(t, "ffffffffffffffff", FileName(^uint64(0)))
}

func TestWriteReadAllCompressors(t *testing.T) {
	for _, algo := range []compression.Algorithm{compression.Zstd, compression.Snappy, compression.Gzip} {
		t.Run(string(algo), func(t *testing.T) {
			root := newRoot(t)
			records := sampleRecords(100)

			size, err := Write(root, 7, layout, records, WriteOptions{Algorithm: algo, Level: 3})
			require.NoError(t, err)

			onDisk, err := fsutil.FileSize(filepath.Join(Path(root), FileName(7)))
			require.NoError(t, err)
			assert.Equal(t, onDisk, size)

			c, err := Read(root, 7, layout, nil)
			require.NoError(t, err)
			assert.False(t, c.Torn)
			assert.Equal(t, algo, c.Algorithm)
			assert.Equal(t, uint64(100), c.Declared)
			assert.Equal(t, int64(codec.CountSize+100*layout.RecordSize()), c.Plain)
			assert.Equal(t, size, c.Compressed)
			require.Len(t, c.Records, 100)
			for i, r := range c.Records {
				assert.Equal(t, records[i].Tombstone, r.Tombstone)
				assert.Equal(t, records[i].Key, r.Key)
				if !r.Tombstone {
					assert.Equal(t, records[i].Value, r.Value)
				}
			}
		})
	}
}

func TestWriteEmpty(t *testing.T) {
	root := newRoot(t)
	_, err := Write(root, 1, layout, nil, WriteOptions{})
	require.NoError(t, err)

	c, err := Read(root, 1, layout, nil)
	require.NoError(t, err)
	assert.Empty(t, c.Records)
	assert.False(t, c.Torn)
}

func writeRaw(t *testing.T, root string, id uint64, plain []byte) {
	t.Helper()
	var buf bytes.Buffer
	w, err := compression.NewWriter(&buf, compression.Zstd, 1)
	require.NoError(t, err)
	_, err = w.Write(plain)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(filepath.Join(Path(root), FileName(id)), buf.Bytes(), 0o640))
}

func encodePlain(declared uint64, records []codec.Record) []byte {
	plain := make([]byte, codec.CountSize, codec.CountSize+len(records)*layout.RecordSize())
	binary.LittleEndian.PutUint64(plain, declared)
	buf := make([]byte, layout.RecordSize())
	for _, r := range records {
		layout.PutRecord(buf, r)
		plain = append(plain, buf...)
	}
	return plain
}

func TestReadStopsAtCorruptRecord(t *testing.T) {
	root := newRoot(t)
	plain := encodePlain(10, sampleRecords(10))
	// flip one key byte of the fourth record
	plain[codec.CountSize+3*layout.RecordSize()+codec.HeaderSize] ^= 0x40
	writeRaw(t, root, 3, plain)

	c, err := Read(root, 3, layout, nil)
	require.NoError(t, err)
	assert.True(t, c.Torn)
	assert.Len(t, c.Records, 3)
}

func TestReadReportsTornWriteToLogger(t *testing.T) {
	root := newRoot(t)
	writeRaw(t, root, 5, encodePlain(4, sampleRecords(2)))

	var out bytes.Buffer
	log := slog.New(slog.NewTextHandler(&out, nil)).With("component", "store")

	c, err := Read(root, 5, layout, log)
	require.NoError(t, err)
	assert.True(t, c.Torn)
	assert.Contains(t, out.String(), "assuming torn write")
	assert.Contains(t, out.String(), "component=store")
}

func TestReadTruncatedFile(t *testing.T) {
	root := newRoot(t)
	plain := encodePlain(10, sampleRecords(10))
	writeRaw(t, root, 4, plain[:len(plain)-layout.RecordSize()/2])

	c, err := Read(root, 4, layout, nil)
	require.NoError(t, err)
	assert.True(t, c.Torn)
	assert.Len(t, c.Records, 9)
}

func TestListRemovesTemporaries(t *testing.T) {
	root := newRoot(t)
	_, err := Write(root, 1, layout, sampleRecords(3), WriteOptions{})
	require.NoError(t, err)
	_, err = Write(root, 0x1a, layout, sampleRecords(5), WriteOptions{})
	require.NoError(t, err)

	tmp := filepath.Join(Path(root), FileName(0x1b)+tmpSuffix)
	require.NoError(t, os.WriteFile(tmp, []byte("partial"), 0o640))
	stray := filepath.Join(Path(root), "notes.txt")
	require.NoError(t, os.WriteFile(stray, []byte("x"), 0o640))

	d, err := List(root, true, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 0x1a}, d.IDs())

	maxID, ok := d.MaxID()
	require.True(t, ok)
	assert.Equal(t, uint64(0x1a), maxID)

	assert.NoFileExists(t, tmp)
	assert.FileExists(t, stray)
}

func TestDirectory(t *testing.T) {
	d := NewDirectory()
	_, ok := d.MaxID()
	assert.False(t, ok)

	d.Insert(5, 100)
	d.Insert(2, 50)
	d.Insert(9, 10)
	assert.Equal(t, 3, d.Len())
	assert.Equal(t, uint64(160), d.Sum())
	assert.Equal(t, []Entry{{2, 50}, {5, 100}, {9, 10}}, d.Entries())

	d.Remove(5)
	assert.Equal(t, []uint64{2, 9}, d.IDs())
	assert.Equal(t, uint64(60), d.Sum())
}

func TestRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	root := newRoot(t)
	var next uint64

	properties.Property("written runs decode to the same records", prop.ForAll(
		func(n int) bool {
			next++
			records := sampleRecords(n)
			if _, err := Write(root, next, layout, records, WriteOptions{}); err != nil {
				return false
			}
			c, err := Read(root, next, layout, nil)
			if err != nil || c.Torn || len(c.Records) != n {
				return false
			}
			for i := range records {
				if !bytes.Equal(records[i].Key, c.Records[i].Key) ||
					records[i].Tombstone != c.Records[i].Tombstone ||
					!bytes.Equal(records[i].Value, c.Records[i].Value) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 300),
	))

	properties.TestingRun(t)
}
