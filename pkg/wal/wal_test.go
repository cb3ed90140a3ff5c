package wal

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinylsm/pkg/codec"
)

var layout = codec.Layout{KeySize: 2, ValueSize: 3}

func openWAL(t *testing.T, path string) *WAL {
	t.Helper()
	w, err := Open(path, layout, 64, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func replay(t *testing.T, path string) ([][]codec.Record, Recovery) {
	t.Helper()
	w := openWAL(t, path)

	var applied [][]codec.Record
	rec, err := w.Recover(func(records []codec.Record) {
		applied = append(applied, records)
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return applied, rec
}

func put(k, v string) codec.Record { return codec.Put([]byte(k), []byte(v)) }

func TestAppendAndRecover(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	w := openWAL(t, path)
	_, err := w.Recover(func([]codec.Record) {})
	require.NoError(t, err)

	n, err := w.Append(put("k1", "aaa"))
	require.NoError(t, err)
	assert.Equal(t, layout.WALFrameSize(), n)

	_, err = w.Append(codec.Delete([]byte("k1")))
	require.NoError(t, err)

	n, err = w.AppendBatch([]codec.Record{put("k2", "bbb"), put("k3", "ccc")})
	require.NoError(t, err)
	assert.Equal(t, 3*layout.WALFrameSize(), n)
	assert.Equal(t, int64(5*layout.WALFrameSize()), w.Size())
	require.NoError(t, w.Close())

	applied, rec := replay(t, path)
	require.Len(t, applied, 3)
	assert.Equal(t, []byte("k1"), applied[0][0].Key)
	assert.True(t, applied[1][0].Tombstone)
	require.Len(t, applied[2], 2)
	assert.Equal(t, []byte("k3"), applied[2][1].Key)

	assert.Equal(t, 4, rec.Records)
	assert.Equal(t, 1, rec.Batches)
	assert.Equal(t, int64(5*layout.WALFrameSize()), rec.Offset)
	assert.Zero(t, rec.Dropped)
}

func TestRecoverTruncatesTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	w := openWAL(t, path)
	_, err := w.Recover(func([]codec.Record) {})
	require.NoError(t, err)
	_, err = w.Append(put("k1", "aaa"))
	require.NoError(t, err)
	_, err = w.Append(put("k2", "bbb"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	full := int64(2 * layout.WALFrameSize())
	require.NoError(t, os.Truncate(path, full-3))

	applied, rec := replay(t, path)
	require.Len(t, applied, 1)
	assert.Equal(t, int64(layout.WALFrameSize()), rec.Offset)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, rec.Offset, info.Size())
}

func TestRecoverReportsTornTailToLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	w := openWAL(t, path)
	_, err := w.Recover(func([]codec.Record) {})
	require.NoError(t, err)
	_, err = w.Append(put("k1", "aaa"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, os.Truncate(path, int64(layout.WALFrameSize()-1)))

	var out bytes.Buffer
	log := slog.New(slog.NewTextHandler(&out, nil)).With("component", "store")
	w, err = Open(path, layout, 64, log)
	require.NoError(t, err)
	defer w.Close()

	rec, err := w.Recover(func([]codec.Record) {})
	require.NoError(t, err)
	assert.Zero(t, rec.Offset)
	assert.Contains(t, out.String(), "partial frame")
	assert.Contains(t, out.String(), "component=store")
}

func TestRecoverStopsAtCorruptFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	w := openWAL(t, path)
	_, err := w.Recover(func([]codec.Record) {})
	require.NoError(t, err)
	for _, r := range []codec.Record{put("k1", "aaa"), put("k2", "bbb"), put("k3", "ccc")} {
		_, err = w.Append(r)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[layout.WALFrameSize()+codec.HeaderSize] ^= 0x01
	require.NoError(t, os.WriteFile(path, data, 0o600))

	applied, rec := replay(t, path)
	require.Len(t, applied, 1)
	assert.Equal(t, int64(2*layout.WALFrameSize()), rec.Dropped)
}

// Cutting the log anywhere between a batch marker and its last member must
// look as if the batch was never written.
func TestBatchIsAtomicAtEveryCut(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source")

	w := openWAL(t, src)
	_, err := w.Recover(func([]codec.Record) {})
	require.NoError(t, err)
	_, err = w.Append(put("k0", "000"))
	require.NoError(t, err)
	_, err = w.AppendBatch([]codec.Record{put("k1", "111"), codec.Delete([]byte("k0")), put("k2", "222")})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(src)
	require.NoError(t, err)

	frame := layout.WALFrameSize()
	batchStart, batchEnd := frame, 5*frame
	for cut := batchStart; cut < batchEnd; cut++ {
		path := filepath.Join(dir, "cut")
		require.NoError(t, os.WriteFile(path, data[:cut], 0o600))

		applied, rec := replay(t, path)
		require.Len(t, applied, 1, "cut at %d", cut)
		assert.Equal(t, []byte("k0"), applied[0][0].Key)
		assert.Equal(t, int64(batchStart), rec.Offset, "cut at %d", cut)
	}

	applied, _ := replay(t, src)
	require.Len(t, applied, 2)
	assert.Len(t, applied[1], 3)
}

func TestEmptyBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	w := openWAL(t, path)
	_, err := w.Recover(func([]codec.Record) {})
	require.NoError(t, err)
	_, err = w.AppendBatch(nil)
	require.NoError(t, err)
	_, err = w.Append(put("k9", "999"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	applied, rec := replay(t, path)
	require.Len(t, applied, 1)
	assert.Equal(t, 1, rec.Batches)
	assert.Equal(t, int64(2*layout.WALFrameSize()), rec.Offset)
}

func TestResetEmptiesLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	w := openWAL(t, path)
	_, err := w.Recover(func([]codec.Record) {})
	require.NoError(t, err)
	_, err = w.Append(put("k1", "aaa"))
	require.NoError(t, err)
	require.NoError(t, w.Reset())
	assert.Zero(t, w.Size())

	_, err = w.Append(put("k2", "bbb"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(layout.WALFrameSize()), info.Size())
	require.NoError(t, w.Close())

	applied, _ := replay(t, path)
	require.Len(t, applied, 1)
	assert.Equal(t, []byte("k2"), applied[0][0].Key)
}
