package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicFileCommit(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "0000000000000001")
	tmp := final + "-tmp"

	af, err := CreateAtomic(tmp, final)
	require.NoError(t, err)
	_, err = af.Write([]byte("payload"))
	require.NoError(t, err)

	_, err = os.Stat(final)
	assert.True(t, os.IsNotExist(err), "final name must not exist before commit")

	require.NoError(t, af.Commit())
	af.Abort()

	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = os.Stat(tmp)
	assert.True(t, os.IsNotExist(err))
}

func TestAtomicFileAbortLeavesTemp(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "table")
	tmp := final + "-tmp"

	af, err := CreateAtomic(tmp, final)
	require.NoError(t, err)
	_, err = af.Write([]byte("half"))
	require.NoError(t, err)
	af.Abort()

	_, err = os.Stat(final)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(tmp)
	assert.NoError(t, err)
}

func TestMkdirAllSynced(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	require.NoError(t, MkdirAllSynced(dir))
	require.NoError(t, MkdirAllSynced(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "OPTIONS")
	require.NoError(t, WriteFileAtomic(path, []byte("v1")))
	require.NoError(t, WriteFileAtomic(path, []byte("v2")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	size, err := FileSize(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)
}
