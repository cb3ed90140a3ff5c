package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"tinylsm/pkg/batch"
	"tinylsm/pkg/codec"
	"tinylsm/pkg/config"
	"tinylsm/pkg/dberrors"
)

func key(i int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(i))
	return k
}

func value(i int) []byte {
	v := make([]byte, 8)
	binary.LittleEndian.PutUint64(v, uint64(i)*7919)
	return v
}

func testConfig(dir string) config.DB {
	cfg := config.DefaultDB(dir)
	cfg.KeySize = 8
	cfg.ValueSize = 8
	return cfg
}

func openStore(t *testing.T, cfg config.DB) *Store {
	t.Helper()
	store, err := Open(cfg.Path, cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return store
}

func closeStore(t *testing.T, store *Store) {
	t.Helper()
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestStore_Insert_Get(t *testing.T) {
	store := openStore(t, testConfig(t.TempDir()))
	defer closeStore(t, store)

	prev, had, err := store.Insert(key(1), value(1))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if had || prev != nil {
		t.Fatalf("Expected no previous value, got %v", prev)
	}

	got, found := store.Get(key(1))
	if !found {
		t.Fatal("Expected to find key 1")
	}
	if !bytes.Equal(got, value(1)) {
		t.Fatalf("Expected %x, got %x", value(1), got)
	}
}

func TestStore_Overwrite(t *testing.T) {
	store := openStore(t, testConfig(t.TempDir()))
	defer closeStore(t, store)

	if _, _, err := store.Insert(key(1), value(1)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	prev, had, err := store.Insert(key(1), value(2))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if !had || !bytes.Equal(prev, value(1)) {
		t.Fatalf("Expected previous value %x, got %x (had=%v)", value(1), prev, had)
	}

	got, _ := store.Get(key(1))
	if !bytes.Equal(got, value(2)) {
		t.Fatalf("Expected %x, got %x", value(2), got)
	}
}

func TestStore_Remove(t *testing.T) {
	store := openStore(t, testConfig(t.TempDir()))
	defer closeStore(t, store)

	if _, had, err := store.Remove(key(1)); err != nil || had {
		t.Fatalf("Remove of absent key: had=%v err=%v", had, err)
	}

	if _, _, err := store.Insert(key(1), value(1)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	prev, had, err := store.Remove(key(1))
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !had || !bytes.Equal(prev, value(1)) {
		t.Fatalf("Expected removed value %x, got %x", value(1), prev)
	}

	if _, found := store.Get(key(1)); found {
		t.Fatal("Expected key 1 to be deleted")
	}
	if store.Len() != 0 {
		t.Fatalf("Expected empty store, got %d keys", store.Len())
	}
}

func TestStore_RejectsWrongWidths(t *testing.T) {
	store := openStore(t, testConfig(t.TempDir()))
	defer closeStore(t, store)

	if _, _, err := store.Insert([]byte("short"), value(1)); !errors.Is(err, dberrors.ErrKeySize) {
		t.Fatalf("Expected ErrKeySize, got %v", err)
	}
	if _, _, err := store.Insert(key(1), []byte("tiny")); !errors.Is(err, dberrors.ErrValueSize) {
		t.Fatalf("Expected ErrValueSize, got %v", err)
	}

	err := store.WriteBatch([]codec.Record{codec.Put(key(1), value(1)), codec.Delete([]byte("x"))})
	if !errors.Is(err, dberrors.ErrKeySize) {
		t.Fatalf("Expected ErrKeySize from batch, got %v", err)
	}
	if _, found := store.Get(key(1)); found {
		t.Fatal("Rejected batch must not be applied")
	}
}

func TestStore_InsertCopiesInput(t *testing.T) {
	store := openStore(t, testConfig(t.TempDir()))
	defer closeStore(t, store)

	k, v := key(5), value(5)
	if _, _, err := store.Insert(k, v); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	v[0] ^= 0xFF

	got, _ := store.Get(key(5))
	if !bytes.Equal(got, value(5)) {
		t.Fatal("Stored value changed with the caller's slice")
	}
}

func TestStore_WriteBatch(t *testing.T) {
	store := openStore(t, testConfig(t.TempDir()))
	defer closeStore(t, store)

	if _, _, err := store.Insert(key(3), value(3)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	b := batch.New()
	b.Put(key(1), value(1))
	b.Put(key(2), value(2))
	b.Delete(key(3))
	b.Put(key(1), value(10))

	if err := store.Write(b); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, _ := store.Get(key(1))
	if !bytes.Equal(got, value(10)) {
		t.Fatalf("Expected last write in batch to win, got %x", got)
	}
	if _, found := store.Get(key(3)); found {
		t.Fatal("Expected key 3 to be deleted by batch")
	}
	if store.Len() != 2 {
		t.Fatalf("Expected 2 keys, got %d", store.Len())
	}

	if err := store.WriteBatch(nil); err != nil {
		t.Fatalf("Empty batch failed: %v", err)
	}
}

func TestStore_Range(t *testing.T) {
	store := openStore(t, testConfig(t.TempDir()))
	defer closeStore(t, store)

	for _, i := range []int{5, 1, 3} {
		if _, _, err := store.Insert(key(i), value(i)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	var seen []uint64
	store.Range(func(k, _ []byte) bool {
		seen = append(seen, binary.BigEndian.Uint64(k))
		return true
	})

	if len(seen) != 3 || seen[0] != 1 || seen[1] != 3 || seen[2] != 5 {
		t.Fatalf("Expected keys in order [1 3 5], got %v", seen)
	}
}

func TestStore_Closed(t *testing.T) {
	store := openStore(t, testConfig(t.TempDir()))
	closeStore(t, store)

	if _, _, err := store.Insert(key(1), value(1)); !errors.Is(err, dberrors.ErrClosed) {
		t.Fatalf("Expected ErrClosed, got %v", err)
	}
	if err := store.Flush(); !errors.Is(err, dberrors.ErrClosed) {
		t.Fatalf("Expected ErrClosed from Flush, got %v", err)
	}
	if _, err := store.Stats(); !errors.Is(err, dberrors.ErrClosed) {
		t.Fatalf("Expected ErrClosed from Stats, got %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
}

func TestStore_Stats(t *testing.T) {
	store := openStore(t, testConfig(t.TempDir()))
	defer closeStore(t, store)

	frame := uint64(store.Layout().WALFrameSize())
	for i := 0; i < 10; i++ {
		if _, _, err := store.Insert(key(i), value(i)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := store.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.LoggedBytes != 10*frame {
		t.Fatalf("Expected %d logged bytes, got %d", 10*frame, stats.LoggedBytes)
	}
	if stats.ResidentBytes != 10*16 {
		t.Fatalf("Expected 160 resident bytes, got %d", stats.ResidentBytes)
	}
	if stats.OnDiskBytes != 10*frame {
		t.Fatalf("Expected on-disk bytes to equal the log, got %d", stats.OnDiskBytes)
	}
	if stats.SSTables != 0 {
		t.Fatalf("Expected no sstables, got %d", stats.SSTables)
	}

	if err := store.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	stats, err = store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.SSTables != 1 {
		t.Fatalf("Expected one sstable after flush, got %d", stats.SSTables)
	}
	if stats.WrittenBytes <= stats.LoggedBytes {
		t.Fatalf("Expected flush output in written bytes, got written=%d logged=%d", stats.WrittenBytes, stats.LoggedBytes)
	}
	if stats.SpaceAmp <= 0 || stats.WriteAmp <= 0 {
		t.Fatalf("Expected positive amplification, got space=%f write=%f", stats.SpaceAmp, stats.WriteAmp)
	}
}
