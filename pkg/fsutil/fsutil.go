// Package fsutil holds the durability barriers the engine relies on: directory
// fsync after metadata changes and crash-safe file creation through a
// temporary name.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SyncDir persists all prior metadata operations (create, rename, delete) in dir.
func SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open dir %s for sync: %w", dir, err)
	}

	syncErr := d.Sync()
	closeErr := d.Close()
	if syncErr != nil {
		return fmt.Errorf("sync dir %s: %w", dir, syncErr)
	}
	return closeErr
}

// MkdirAllSynced creates dir with all missing parents and syncs every
// directory that was created, plus the parent that now references it.
// Syncing stops quietly at the first ancestor that cannot be opened.
func MkdirAllSynced(dir string) error {
	dir = filepath.Clean(dir)
	if _, err := os.Stat(dir); err == nil {
		return nil
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	for p := dir; ; p = filepath.Dir(p) {
		if err := SyncDir(p); err != nil {
			break
		}
		if parent := filepath.Dir(p); parent == p {
			break
		}
	}

	return nil
}

// FileSize returns the size of a file in bytes.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// AtomicFile is written under a temporary name and becomes visible under its
// final name only when Commit succeeds. A failed or abandoned write leaves the
// temporary file behind for recovery to detect and remove.
type AtomicFile struct {
	*os.File

	tmpPath   string
	finalPath string
	done      bool
}

// CreateAtomic opens tmpPath for writing, truncating any leftover from an
// earlier attempt. Commit renames it onto finalPath.
func CreateAtomic(tmpPath, finalPath string) (*AtomicFile, error) {
	f, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", tmpPath, err)
	}

	return &AtomicFile{File: f, tmpPath: tmpPath, finalPath: finalPath}, nil
}

// Commit fsyncs the file and its directory, renames it into place and fsyncs
// the directory again.
func (af *AtomicFile) Commit() error {
	if af.done {
		return errors.New("fsutil: atomic file already finished")
	}
	af.done = true

	if err := af.File.Sync(); err != nil {
		_ = af.File.Close()
		return fmt.Errorf("sync %s: %w", af.tmpPath, err)
	}
	if err := af.File.Close(); err != nil {
		return fmt.Errorf("close %s: %w", af.tmpPath, err)
	}

	dir := filepath.Dir(af.finalPath)
	if err := SyncDir(dir); err != nil {
		return err
	}
	if err := os.Rename(af.tmpPath, af.finalPath); err != nil {
		return fmt.Errorf("rename %s: %w", af.tmpPath, err)
	}
	return SyncDir(dir)
}

// Abort closes the file without renaming it. It is a no-op after Commit.
func (af *AtomicFile) Abort() {
	if af.done {
		return
	}
	af.done = true
	_ = af.File.Close()
}

// WriteFileAtomic writes data to path through a temporary sibling.
func WriteFileAtomic(path string, data []byte) error {
	af, err := CreateAtomic(path+".tmp", path)
	if err != nil {
		return err
	}
	defer af.Abort()

	if _, err := af.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return af.Commit()
}
