// Package sstable reads and writes sorted-run files: an 8 byte little-endian
// entry count followed by fixed-width records in ascending key order, the whole
// stream compressed.
package sstable

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tinylsm/pkg/codec"
	"tinylsm/pkg/compression"
	"tinylsm/pkg/fsutil"
)

const (
	// Dir is the sorted-run subdirectory of a store root.
	Dir = "sstables"

	tmpSuffix = "-tmp"
)

// Path returns the sorted-run directory of a store root.
func Path(root string) string {
	return filepath.Join(root, Dir)
}

// FileName formats an id as 16 lowercase hex digits.
func FileName(id uint64) string {
	return fmt.Sprintf("%016x", id)
}

func filePath(root string, id uint64) string {
	return filepath.Join(Path(root), FileName(id))
}

func tmpPath(root string, id uint64) string {
	return filepath.Join(Path(root), FileName(id)+tmpSuffix)
}

// WriteOptions selects the compressor of a new file.
type WriteOptions struct {
	Algorithm compression.Algorithm
	Level     int
}

// Write encodes records, which must be sorted by key, as sorted run id. The
// file is built under a temporary name and renamed into place only after it
// and its directory are synced. Write returns the size of the file on disk.
func Write(root string, id uint64, layout codec.Layout, records []codec.Record, opts WriteOptions) (int64, error) {
	af, err := fsutil.CreateAtomic(tmpPath(root, id), filePath(root, id))
	if err != nil {
		return 0, err
	}
	defer af.Abort()

	counter := compression.NewCountingWriter(af)
	cw, err := compression.NewWriter(counter, opts.Algorithm, opts.Level)
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(cw)

	var header [codec.CountSize]byte
	binary.LittleEndian.PutUint64(header[:], uint64(len(records)))
	if _, err := bw.Write(header[:]); err != nil {
		return 0, fmt.Errorf("failed to write sstable header: %w", err)
	}

	buf := make([]byte, layout.RecordSize())
	for _, r := range records {
		layout.PutRecord(buf, r)
		if _, err := bw.Write(buf); err != nil {
			return 0, fmt.Errorf("failed to write sstable record: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush sstable %s: %w", FileName(id), err)
	}
	if err := cw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finish compressed sstable %s: %w", FileName(id), err)
	}
	if err := af.Commit(); err != nil {
		return 0, err
	}

	return counter.Count(), nil
}

// Contents is the decoded body of one sorted run.
type Contents struct {
	Records []codec.Record
	// Declared is the entry count stored in the header.
	Declared uint64
	// Torn is set when decoding stopped before Declared records.
	Torn bool
	// Compressed and Plain are the byte sizes before and after decompression.
	Compressed int64
	Plain      int64
	Algorithm  compression.Algorithm
}

// Read decodes sorted run id. A bad record ends the read: everything before it
// is returned, and the short count is logged to log as a torn write. A nil log
// means slog.Default().
func Read(root string, id uint64, layout codec.Layout, log *slog.Logger) (Contents, error) {
	return ReadFile(filePath(root, id), layout, log)
}

// ReadFile is Read for an explicit path.
func ReadFile(path string, layout codec.Layout, log *slog.Logger) (Contents, error) {
	log = orDefault(log)

	f, err := os.Open(path)
	if err != nil {
		return Contents{}, fmt.Errorf("failed to open sstable: %w", err)
	}
	defer f.Close()

	counter := &countingReader{r: f}
	zr, algo, err := compression.NewReader(counter)
	if err != nil {
		return Contents{}, fmt.Errorf("failed to open sstable %s: %w", path, err)
	}
	defer zr.Close()

	plain := &countingReader{r: zr}
	br := bufio.NewReader(plain)

	var header [codec.CountSize]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return Contents{}, fmt.Errorf("failed to read sstable header %s: %w", path, err)
	}

	c := Contents{
		Declared:  binary.LittleEndian.Uint64(header[:]),
		Algorithm: algo,
	}

	buf := make([]byte, layout.RecordSize())
	for uint64(len(c.Records)) < c.Declared {
		if _, err := io.ReadFull(br, buf); err != nil {
			log.Warn("sstable ended early", "path", path, "error", err)
			break
		}

		r, err := layout.DecodeRecord(buf)
		if err != nil {
			log.Warn("sstable record failed validation", "path", path, "index", len(c.Records), "error", err)
			break
		}
		c.Records = append(c.Records, r)
	}

	if uint64(len(c.Records)) != c.Declared {
		c.Torn = true
		log.Warn("sstable entry count mismatch, assuming torn write",
			"path", path, "declared", c.Declared, "read", len(c.Records))
	}

	// drain so the decompressor reports the full stream size
	_, _ = io.Copy(io.Discard, br)
	c.Compressed = counter.n
	c.Plain = plain.n

	return c, nil
}

// Remove deletes sorted run id. The caller issues the directory barrier.
func Remove(root string, id uint64) error {
	if err := os.Remove(filePath(root, id)); err != nil {
		return fmt.Errorf("failed to remove sstable %s: %w", FileName(id), err)
	}
	return nil
}

// List scans the sorted-run directory of root. Leftover temporary files from an
// interrupted write are deleted when removeTmp is set; other names that are not
// a hex id are skipped.
func List(root string, removeTmp bool, log *slog.Logger) (*Directory, error) {
	log = orDefault(log)
	dir := Path(root)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list sstables: %w", err)
	}

	d := NewDirectory()
	removed := false
	for _, entry := range entries {
		name := entry.Name()
		id, err := strconv.ParseUint(name, 16, 64)
		if err != nil {
			if removeTmp && strings.HasSuffix(name, tmpSuffix) {
				log.Warn("removing incomplete sstable", "name", name)
				if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
					return nil, fmt.Errorf("failed to remove %s: %w", name, err)
				}
				removed = true
			}
			continue
		}

		info, err := entry.Info()
		if errors.Is(err, os.ErrNotExist) {
			// removed by a concurrent compaction
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat sstable %s: %w", name, err)
		}
		d.Insert(id, uint64(info.Size()))
	}

	if removed {
		if err := fsutil.SyncDir(dir); err != nil {
			return nil, err
		}
	}

	return d, nil
}

func orDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}

type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}
