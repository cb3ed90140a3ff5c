// Package wal implements the write-ahead log: an append-only stream of
// fixed-width frames holding every mutation that is not yet part of a
// sorted run.
package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"tinylsm/pkg/codec"
)

// FileName is the log file name inside a store root.
const FileName = "log"

var errClosed = errors.New("wal: closed")

// WAL is a buffered, append-only log of codec frames.
type WAL struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	filePath string

	layout codec.Layout
	size   int64
	log    *slog.Logger
}

// Open opens or creates the log at filePath. The log must be recovered
// before the first append. Torn tails are reported to log, or to
// slog.Default() when log is nil.
func Open(filePath string, layout codec.Layout, bufferSize int, log *slog.Logger) (*WAL, error) {
	if log == nil {
		log = slog.Default()
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAL file: %w", err)
	}

	return &WAL{
		file:     file,
		writer:   bufio.NewWriterSize(file, max(bufferSize, layout.WALFrameSize())),
		filePath: filePath,
		layout:   layout,
		log:      log,
	}, nil
}

// Append logs one record frame and returns the number of bytes logged.
func (w *WAL) Append(r codec.Record) (int, error) {
	buf := make([]byte, w.layout.WALFrameSize())
	w.layout.PutRecord(buf, r)
	return w.write(buf)
}

// AppendBatch logs a batch marker followed by one frame per record. Recovery
// applies the records only if every frame of the batch made it to disk.
func (w *WAL) AppendBatch(records []codec.Record) (int, error) {
	frameSize := w.layout.WALFrameSize()
	buf := make([]byte, (len(records)+1)*frameSize)

	codec.PutBatchMarker(buf[:frameSize], uint64(len(records)))
	for i, r := range records {
		off := (i + 1) * frameSize
		w.layout.PutRecord(buf[off:off+frameSize], r)
	}

	return w.write(buf)
}

func (w *WAL) write(buf []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer == nil {
		return 0, errClosed
	}

	n, err := w.writer.Write(buf)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("failed to write WAL frame: %w", err)
	}
	return n, nil
}

// Sync flushes buffered frames and fsyncs the log file.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.sync()
}

func (w *WAL) sync() error {
	if w.writer == nil {
		return errClosed
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush WAL: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync WAL: %w", err)
	}
	return nil
}

// Reset empties the log once its contents are durable in a sorted run.
func (w *WAL) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.sync(); err != nil {
		return err
	}
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate WAL: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync WAL after truncate: %w", err)
	}

	w.size = 0
	return nil
}

// Size returns the number of bytes in the log, buffered frames included.
func (w *WAL) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.size
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer != nil {
		if err := w.writer.Flush(); err != nil {
			return fmt.Errorf("failed to flush WAL on close: %w", err)
		}
		w.writer = nil
	}

	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("failed to close WAL file: %w", err)
		}
		w.file = nil
	}

	return nil
}

// Recovery summarizes one replay of the log.
type Recovery struct {
	// Offset is the end of the last fully applied frame or batch.
	Offset int64
	// Dropped is the number of bytes cut off as a torn tail.
	Dropped int64
	Records int
	Batches int
}

// Recover replays the log from the start, handing records to apply in log
// order. A batch is handed over in one call once all of its frames are read.
// Replay stops at the first invalid frame; the log is then truncated to the
// last good offset and synced.
func (w *WAL) Recover(apply func([]codec.Record)) (Recovery, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer == nil {
		return Recovery{}, errClosed
	}

	file, err := os.Open(w.filePath)
	if err != nil {
		return Recovery{}, fmt.Errorf("failed to open WAL for reading: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			w.log.Warn("failed to close WAL read file", "error", cerr)
		}
	}()

	var (
		rec       Recovery
		read      int64
		pending   []codec.Record
		inBatch   bool
		remaining uint64
	)

	frameSize := w.layout.WALFrameSize()
	buf := make([]byte, frameSize)
	reader := bufio.NewReader(file)

	for {
		if _, err := io.ReadFull(reader, buf); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				w.log.Warn("WAL ends with a partial frame", "offset", read)
			} else if !errors.Is(err, io.EOF) {
				return Recovery{}, fmt.Errorf("failed to read WAL: %w", err)
			}
			break
		}
		read += int64(frameSize)

		frame, err := w.layout.DecodeFrame(buf)
		if err != nil {
			w.log.Warn("WAL frame failed validation, truncating torn tail",
				"offset", read-int64(frameSize), "error", err)
			break
		}

		if frame.Kind == codec.KindBatch {
			if inBatch {
				w.log.Warn("WAL batch marker inside a pending batch, truncating torn tail",
					"offset", read-int64(frameSize))
				break
			}
			inBatch, remaining = true, frame.Count
			pending = make([]codec.Record, 0, min(frame.Count, 1<<16))
		} else if inBatch {
			pending = append(pending, frame.Record)
			remaining--
		} else {
			apply([]codec.Record{frame.Record})
			rec.Records++
			rec.Offset = read
			continue
		}

		if remaining == 0 {
			if len(pending) > 0 {
				apply(pending)
			}
			rec.Records += len(pending)
			rec.Batches++
			rec.Offset = read
			inBatch, pending = false, nil
		}
	}

	if inBatch {
		w.log.Warn("WAL ends inside a batch, dropping it", "records", len(pending), "missing", remaining)
	}

	info, err := w.file.Stat()
	if err != nil {
		return Recovery{}, fmt.Errorf("failed to stat WAL: %w", err)
	}
	rec.Dropped = info.Size() - rec.Offset

	if err := w.file.Truncate(rec.Offset); err != nil {
		return Recovery{}, fmt.Errorf("failed to truncate WAL: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return Recovery{}, fmt.Errorf("failed to sync WAL: %w", err)
	}

	w.size = rec.Offset
	return rec, nil
}
