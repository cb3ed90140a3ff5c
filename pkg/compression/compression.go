// Package compression wraps the stream compressors used for sorted-run files.
// Readers detect the compressor from the stream's magic bytes, so the writer
// side may be switched between reopenings of a store.
package compression

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Algorithm names a stream compressor.
type Algorithm string

const (
	Zstd   Algorithm = "zstd"
	Snappy Algorithm = "snappy"
	Gzip   Algorithm = "gzip"
)

var (
	ErrUnknownAlgorithm = errors.New("compression: unknown algorithm")
	ErrUnknownFormat    = errors.New("compression: unrecognized stream header")
)

var (
	zstdMagic   = []byte{0x28, 0xB5, 0x2F, 0xFD}
	gzipMagic   = []byte{0x1F, 0x8B}
	snappyMagic = []byte("\xff\x06\x00\x00sNaPpY")
)

// NewWriter returns a compressing writer on top of w. level is interpreted per
// algorithm and clamped to its valid range; snappy ignores it.
func NewWriter(w io.Writer, algo Algorithm, level int) (io.WriteCloser, error) {
	switch algo {
	case Zstd, "":
		enc, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
			zstd.WithZeroFrames(true),
		)
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		return enc, nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case Gzip:
		level = min(max(level, gzip.BestSpeed), gzip.BestCompression)
		gz, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, fmt.Errorf("create gzip writer: %w", err)
		}
		return gz, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algo)
	}
}

// NewReader detects the algorithm from the first bytes of r and returns a
// decompressing reader along with the detected algorithm.
func NewReader(r io.Reader) (io.ReadCloser, Algorithm, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(snappyMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, "", fmt.Errorf("read stream header: %w", err)
	}

	switch {
	case bytes.HasPrefix(head, zstdMagic):
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, "", fmt.Errorf("create zstd decoder: %w", err)
		}
		return dec.IOReadCloser(), Zstd, nil
	case bytes.HasPrefix(head, snappyMagic):
		return io.NopCloser(snappy.NewReader(br)), Snappy, nil
	case bytes.HasPrefix(head, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, "", fmt.Errorf("create gzip reader: %w", err)
		}
		return gz, Gzip, nil
	default:
		return nil, "", ErrUnknownFormat
	}
}

// Decompress auto-detects the stream format of src and writes the plain bytes to dst.
func Decompress(dst io.Writer, src io.Reader) (int64, error) {
	r, _, err := NewReader(src)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	return io.Copy(dst, r)
}
