package compression

import "io"

// CountingWriter wraps an io.Writer and counts bytes written through it.
type CountingWriter struct {
	w     io.Writer
	count int64
}

func NewCountingWriter(w io.Writer) *CountingWriter {
	return &CountingWriter{w: w}
}

func (bc *CountingWriter) Write(p []byte) (int, error) {
	n, err := bc.w.Write(p)
	bc.count += int64(n)
	return n, err
}

func (bc *CountingWriter) Count() int64 {
	return bc.count
}
