package store

import "errors"

var (
	ErrWorkerUnavailable = errors.New("compaction worker did not answer heartbeat")
	ErrFormatVersion     = errors.New("unsupported store format version")
)
