package dberrors

import "errors"

var (
	ErrNotFound        = errors.New("tinylsm: not found")
	ErrClosed          = errors.New("tinylsm: closed")
	ErrInvalidArgument = errors.New("tinylsm: invalid argument")
	ErrKeySize         = errors.New("tinylsm: key has wrong width")
	ErrValueSize       = errors.New("tinylsm: value has wrong width")
	// ErrLayoutMismatch is returned when a store is reopened with key or value
	// widths different from the ones it was created with.
	ErrLayoutMismatch = errors.New("tinylsm: key/value widths do not match the stored layout")
)
