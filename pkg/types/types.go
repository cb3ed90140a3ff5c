package types

// Key is an immutable byte slice type alias used for clarity.
type Key = []byte

// Value is an immutable byte slice type alias used for clarity.
type Value = []byte

// SSTableID identifies a sorted run. Higher ids hold more recent data.
type SSTableID = uint64
