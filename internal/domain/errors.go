package domain

import "errors"

var (
	// ErrNotFound is returned for an unknown document id on lookup or delete.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedInput is returned for input the index refuses, such as empty text.
	ErrUnsupportedInput = errors.New("unsupported input")

	// ErrProviderFailure marks an embedding or LLM call that failed or timed out. Retryable.
	ErrProviderFailure = errors.New("provider failure")

	// ErrStoreCorrupt marks persisted index data that could not be read.
	ErrStoreCorrupt = errors.New("store corrupt")

	// ErrDimensionMismatch is returned when a vector does not match the index dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
