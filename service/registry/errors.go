package registry

import "errors"

// Common, reusable registry errors.  Using sentinel variables allows callers
// to reliably detect error conditions via errors.Is/As instead of brittle
// string comparisons.

var (
	// ErrNotFound is returned when the requested record does not exist in the
	// underlying storage.
	ErrNotFound = errors.New("registry: not found")

	// ErrInvalidID indicates that the supplied ID/key is empty or otherwise
	// invalid.
	ErrInvalidID = errors.New("registry: invalid id")

	// ErrNilEntity is returned when the caller attempts to persist a nil
	// pointer.
	ErrNilEntity = errors.New("registry: nil entity")
)
