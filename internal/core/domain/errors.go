package domain

import (
	"errors"
	"fmt"
)

// --- DOMAIN ERRORS ---
var (
	// ErrInvalidArgument is the caller's fault and is raised before any store call.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStoreUnavailable wraps any store fault that was not resolved by retry.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrTooManyRetries is returned when a batch still has unprocessed items after the retry ceiling.
	ErrTooManyRetries = fmt.Errorf("too many attempts to write batch: %w", ErrStoreUnavailable)
	// ErrDataConsistency means an index references a post or profile that does not exist.
	ErrDataConsistency = errors.New("data consistency fault")
	// ErrNotFound is a point miss in the store.
	ErrNotFound = errors.New("not found")
)

// InvalidArgument builds a caller-facing validation error.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// StoreUnavailable wraps a backend error.
func StoreUnavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// DataConsistency reports an index entry that could not be hydrated.
func DataConsistency(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDataConsistency, fmt.Sprintf(format, args...))
}
