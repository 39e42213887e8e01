package storage

import "errors"

// Store errors. All of these are recoverable: callers degrade to
// "no local results" rather than failing the search.
var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrFetchFailed wraps read failures from the underlying store
	ErrFetchFailed = errors.New("fetch failed")
	// ErrSaveFailed wraps insert failures
	ErrSaveFailed = errors.New("save failed")
	// ErrUpdateFailed wraps field-update failures
	ErrUpdateFailed = errors.New("update failed")
	// ErrDeleteFailed wraps delete failures
	ErrDeleteFailed = errors.New("delete failed")
)
