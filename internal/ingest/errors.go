package ingest

import (
	"errors"
	"fmt"
)

// IngestError represents an error detected while driving a backfill run.
//
// Ingest errors include:
//   - Transient fetch: the provider failed in a retryable way; the run
//     stays resumable and a later invocation picks up at the same cursor
//   - Permanent fetch: the provider rejected the request; the run is
//     marked failed
//   - Commit failed: the page transaction could not be made durable; the
//     run stays at the prior committed cursor
//   - Cursor conflict: another invocation advanced the run concurrently
//
// IngestError includes structured fields for diagnostics and recovery.
type IngestError struct {
	// Code identifies the error category.
	Code IngestErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run.
	RunID string

	// Cursor is the cursor the failing page was fetched with.
	Cursor string

	// Err is the underlying cause, if any.
	Err error
}

// IngestErrorCode categorizes ingest errors.
type IngestErrorCode string

const (
	// ErrCodeTransientFetch indicates a retryable provider failure.
	ErrCodeTransientFetch IngestErrorCode = "TRANSIENT_FETCH"

	// ErrCodePermanentFetch indicates a non-retryable provider failure.
	ErrCodePermanentFetch IngestErrorCode = "PERMANENT_FETCH"

	// ErrCodeCommitFailed indicates the page transaction did not commit.
	ErrCodeCommitFailed IngestErrorCode = "COMMIT_FAILED"

	// ErrCodeCursorConflict indicates a concurrent invocation advanced
	// the run's cursor.
	ErrCodeCursorConflict IngestErrorCode = "CURSOR_CONFLICT"
)

// Error implements the error interface.
func (e *IngestError) Error() string {
	if e.RunID != "" && e.Cursor != "" {
		return fmt.Sprintf("%s: %s (run=%s, cursor=%s)", e.Code, e.Message, e.RunID, e.Cursor)
	}
	if e.RunID != "" {
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.RunID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *IngestError) Unwrap() error { return e.Err }

// IsRetryable returns true if the error leaves the run resumable: a later
// invocation with the same run id can continue from the committed cursor.
// Uses errors.As to handle wrapped errors.
func IsRetryable(err error) bool {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Code == ErrCodeTransientFetch || ie.Code == ErrCodeCommitFailed
	}
	return false
}

// IsCursorConflict returns true if the error is a concurrent-advance
// conflict. Uses errors.As to handle wrapped errors.
func IsCursorConflict(err error) bool {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Code == ErrCodeCursorConflict
	}
	return false
}
