package sapi

import (
	"errors"
	"fmt"
)

// TransientError marks a fetch failure worth retrying: network trouble,
// throttling, or a provider-side 5xx. The run's cursor is untouched, so
// re-invoking the backfill with the same run id resumes cleanly.
type TransientError struct {
	Status int // HTTP status, 0 for transport errors
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transient provider error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transient provider error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a fetch failure that retrying cannot fix: rejected
// credentials, a malformed scope, an undecodable response body.
type PermanentError struct {
	Status int
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("permanent provider error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("permanent provider error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable by a later invocation.
// Uses errors.As to handle wrapped errors.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
